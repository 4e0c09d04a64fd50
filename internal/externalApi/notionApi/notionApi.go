package notionApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/ktimofeev/robinfolio/config"
	"github.com/ktimofeev/robinfolio/internal/converter/notionConverter"
	"github.com/ktimofeev/robinfolio/internal/externalApi"
	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/notionModel"
	"github.com/ktimofeev/robinfolio/utils"
)

// NotionApi upserts the three reconciliation record sets into the summary,
// orders and sell lots databases. Rows are keyed by stable identifiers
// (ticker, order ID, sellOrderID:buyOrderID), so re-syncing the same data
// overwrites pages instead of duplicating them.
type NotionApi struct {
	client  *resty.Client
	cfg     *config.Config
	breaker *gobreaker.CircuitBreaker
	icons   map[string]string // database ID -> page icon URL
}

func New(cfg *config.Config) *NotionApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.Notion.Url).
		SetHeader("Authorization", "Bearer "+cfg.API.Notion.Token).
		SetHeader("Notion-Version", cfg.API.Notion.Version).
		SetHeader("Content-Type", "application/json")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "NotionApi",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})

	icons := map[string]string{
		cfg.API.Notion.SummaryDbID:  cfg.API.Notion.SummaryIcon,
		cfg.API.Notion.OrdersDbID:   cfg.API.Notion.OrdersIcon,
		cfg.API.Notion.SellLotsDbID: cfg.API.Notion.SellLotsIcon,
	}

	return &NotionApi{client: client, cfg: cfg, breaker: breaker, icons: icons}
}

// SyncSecurity pushes one security's record set: the summary page first
// (everything else relates to it), then order pages in chronological order,
// then the sell lot pages with their relations. Returns on the first
// failure so the caller keeps the checkpoint where it was.
func (a *NotionApi) SyncSecurity(ctx context.Context, res model.SecurityResult) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "NotionApi.SyncSecurity"

	slog.Debug("SyncSecurity start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", res.Ticker))
	defer func() {
		if err != nil {
			slog.Error("SyncSecurity failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", res.Ticker), slog.String("err", err.Error()))
		} else {
			slog.Debug("SyncSecurity completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", res.Ticker))
		}
	}()

	summaryPageID, err := a.upsertPage(
		ctx,
		a.cfg.API.Notion.SummaryDbID,
		notionConverter.PropStock, "title", res.Ticker,
		notionConverter.ConvertSummary(res.Summary),
	)
	if err != nil {
		return fmt.Errorf("upsert summary for %s: %w", res.Ticker, err)
	}

	orders := make(map[string]model.Order, len(res.Orders))
	orderPages := make(map[string]string, len(res.Orders))

	for _, o := range res.Orders {
		pageID, err := a.upsertPage(
			ctx,
			a.cfg.API.Notion.OrdersDbID,
			notionConverter.PropOrderID, "rich_text", o.ID,
			notionConverter.ConvertOrder(o, summaryPageID),
		)
		if err != nil {
			return fmt.Errorf("upsert order %s: %w", o.ID, err)
		}
		orders[o.ID] = o
		orderPages[o.ID] = pageID
	}

	seq := 0
	lastSellID := ""
	for _, sl := range res.SellLots {
		if sl.SellOrderID != lastSellID {
			seq = 1
			lastSellID = sl.SellOrderID
		} else {
			seq++
		}

		sellPageID, ok := orderPages[sl.SellOrderID]
		if !ok {
			return fmt.Errorf("sell lot %s references unsynced sell order %s", sl.Key(), sl.SellOrderID)
		}

		// The buy side may predate the checkpoint and live only in Notion.
		buyPageID, err := a.orderPageID(ctx, orderPages, sl.BuyOrderID)
		if err != nil {
			return fmt.Errorf("resolve buy order page %s: %w", sl.BuyOrderID, err)
		}

		_, err = a.upsertPage(
			ctx,
			a.cfg.API.Notion.SellLotsDbID,
			notionConverter.PropLotID, "rich_text", sl.Key(),
			notionConverter.ConvertSellLot(orders[sl.SellOrderID], sl, seq, sellPageID, buyPageID),
		)
		if err != nil {
			return fmt.Errorf("upsert sell lot %s: %w", sl.Key(), err)
		}
	}

	return nil
}

func (a *NotionApi) orderPageID(ctx context.Context, orderPages map[string]string, orderID string) (string, error) {
	if pageID, ok := orderPages[orderID]; ok {
		return pageID, nil
	}

	pageID, err := a.findPage(ctx, a.cfg.API.Notion.OrdersDbID, notionConverter.PropOrderID, "rich_text", orderID)
	if err != nil {
		return "", err
	}

	orderPages[orderID] = pageID
	return pageID, nil
}

// upsertPage locates a page by its stable key property and patches it, or
// creates it when the key is not in the database yet.
func (a *NotionApi) upsertPage(
	ctx context.Context,
	dbID, keyProp, keyType, keyValue string,
	props map[string]notionModel.Property,
) (string, error) {
	pageID, err := a.findPage(ctx, dbID, keyProp, keyType, keyValue)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return a.createPage(ctx, dbID, props)
		}
		return "", err
	}

	return pageID, a.updatePage(ctx, pageID, props)
}

func (a *NotionApi) findPage(ctx context.Context, dbID, property, kind, value string) (string, error) {
	filter := &notionModel.Filter{Property: property}
	switch kind {
	case "title":
		filter.Title = &notionModel.TextFilter{Equals: value}
	default:
		filter.RichText = &notionModel.TextFilter{Equals: value}
	}

	body := notionModel.QueryRequest{Filter: filter, PageSize: 1}

	resp, err := a.do(ctx, func() (*resty.Response, error) {
		return a.client.R().
			SetContext(ctx).
			SetBody(body).
			Post("/databases/" + dbID + "/query")
	})
	if err != nil {
		return "", err
	}

	queryResp := notionModel.QueryResponse{}
	err = json.Unmarshal(resp.Body(), &queryResp)
	if err != nil {
		return "", fmt.Errorf("can't unmarshall query response: %w", err)
	}

	if queryResp.Object == "error" {
		return "", fmt.Errorf("database query failed: %s", queryResp.Message)
	}

	if len(queryResp.Results) == 0 {
		return "", externalApi.ErrNotFound
	}

	return queryResp.Results[0].ID, nil
}

func (a *NotionApi) createPage(ctx context.Context, dbID string, props map[string]notionModel.Property) (string, error) {
	body := notionModel.Page{
		Parent:     &notionModel.Parent{DatabaseID: dbID},
		Properties: props,
	}

	// the icon is decorative and only set on create, updates leave it alone
	if url := a.icons[dbID]; url != "" {
		body.Icon = &notionModel.Icon{
			Type:     "external",
			External: &notionModel.External{Url: url},
		}
	}

	resp, err := a.do(ctx, func() (*resty.Response, error) {
		return a.client.R().
			SetContext(ctx).
			SetBody(body).
			Post("/pages")
	})
	if err != nil {
		return "", err
	}

	return parsePageResponse(resp.Body())
}

func (a *NotionApi) updatePage(ctx context.Context, pageID string, props map[string]notionModel.Property) error {
	body := notionModel.Page{Properties: props}

	resp, err := a.do(ctx, func() (*resty.Response, error) {
		return a.client.R().
			SetContext(ctx).
			SetBody(body).
			Patch("/pages/" + pageID)
	})
	if err != nil {
		return err
	}

	_, err = parsePageResponse(resp.Body())
	return err
}

// do runs one request through the circuit breaker; transport errors and 5xx
// responses count as failures, client errors are surfaced to the caller
// without tripping the breaker.
func (a *NotionApi) do(ctx context.Context, fn func() (*resty.Response, error)) (*resty.Response, error) {
	res, err := a.breaker.Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("%w: notion responded with status %d", externalApi.ErrUnavailable, resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		rqID := utils.GetRequestIDFromCtx(ctx)
		slog.Error("error while dialing NotionApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	return res.(*resty.Response), nil
}

func parsePageResponse(body []byte) (string, error) {
	pageResp := notionModel.PageResponse{}
	err := json.Unmarshal(body, &pageResp)
	if err != nil {
		return "", fmt.Errorf("can't unmarshall page response: %w", err)
	}

	if pageResp.Object != "page" {
		return "", fmt.Errorf("page request failed: %s", pageResp.Message)
	}

	return pageResp.ID, nil
}
