package robinhoodApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/ktimofeev/robinfolio/config"
	"github.com/ktimofeev/robinfolio/internal/externalApi"
	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/robinhoodModel"
	"github.com/ktimofeev/robinfolio/utils"
)

// Pagination cursors occasionally leak Robinhood's internal load balancer
// host; it has to be rewritten to the public API host to stay reachable.
const internalLbHost = "http://loadbalancer-brokeback.nginx.service.robinhood"

type RobinhoodApi struct {
	client *resty.Client
	cfg    *config.Config

	// instrument ID -> ticker, instruments are immutable so no expiration
	instruments map[string]string
}

func New(cfg *config.Config) *RobinhoodApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.Robinhood.Url).
		SetHeader("Authorization", "Bearer "+cfg.API.Robinhood.Token).
		SetHeader("Accept", "*/*").
		SetHeader("X-Robinhood-API-Version", cfg.API.Robinhood.ApiVersion)
	return &RobinhoodApi{client: client, cfg: cfg, instruments: make(map[string]string)}
}

// GetOrderHistory walks the whole paginated order feed and returns every
// filled buy/sell order, normalized into model.Order with the ticker
// resolved from the instrument ID. Cancelled and pending orders are skipped.
func (a *RobinhoodApi) GetOrderHistory(ctx context.Context) ([]model.Order, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RobinhoodApi.GetOrderHistory"

	slog.Debug("GetOrderHistory start", slog.String("rqID", rqID), slog.String("op", op))

	orders := []model.Order{}
	url := "/orders/"

	for url != "" {
		page, err := a.getOrdersPage(ctx, url)
		if err != nil {
			slog.Error("error while dialing RobinhoodApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, err
		}

		for _, raw := range page.Results {
			if raw.State != "filled" || (raw.Side != "buy" && raw.Side != "sell") {
				continue
			}

			order, err := a.parseRawOrder(ctx, raw)
			if err != nil {
				slog.Error("can't parse raw order", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
				return nil, err
			}

			orders = append(orders, order)
		}

		url = strings.Replace(page.Next, internalLbHost, a.cfg.API.Robinhood.Url, 1)
	}

	slog.Debug("GetOrderHistory request complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("orders", len(orders)))

	return orders, nil
}

// GetQuote returns the last trade price for a ticker.
func (a *RobinhoodApi) GetQuote(ctx context.Context, ticker string) (robinhoodModel.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RobinhoodApi.GetQuote"

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get("/quotes/" + ticker + "/")
	if err != nil {
		slog.Error("error while dialing RobinhoodApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return robinhoodModel.Quote{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return robinhoodModel.Quote{}, externalApi.ErrNotFound
	}
	if resp.IsError() {
		return robinhoodModel.Quote{}, fmt.Errorf("quotes request failed with status %d", resp.StatusCode())
	}

	rawQuote := robinhoodModel.RawQuote{}
	err = json.Unmarshal(resp.Body(), &rawQuote)
	if err != nil {
		slog.Error("can't unmarshall response into robinhoodModel.RawQuote", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return robinhoodModel.Quote{}, err
	}

	price, err := decimal.NewFromString(rawQuote.LastTradePrice)
	if err != nil {
		return robinhoodModel.Quote{}, fmt.Errorf("invalid last_trade_price %q: %w", rawQuote.LastTradePrice, err)
	}

	slog.Debug("GetQuote request complete", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker))

	return robinhoodModel.Quote{Ticker: rawQuote.Symbol, Price: price}, nil
}

func (a *RobinhoodApi) getOrdersPage(ctx context.Context, url string) (robinhoodModel.OrdersPage, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(url)
	if err != nil {
		return robinhoodModel.OrdersPage{}, err
	}

	if resp.IsError() {
		return robinhoodModel.OrdersPage{}, fmt.Errorf("orders request failed with status %d", resp.StatusCode())
	}

	page := robinhoodModel.OrdersPage{}
	err = json.Unmarshal(resp.Body(), &page)
	if err != nil {
		return robinhoodModel.OrdersPage{}, fmt.Errorf("can't unmarshall orders page: %w", err)
	}

	return page, nil
}

func (a *RobinhoodApi) parseRawOrder(ctx context.Context, raw robinhoodModel.RawOrder) (model.Order, error) {
	ticker, err := a.getTicker(ctx, raw.InstrumentID)
	if err != nil {
		return model.Order{}, err
	}

	quantity, err := decimal.NewFromString(raw.CumulativeQuantity)
	if err != nil {
		return model.Order{}, fmt.Errorf("order %s: invalid cumulative_quantity %q: %w", raw.ID, raw.CumulativeQuantity, err)
	}

	price, err := decimal.NewFromString(raw.AveragePrice)
	if err != nil {
		return model.Order{}, fmt.Errorf("order %s: invalid average_price %q: %w", raw.ID, raw.AveragePrice, err)
	}

	fees := decimal.Zero
	if raw.Fees != "" {
		fees, err = decimal.NewFromString(raw.Fees)
		if err != nil {
			return model.Order{}, fmt.Errorf("order %s: invalid fees %q: %w", raw.ID, raw.Fees, err)
		}
	}

	return model.Order{
		ID:         raw.ID,
		Ticker:     ticker,
		Side:       model.Side(strings.ToUpper(raw.Side)),
		Quantity:   quantity,
		Price:      price,
		Fees:       fees,
		ExecutedAt: raw.LastTransactionAt,
	}, nil
}

// getTicker resolves an instrument ID through /instruments/{id}/ and
// memoizes the result for the lifetime of the client.
func (a *RobinhoodApi) getTicker(ctx context.Context, instrumentID string) (string, error) {
	if ticker, ok := a.instruments[instrumentID]; ok {
		return ticker, nil
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get("/instruments/" + instrumentID + "/")
	if err != nil {
		return "", err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return "", externalApi.ErrNotFound
	}
	if resp.IsError() {
		return "", fmt.Errorf("instruments request failed with status %d", resp.StatusCode())
	}

	instrument := robinhoodModel.Instrument{}
	err = json.Unmarshal(resp.Body(), &instrument)
	if err != nil {
		return "", fmt.Errorf("can't unmarshall instrument %s: %w", instrumentID, err)
	}

	if instrument.Symbol == "" {
		return "", fmt.Errorf("instrument %s has empty symbol", instrumentID)
	}

	a.instruments[instrumentID] = instrument.Symbol
	return instrument.Symbol, nil
}
