package reconciler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ktimofeev/robinfolio/internal/ledger"
	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/utils"
)

// Reconciler replays the full order history per security and produces the
// three record sets the sync layer pushes out: summaries, pass-through
// orders and sell lots.
type Reconciler struct {
	method  ledger.CostBasisMethod
	workers int
}

func New(method ledger.CostBasisMethod, workers int) *Reconciler {
	if workers < 1 {
		workers = 1
	}
	return &Reconciler{method: method, workers: workers}
}

// Run normalizes the raw history, partitions it by ticker and matches each
// partition independently. Checkpoints map ticker to the last order ID that
// was durably synced: orders and sell lots up to and including it are
// omitted from the result, the summary is always recomputed from the whole
// history. Securities are independent, so partitions run in parallel and a
// fault in one never blocks the others.
//
// The pipeline is a pure function of (orders, checkpoints, prices): running
// it twice on the same inputs yields the same results.
func (r *Reconciler) Run(
	ctx context.Context,
	orders []model.Order,
	checkpoints map[string]string,
	prices map[string]decimal.Decimal,
) ([]model.SecurityResult, model.RunReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Reconciler.Run"

	report := model.RunReport{StartedAt: time.Now(), Failed: make(map[string]string)}

	normalized, err := ledger.NormalizeOrders(orders)
	if err != nil {
		slog.Error("order history rejected at ingestion", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, report, err
	}

	partitions := ledger.GroupByTicker(normalized)

	tickers := make([]string, 0, len(partitions))
	for ticker := range partitions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	results := make([]model.SecurityResult, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var price *decimal.Decimal
			if p, ok := prices[ticker]; ok {
				price = &p
			}

			results[i] = r.reconcileSecurity(partitions[ticker], checkpoints[ticker], price)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	for _, res := range results {
		if res.Err != nil {
			slog.Warn(
				"security reconciled with fault",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("ticker", res.Ticker),
				slog.String("err", res.Err.Error()),
			)
			report.Failed[res.Ticker] = res.Err.Error()
			continue
		}
		report.Succeeded = append(report.Succeeded, res.Ticker)
	}

	report.FinishedAt = time.Now()

	slog.Info(
		"reconciliation run finished",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("securities", len(results)),
		slog.Int("failed", len(report.Failed)),
	)

	return results, report, nil
}

// reconcileSecurity matches one ticker's full history and trims the output
// record sets to what lies after the sync checkpoint.
func (r *Reconciler) reconcileSecurity(orders []model.Order, checkpoint string, price *decimal.Decimal) model.SecurityResult {
	ticker := orders[0].Ticker

	sellLots, open, err := ledger.MatchLots(orders, r.method)

	summary := ledger.Summarize(ticker, open, sellLots, price)
	summary.Stale = err != nil

	// The matcher always replays everything; the checkpoint only decides
	// which rows still need to go out.
	newOrders := ordersAfter(orders, checkpoint)
	newSellLots := sellLotsFor(sellLots, newOrders)

	return model.SecurityResult{
		Ticker:     ticker,
		Summary:    summary,
		Orders:     newOrders,
		SellLots:   newSellLots,
		OpenLots:   open,
		Checkpoint: orders[len(orders)-1].ID,
		Err:        err,
	}
}

func ordersAfter(orders []model.Order, checkpoint string) []model.Order {
	if checkpoint == "" {
		return orders
	}
	for i, o := range orders {
		if o.ID == checkpoint {
			return orders[i+1:]
		}
	}
	// Unknown checkpoint: resync everything, upserts make that harmless.
	return orders
}

func sellLotsFor(sellLots []model.SellLot, orders []model.Order) []model.SellLot {
	ids := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.Side == model.Sell {
			ids[o.ID] = struct{}{}
		}
	}

	res := make([]model.SellLot, 0, len(sellLots))
	for _, sl := range sellLots {
		if _, ok := ids[sl.SellOrderID]; ok {
			res = append(res, sl)
		}
	}
	return res
}
