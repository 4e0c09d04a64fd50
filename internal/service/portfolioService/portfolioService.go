package portfolioService

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ktimofeev/robinfolio/internal/model"
	"github.com/ktimofeev/robinfolio/internal/model/robinhoodModel"
	"github.com/ktimofeev/robinfolio/internal/service"
	"github.com/ktimofeev/robinfolio/utils"
)

type BrokerageApi interface {
	GetOrderHistory(ctx context.Context) ([]model.Order, error)
	GetQuote(ctx context.Context, ticker string) (robinhoodModel.Quote, error)
}

type SyncApi interface {
	SyncSecurity(ctx context.Context, res model.SecurityResult) error
}

type Repository interface {
	UpsertOrders(ctx context.Context, orders []model.Order) error
	GetAllOrders(ctx context.Context) ([]model.Order, error)
	GetCheckpoints(ctx context.Context) (map[string]string, error)
	UpsertCheckpoint(ctx context.Context, ticker, lastOrderID string) error
	InsertSyncRun(ctx context.Context, report model.RunReport) error
}

type Cache interface {
	GetQuote(ctx context.Context, ticker string) (robinhoodModel.Quote, error)
	SetQuote(ctx context.Context, quote robinhoodModel.Quote) error
}

type Reconciler interface {
	Run(ctx context.Context, orders []model.Order, checkpoints map[string]string, prices map[string]decimal.Decimal) ([]model.SecurityResult, model.RunReport, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, results []model.SecurityResult) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

type PortfolioService struct {
	repo       Repository
	cache      Cache
	brokerage  BrokerageApi
	syncApi    SyncApi
	reconciler Reconciler
	reports    ReportGenerator
	storage    CloudStorage
}

func New(
	repo Repository,
	cache Cache,
	brokerage BrokerageApi,
	syncApi SyncApi,
	reconciler Reconciler,
	reports ReportGenerator,
	storage CloudStorage,
) *PortfolioService {
	return &PortfolioService{
		repo:       repo,
		cache:      cache,
		brokerage:  brokerage,
		syncApi:    syncApi,
		reconciler: reconciler,
		reports:    reports,
		storage:    storage,
	}
}

// SyncPortfolio is the full pipeline: fetch the order history, persist it,
// reconcile every security against its checkpoint and push the record sets
// to Notion. A security's checkpoint moves only after its whole record set
// synced cleanly, so an interrupted run redoes work instead of losing it.
func (s *PortfolioService) SyncPortfolio(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.SyncPortfolio"

	slog.Debug("SyncPortfolio start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("SyncPortfolio finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	fetched, err := s.brokerage.GetOrderHistory(ctx)
	if err != nil {
		slog.Error("got error from brokerage.GetOrderHistory", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if len(fetched) > 0 {
		err = s.repo.UpsertOrders(ctx, fetched)
		if err != nil {
			slog.Error("got error from repo.UpsertOrders", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return err
		}
	}

	results, report, err := s.reconcile(ctx)
	if err != nil {
		return err
	}

	// Sync failures demote a security from succeeded to failed; its
	// checkpoint stays put and the next run picks the same rows up again.
	succeeded := make([]string, 0, len(report.Succeeded))
	for _, res := range results {
		err := s.syncApi.SyncSecurity(ctx, res)
		if err != nil {
			slog.Error("got error from syncApi.SyncSecurity", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", res.Ticker), slog.String("err", err.Error()))
			report.Failed[res.Ticker] = err.Error()
			continue
		}

		if res.Err != nil {
			continue
		}

		err = s.repo.UpsertCheckpoint(ctx, res.Ticker, res.Checkpoint)
		if err != nil {
			slog.Error("got error from repo.UpsertCheckpoint", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", res.Ticker), slog.String("err", err.Error()))
			report.Failed[res.Ticker] = err.Error()
			continue
		}

		succeeded = append(succeeded, res.Ticker)
	}
	report.Succeeded = succeeded

	err = s.repo.InsertSyncRun(ctx, report)
	if err != nil {
		slog.Error("got error from repo.InsertSyncRun", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	slog.Info(
		"portfolio sync finished",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int("succeeded", len(report.Succeeded)),
		slog.Int("failed", len(report.Failed)),
	)

	return nil
}

// GenerateGainsReport reconciles the whole history from scratch, renders
// the gains workbook and uploads it to cloud storage.
func (s *PortfolioService) GenerateGainsReport(ctx context.Context) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GenerateGainsReport"

	slog.Debug("GenerateGainsReport start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GenerateGainsReport finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	orders, err := s.repo.GetAllOrders(ctx)
	if err != nil {
		slog.Error("got error from repo.GetAllOrders", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	if len(orders) == 0 {
		return "", service.ErrEmptyHistory
	}

	prices := s.getPrices(ctx, tickersOf(orders))

	// Empty checkpoints: the report always covers the full history.
	results, _, err := s.reconciler.Run(ctx, orders, nil, prices)
	if err != nil {
		slog.Error("got error from reconciler.Run", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	fileBytes, fileExtension, err := s.reports.Generate(ctx, results)
	if err != nil {
		slog.Error("got error from reports.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	filename := fmt.Sprintf("gains_%s%s", time.Now().Format("2006-01-02"), fileExtension)

	downloadLink, err = s.storage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from storage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	go s.storage.DeleteOldFiles(context.WithoutCancel(ctx))

	return downloadLink, nil
}

func (s *PortfolioService) reconcile(ctx context.Context) ([]model.SecurityResult, model.RunReport, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.reconcile"

	orders, err := s.repo.GetAllOrders(ctx)
	if err != nil {
		slog.Error("got error from repo.GetAllOrders", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, model.RunReport{}, err
	}

	if len(orders) == 0 {
		return nil, model.RunReport{}, service.ErrEmptyHistory
	}

	checkpoints, err := s.repo.GetCheckpoints(ctx)
	if err != nil {
		slog.Error("got error from repo.GetCheckpoints", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, model.RunReport{}, err
	}

	prices := s.getPrices(ctx, tickersOf(orders))

	results, report, err := s.reconciler.Run(ctx, orders, checkpoints, prices)
	if err != nil {
		slog.Error("got error from reconciler.Run", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, model.RunReport{}, err
	}

	return results, report, nil
}

// getPrices collects the best-effort quote map for unrealized gains: cache
// first, then the brokerage. A missing quote is not an error, the affected
// summary just carries realized figures only.
func (s *PortfolioService) getPrices(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.getPrices"

	prices := make(map[string]decimal.Decimal, len(tickers))

	for _, ticker := range tickers {
		quote, err := s.cache.GetQuote(ctx, ticker)
		if err == nil {
			prices[ticker] = quote.Price
			continue
		}

		quote, err = s.brokerage.GetQuote(ctx, ticker)
		if err != nil {
			slog.Warn("can't get quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
			continue
		}

		prices[ticker] = quote.Price

		go s.cache.SetQuote(context.WithoutCancel(ctx), quote)
	}

	return prices
}

func tickersOf(orders []model.Order) []string {
	seen := make(map[string]struct{})
	tickers := make([]string, 0)
	for _, o := range orders {
		if _, ok := seen[o.Ticker]; ok {
			continue
		}
		seen[o.Ticker] = struct{}{}
		tickers = append(tickers, o.Ticker)
	}
	return tickers
}
