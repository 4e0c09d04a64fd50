package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ktimofeev/robinfolio/config"
	"github.com/ktimofeev/robinfolio/data"
	"github.com/ktimofeev/robinfolio/data/cache"
	"github.com/ktimofeev/robinfolio/data/repository"
	"github.com/ktimofeev/robinfolio/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/ktimofeev/robinfolio/internal/externalApi/notionApi"
	"github.com/ktimofeev/robinfolio/internal/externalApi/robinhoodApi"
	"github.com/ktimofeev/robinfolio/internal/ledger"
	"github.com/ktimofeev/robinfolio/internal/reconciler"
	"github.com/ktimofeev/robinfolio/internal/reportGenerator/xlsxGenerator"
	"github.com/ktimofeev/robinfolio/internal/scheduler"
	"github.com/ktimofeev/robinfolio/internal/service/portfolioService"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := repository.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)

	robinhoodApiClient := robinhoodApi.New(cfg)
	notionApiClient := notionApi.New(cfg)

	costBasisMethod, err := ledger.ParseCostBasisMethod(cfg.Reconcile.CostBasisMethod)
	if err != nil {
		slog.Error("invalid cost basis method", slog.String("err", err.Error()))
		panic(err)
	}

	rec := reconciler.New(costBasisMethod, cfg.Reconcile.Workers)

	reportGenerator := xlsxGenerator.New()

	googleCloudStorage := googleDriveApi.New(ctx, cfg)

	portfolioSrv := portfolioService.New(pgRepo, redisCache, robinhoodApiClient, notionApiClient, rec, reportGenerator, googleCloudStorage)

	sched := scheduler.New()
	sched.NewIntervalJob("sync portfolio", portfolioSrv.SyncPortfolio, cfg.Jobs.SyncPortfolioInterval, true)
	sched.NewCrontabJob("weekly gains report", func(ctx context.Context) error {
		link, err := portfolioSrv.GenerateGainsReport(ctx)
		if err != nil {
			return err
		}
		slog.Info("gains report uploaded", slog.String("link", link))
		return nil
	}, "0 8 * * 1")
	sched.Start()
	defer sched.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-interrupt
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
