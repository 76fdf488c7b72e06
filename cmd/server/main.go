package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/profitlens/profitlens/internal/adapters"
	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/config"
	"github.com/profitlens/profitlens/internal/httpx"
	"github.com/profitlens/profitlens/internal/ledger"
	"github.com/profitlens/profitlens/internal/observability"
	"github.com/profitlens/profitlens/internal/profit"
	"github.com/profitlens/profitlens/internal/revenue"
	"github.com/profitlens/profitlens/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store ledger.Store
	if cfg.PGDSN != "" {
		pool, err := ledger.NewPool(ctx, cfg.PGDSN)
		if err != nil {
			logger.Error("postgres error", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()
		store = ledger.NewPostgresStore(pool)
	} else {
		logger.Warn("PG_DSN not set, using in-memory ledger store")
		store = ledger.NewMemoryStore()
	}

	var reportCache *cache.Cache
	if cfg.RedisAddr != "" {
		client, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("redis error", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer client.Close()
		reportCache = cache.New(client, cfg.ReportCacheTTL)
	}

	metrics := observability.New()
	httpc := adapters.NewHTTPClient(cfg.HTTPTimeout)
	adapterList := []adapters.Adapter{
		adapters.NewMeta(httpc, adapters.MetaConfig{
			BaseURL:   cfg.MetaAPIURL,
			AppID:     cfg.MetaAppID,
			AppSecret: cfg.MetaAppSecret,
		}, logger),
		adapters.NewGoogle(httpc, adapters.GoogleConfig{
			BaseURL:        cfg.GoogleAPIURL,
			TokenURL:       cfg.GoogleTokenURL,
			ClientID:       cfg.GoogleClientID,
			ClientSecret:   cfg.GoogleClientSecret,
			DeveloperToken: cfg.GoogleDeveloperToken,
		}, logger),
	}

	orchestrator := syncer.New(store, adapterList, reportCache, metrics, logger, cfg.SyncThrottle)
	revenueSource := revenue.NewHTTPSource(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.OrdersAPIURL)
	reporter := profit.NewReporter(store, revenueSource, reportCache, metrics, logger)

	if cfg.AutoSync {
		go autoSync(ctx, orchestrator, cfg.SyncInterval, cfg.SyncDays, logger)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpx.NewRouter(logger, store, orchestrator, reporter, adapterList, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("err", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}

// autoSync periodically reconciles every active integration, honoring the
// orchestrator's per-integration throttle.
func autoSync(ctx context.Context, o *syncer.Orchestrator, interval time.Duration, days int, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Debug("auto-sync sweep")
			o.RunDue(ctx, days)
		}
	}
}
