// Package syncer drives the historical reconciliation of platform ad spend
// into the cost ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/profitlens/profitlens/internal/adapters"
	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/ledger"
	"github.com/profitlens/profitlens/internal/observability"
)

var (
	ErrNotConnected      = errors.New("not connected")
	ErrNoAccountSelected = errors.New("no account selected")
	ErrUnknownPlatform   = errors.New("unknown platform")
)

// DefaultSyncDays is the backfill window when the caller does not pick one.
const DefaultSyncDays = 30

// Result is the structured outcome of one sync invocation. Failures are
// reported here, never raised past the orchestrator boundary.
type Result struct {
	Success     bool    `json:"success"`
	TotalAmount float64 `json:"totalAmount"`
	SyncedDays  int     `json:"syncedDays"`
	Error       string  `json:"error,omitempty"`
}

// Orchestrator runs the per-(shop, platform) sync state machine: load
// integration, freshen token, resolve account, fetch, reconcile, finalize.
type Orchestrator struct {
	store    ledger.Store
	adapters map[string]adapters.Adapter
	cache    *cache.Cache
	metrics  *observability.Metrics
	log      *slog.Logger
	throttle time.Duration
	group    singleflight.Group
	now      func() time.Time
}

func New(store ledger.Store, adapterList []adapters.Adapter, c *cache.Cache, m *observability.Metrics, log *slog.Logger, throttle time.Duration) *Orchestrator {
	byPlatform := make(map[string]adapters.Adapter, len(adapterList))
	for _, a := range adapterList {
		byPlatform[a.Platform()] = a
	}
	return &Orchestrator{
		store:    store,
		adapters: byPlatform,
		cache:    c,
		metrics:  m,
		log:      log,
		throttle: throttle,
		now:      time.Now,
	}
}

// SyncHistorical reconciles the last days of spend for one (shop, platform).
// Concurrent invocations for the same pair collapse into a single run.
func (o *Orchestrator) SyncHistorical(ctx context.Context, shop, platform string, days int) Result {
	v, _, _ := o.group.Do(shop+"|"+platform, func() (any, error) {
		return o.run(ctx, shop, platform, days), nil
	})
	return v.(Result)
}

func (o *Orchestrator) run(ctx context.Context, shop, platform string, days int) Result {
	if days <= 0 {
		days = DefaultSyncDays
	}
	log := o.log.With(slog.String("shop", shop), slog.String("platform", platform))
	log.Info("sync start", slog.Int("days", days))

	adapter, ok := o.adapters[platform]
	if !ok {
		return o.fail(log, platform, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform))
	}

	integration, err := o.store.GetIntegration(ctx, shop, platform)
	if errors.Is(err, ledger.ErrNotFound) {
		return o.fail(log, platform, ErrNotConnected)
	}
	if err != nil {
		return o.fail(log, platform, err)
	}
	if !integration.IsActive || len(integration.Credentials) == 0 {
		return o.fail(log, platform, ErrNotConnected)
	}
	creds := integration.Credentials

	// refreshed credentials are persisted before any fetch so a crash
	// mid-sync never strands a fresh token
	fresh, changed, err := adapter.EnsureFresh(ctx, creds)
	if err != nil {
		return o.fail(log, platform, err)
	}
	if changed {
		if err := o.store.SaveCredentials(ctx, shop, platform, fresh); err != nil {
			return o.fail(log, platform, err)
		}
		creds = fresh
		log.Info("sync token refreshed")
	}

	accountID := adapter.SelectedAccount(creds)
	if accountID == "" {
		accounts := adapter.ListAccounts(ctx, creds)
		if len(accounts) == 0 {
			return o.fail(log, platform, ErrNoAccountSelected)
		}
		accountID = accounts[0].ID
		if creds, err = adapter.WithSelectedAccount(creds, accountID); err != nil {
			return o.fail(log, platform, err)
		}
		if err := o.store.SaveCredentials(ctx, shop, platform, creds); err != nil {
			return o.fail(log, platform, err)
		}
		log.Info("sync account auto-selected", slog.String("account", accountID))
	}

	end := o.now()
	start := end.AddDate(0, 0, -days)
	spend, err := adapter.FetchDailySpend(ctx, creds, accountID, start, end)
	if err != nil {
		return o.fail(log, platform, err)
	}
	log.Info("sync fetched", slog.Int("daysReported", len(spend)))

	var total float64
	stored := 0
	for _, s := range spend {
		if s.Amount <= 0 {
			continue
		}
		if err := o.store.UpsertDailyCost(ctx, shop, platform, s.Date, s.Amount, platform+" ads"); err != nil {
			return o.fail(log, platform, fmt.Errorf("persist day %s: %w", s.Date.Format("2006-01-02"), err))
		}
		total += s.Amount
		stored++
	}

	// reconciliation happens-before the lastSync advance: a crash above
	// leaves lastSync unmoved and the run safe to retry
	if err := o.store.UpdateLastSync(ctx, shop, platform, o.now()); err != nil {
		return o.fail(log, platform, err)
	}
	if err := o.cache.Bump(ctx); err != nil {
		log.Warn("sync cache bump failed", slog.String("err", err.Error()))
	}

	o.metrics.ObserveSync(platform, "success", total)
	log.Info("sync complete", slog.Int("storedDays", stored), slog.Float64("totalAmount", total))
	return Result{Success: true, TotalAmount: total, SyncedDays: stored}
}

func (o *Orchestrator) fail(log *slog.Logger, platform string, err error) Result {
	o.metrics.ObserveSync(platform, "failure", 0)
	log.Warn("sync failed", slog.String("err", err.Error()))
	return Result{Success: false, Error: err.Error()}
}

// RunDue sweeps every active integration and syncs the ones whose last
// successful run is older than the throttle window. Used by the background
// ticker; failures are logged and skipped.
func (o *Orchestrator) RunDue(ctx context.Context, days int) {
	integrations, err := o.store.ListActiveIntegrations(ctx)
	if err != nil {
		o.log.Warn("auto-sync: list integrations failed", slog.String("err", err.Error()))
		return
	}
	for _, in := range integrations {
		if o.now().Sub(in.LastSync) < o.throttle {
			continue
		}
		if res := o.SyncHistorical(ctx, in.Shop, in.Platform, days); !res.Success {
			o.log.Warn("auto-sync failed",
				slog.String("shop", in.Shop),
				slog.String("platform", in.Platform),
				slog.String("err", res.Error))
		}
		if ctx.Err() != nil {
			return
		}
	}
}
