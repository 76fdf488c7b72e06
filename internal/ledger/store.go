package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("ledger: not found")

// Store is the persistence contract for cost records and per-shop state.
// Range arguments are inclusive instants; implementations compare against
// day-normalized record dates, so callers pass start-of-day and end-of-day
// boundaries.
type Store interface {
	// UpsertDailyCost reconciles one day of platform spend, keyed by
	// (shop, platform, calendar day of date). Repeated calls with revised
	// amounts overwrite; they never accumulate.
	UpsertDailyCost(ctx context.Context, shop, platform string, date time.Time, amount float64, description string) error

	SumMarketingCosts(ctx context.Context, shop string, start, end time.Time) (float64, error)
	SumFixedCosts(ctx context.Context, shop string, start, end time.Time) (float64, error)
	SumManualCosts(ctx context.Context, shop string, start, end time.Time) (ManualCostTotals, error)

	CreateFixedCost(ctx context.Context, fc FixedCost) (FixedCost, error)
	ListFixedCosts(ctx context.Context, shop string) ([]FixedCost, error)
	DeleteFixedCost(ctx context.Context, shop, id string) error

	CreateManualCost(ctx context.Context, mc ManualCost) (ManualCost, error)
	ListManualCosts(ctx context.Context, shop string, start, end time.Time) ([]ManualCost, error)
	DeleteManualCost(ctx context.Context, shop, id string) error

	GetIntegration(ctx context.Context, shop, platform string) (Integration, error)
	UpsertIntegration(ctx context.Context, in Integration) error
	ListActiveIntegrations(ctx context.Context) ([]Integration, error)
	SaveCredentials(ctx context.Context, shop, platform string, credentials []byte) error
	UpdateLastSync(ctx context.Context, shop, platform string, at time.Time) error

	GetSettings(ctx context.Context, shop string) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
	GetTargets(ctx context.Context, shop string) (MetricTargets, error)
	SaveTargets(ctx context.Context, t MetricTargets) error
}
