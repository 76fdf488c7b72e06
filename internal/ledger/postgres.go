package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/profitlens/profitlens/internal/money"
)

// PostgresStore backs the ledger with Postgres. Schema in migrations/.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewPool connects and pings a pgx pool.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	return pool, nil
}

func (s *PostgresStore) UpsertDailyCost(ctx context.Context, shop, platform string, date time.Time, amount float64, description string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO marketing_costs (id, shop, platform, date, amount, description, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (shop, platform, date)
		DO UPDATE SET amount = EXCLUDED.amount, description = EXCLUDED.description, updated_at = now()`,
		uuid.NewString(), shop, platform, money.Day(date), amount, description)
	if err != nil {
		return fmt.Errorf("ledger: upsert daily cost: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumMarketingCosts(ctx context.Context, shop string, start, end time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM marketing_costs
		WHERE shop = $1 AND date >= $2 AND date <= $3`,
		shop, money.Day(start), money.Day(end)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ledger: sum marketing costs: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) SumFixedCosts(ctx context.Context, shop string, start, end time.Time) (float64, error) {
	// overlap filter in SQL, proration policy in Go (same code path as the
	// in-memory store)
	rows, err := s.pool.Query(ctx, `
		SELECT amount, recurring, start_date, end_date FROM fixed_costs
		WHERE shop = $1 AND start_date <= $3 AND (end_date IS NULL OR end_date >= $2)`,
		shop, money.Day(start), money.Day(end))
	if err != nil {
		return 0, fmt.Errorf("ledger: sum fixed costs: %w", err)
	}
	defer rows.Close()
	var total float64
	for rows.Next() {
		var fc FixedCost
		if err := rows.Scan(&fc.Amount, &fc.Recurring, &fc.StartDate, &fc.EndDate); err != nil {
			return 0, fmt.Errorf("ledger: scan fixed cost: %w", err)
		}
		total += fixedContribution(fc, start, end)
	}
	return total, rows.Err()
}

func (s *PostgresStore) SumManualCosts(ctx context.Context, shop string, start, end time.Time) (ManualCostTotals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COALESCE(SUM(amount), 0) FROM manual_costs
		WHERE shop = $1 AND date >= $2 AND date <= $3
		GROUP BY category`,
		shop, money.Day(start), money.Day(end))
	if err != nil {
		return ManualCostTotals{}, fmt.Errorf("ledger: sum manual costs: %w", err)
	}
	defer rows.Close()
	var totals ManualCostTotals
	for rows.Next() {
		var category string
		var amount float64
		if err := rows.Scan(&category, &amount); err != nil {
			return ManualCostTotals{}, fmt.Errorf("ledger: scan manual cost: %w", err)
		}
		bucketManual(&totals, ManualCost{Category: category, Amount: amount})
	}
	return totals, rows.Err()
}

func (s *PostgresStore) CreateFixedCost(ctx context.Context, fc FixedCost) (FixedCost, error) {
	if fc.ID == "" {
		fc.ID = uuid.NewString()
	}
	fc.StartDate = money.Day(fc.StartDate)
	if fc.EndDate != nil {
		d := money.Day(*fc.EndDate)
		fc.EndDate = &d
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fixed_costs (id, shop, category, amount, recurring, start_date, end_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		fc.ID, fc.Shop, fc.Category, fc.Amount, fc.Recurring, fc.StartDate, fc.EndDate, fc.Description)
	if err != nil {
		return FixedCost{}, fmt.Errorf("ledger: create fixed cost: %w", err)
	}
	return fc, nil
}

func (s *PostgresStore) ListFixedCosts(ctx context.Context, shop string) ([]FixedCost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, shop, category, amount, recurring, start_date, end_date, description
		FROM fixed_costs WHERE shop = $1 ORDER BY start_date`, shop)
	if err != nil {
		return nil, fmt.Errorf("ledger: list fixed costs: %w", err)
	}
	defer rows.Close()
	var out []FixedCost
	for rows.Next() {
		var fc FixedCost
		if err := rows.Scan(&fc.ID, &fc.Shop, &fc.Category, &fc.Amount, &fc.Recurring, &fc.StartDate, &fc.EndDate, &fc.Description); err != nil {
			return nil, fmt.Errorf("ledger: scan fixed cost: %w", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteFixedCost(ctx context.Context, shop, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fixed_costs WHERE shop = $1 AND id = $2`, shop, id)
	if err != nil {
		return fmt.Errorf("ledger: delete fixed cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateManualCost(ctx context.Context, mc ManualCost) (ManualCost, error) {
	if mc.ID == "" {
		mc.ID = uuid.NewString()
	}
	mc.Date = money.Day(mc.Date)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO manual_costs (id, shop, category, date, amount, description)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		mc.ID, mc.Shop, mc.Category, mc.Date, mc.Amount, mc.Description)
	if err != nil {
		return ManualCost{}, fmt.Errorf("ledger: create manual cost: %w", err)
	}
	return mc, nil
}

func (s *PostgresStore) ListManualCosts(ctx context.Context, shop string, start, end time.Time) ([]ManualCost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, shop, category, date, amount, description FROM manual_costs
		WHERE shop = $1 AND date >= $2 AND date <= $3 ORDER BY date`,
		shop, money.Day(start), money.Day(end))
	if err != nil {
		return nil, fmt.Errorf("ledger: list manual costs: %w", err)
	}
	defer rows.Close()
	var out []ManualCost
	for rows.Next() {
		var mc ManualCost
		if err := rows.Scan(&mc.ID, &mc.Shop, &mc.Category, &mc.Date, &mc.Amount, &mc.Description); err != nil {
			return nil, fmt.Errorf("ledger: scan manual cost: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteManualCost(ctx context.Context, shop, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM manual_costs WHERE shop = $1 AND id = $2`, shop, id)
	if err != nil {
		return fmt.Errorf("ledger: delete manual cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetIntegration(ctx context.Context, shop, platform string) (Integration, error) {
	var in Integration
	err := s.pool.QueryRow(ctx, `
		SELECT shop, platform, is_active, credentials, COALESCE(last_sync, 'epoch'::timestamptz)
		FROM integrations WHERE shop = $1 AND platform = $2`,
		shop, platform).Scan(&in.Shop, &in.Platform, &in.IsActive, &in.Credentials, &in.LastSync)
	if errors.Is(err, pgx.ErrNoRows) {
		return Integration{}, ErrNotFound
	}
	if err != nil {
		return Integration{}, fmt.Errorf("ledger: get integration: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) UpsertIntegration(ctx context.Context, in Integration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO integrations (shop, platform, is_active, credentials, last_sync)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop, platform)
		DO UPDATE SET is_active = EXCLUDED.is_active, credentials = EXCLUDED.credentials, last_sync = EXCLUDED.last_sync`,
		in.Shop, in.Platform, in.IsActive, in.Credentials, nullableTime(in.LastSync))
	if err != nil {
		return fmt.Errorf("ledger: upsert integration: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveIntegrations(ctx context.Context) ([]Integration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT shop, platform, is_active, credentials, COALESCE(last_sync, 'epoch'::timestamptz)
		FROM integrations WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list integrations: %w", err)
	}
	defer rows.Close()
	var out []Integration
	for rows.Next() {
		var in Integration
		if err := rows.Scan(&in.Shop, &in.Platform, &in.IsActive, &in.Credentials, &in.LastSync); err != nil {
			return nil, fmt.Errorf("ledger: scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveCredentials(ctx context.Context, shop, platform string, credentials []byte) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE integrations SET credentials = $3 WHERE shop = $1 AND platform = $2`,
		shop, platform, credentials)
	if err != nil {
		return fmt.Errorf("ledger: save credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateLastSync(ctx context.Context, shop, platform string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE integrations SET last_sync = $3 WHERE shop = $1 AND platform = $2`,
		shop, platform, at)
	if err != nil {
		return fmt.Errorf("ledger: update last sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSettings(ctx context.Context, shop string) (Settings, error) {
	set := DefaultSettings(shop)
	err := s.pool.QueryRow(ctx, `
		SELECT transaction_fee_percent, currency, timezone, new_customer_window_hours
		FROM settings WHERE shop = $1`, shop).
		Scan(&set.TransactionFeePercent, &set.Currency, &set.Timezone, &set.NewCustomerWindowHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSettings(shop), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("ledger: get settings: %w", err)
	}
	return set, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, set Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (shop, transaction_fee_percent, currency, timezone, new_customer_window_hours)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shop)
		DO UPDATE SET transaction_fee_percent = EXCLUDED.transaction_fee_percent,
			currency = EXCLUDED.currency, timezone = EXCLUDED.timezone,
			new_customer_window_hours = EXCLUDED.new_customer_window_hours`,
		set.Shop, set.TransactionFeePercent, set.Currency, set.Timezone, set.NewCustomerWindowHours)
	if err != nil {
		return fmt.Errorf("ledger: save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTargets(ctx context.Context, shop string) (MetricTargets, error) {
	t := MetricTargets{Shop: shop}
	err := s.pool.QueryRow(ctx, `
		SELECT total_sales, gross_profit, contribution_profit, net_profit, marketing_costs
		FROM metric_targets WHERE shop = $1`, shop).
		Scan(&t.TotalSales, &t.GrossProfit, &t.ContributionProfit, &t.NetProfit, &t.MarketingCosts)
	if errors.Is(err, pgx.ErrNoRows) {
		return MetricTargets{Shop: shop}, nil
	}
	if err != nil {
		return MetricTargets{}, fmt.Errorf("ledger: get targets: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) SaveTargets(ctx context.Context, t MetricTargets) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO metric_targets (shop, total_sales, gross_profit, contribution_profit, net_profit, marketing_costs)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (shop)
		DO UPDATE SET total_sales = EXCLUDED.total_sales, gross_profit = EXCLUDED.gross_profit,
			contribution_profit = EXCLUDED.contribution_profit, net_profit = EXCLUDED.net_profit,
			marketing_costs = EXCLUDED.marketing_costs`,
		t.Shop, t.TotalSales, t.GrossProfit, t.ContributionProfit, t.NetProfit, t.MarketingCosts)
	if err != nil {
		return fmt.Errorf("ledger: save targets: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
