package profit

import (
	"context"
	"log/slog"
	"time"

	"github.com/profitlens/profitlens/internal/cache"
	"github.com/profitlens/profitlens/internal/ledger"
	"github.com/profitlens/profitlens/internal/money"
	"github.com/profitlens/profitlens/internal/observability"
)

// RevenueSource queries the external order system for a range of sales.
type RevenueSource interface {
	Fetch(ctx context.Context, shop string, start, end time.Time, newCustomerWindowHours int) (Sales, error)
}

// Trends carries period-over-period percentages for the headline metrics.
type Trends struct {
	TotalSales         float64 `json:"totalSales"`
	OrderCount         float64 `json:"orderCount"`
	GrossProfit        float64 `json:"grossProfit"`
	ContributionProfit float64 `json:"contributionProfit"`
	NetProfit          float64 `json:"netProfit"`
	MarketingCosts     float64 `json:"marketingCosts"`
}

// Targets holds the evaluated goals; nil entries mean no target configured.
type Targets struct {
	TotalSales         *TargetEval `json:"totalSales,omitempty"`
	GrossProfit        *TargetEval `json:"grossProfit,omitempty"`
	ContributionProfit *TargetEval `json:"contributionProfit,omitempty"`
	NetProfit          *TargetEval `json:"netProfit,omitempty"`
	MarketingCosts     *TargetEval `json:"marketingCosts,omitempty"`
}

// Report is the dashboard payload for one shop and period.
type Report struct {
	Shop     string             `json:"shop"`
	Period   string             `json:"period"`
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	Currency string             `json:"currency"`
	Sales    Sales              `json:"sales"`
	Costs    ledger.CostSummary `json:"costs"`
	Metrics  Metrics            `json:"metrics"`
	Trends   Trends             `json:"trends"`
	Targets  Targets            `json:"targets"`
	// Warning is set when the revenue source was unavailable and the report
	// degraded to cost-only figures.
	Warning string `json:"warning,omitempty"`
}

// Reporter assembles reports from the ledger, the revenue source and the
// shop's settings, with an optional cache in front.
type Reporter struct {
	store   ledger.Store
	revenue RevenueSource
	cache   *cache.Cache
	metrics *observability.Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewReporter(store ledger.Store, revenue RevenueSource, c *cache.Cache, m *observability.Metrics, log *slog.Logger) *Reporter {
	return &Reporter{store: store, revenue: revenue, cache: c, metrics: m, log: log, now: time.Now}
}

// Costs aggregates every cost source for the range.
func (r *Reporter) Costs(ctx context.Context, shop string, start, end time.Time) (ledger.CostSummary, error) {
	marketing, err := r.store.SumMarketingCosts(ctx, shop, start, end)
	if err != nil {
		return ledger.CostSummary{}, err
	}
	fixed, err := r.store.SumFixedCosts(ctx, shop, start, end)
	if err != nil {
		return ledger.CostSummary{}, err
	}
	manual, err := r.store.SumManualCosts(ctx, shop, start, end)
	if err != nil {
		return ledger.CostSummary{}, err
	}
	return ledger.CostSummary{Marketing: marketing, Fixed: fixed, Manual: manual}, nil
}

// Report computes (or serves from cache) the profit report for a named
// period, including trends against the preceding comparable period.
func (r *Reporter) Report(ctx context.Context, shop, periodKey string) (Report, error) {
	key, err := r.cache.Key(ctx, "report", shop, periodKey)
	if err != nil {
		return Report{}, err
	}
	var report Report
	err = r.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		return r.build(ctx, shop, periodKey)
	})
	if err != nil {
		return Report{}, err
	}
	r.metrics.ObserveReport()
	return report, nil
}

func (r *Reporter) build(ctx context.Context, shop, periodKey string) (Report, error) {
	settings, err := r.store.GetSettings(ctx, shop)
	if err != nil {
		return Report{}, err
	}
	start, end := money.ResolvePeriodAt(r.now(), periodKey, settings.Timezone)

	costs, err := r.Costs(ctx, shop, start, end)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Shop:     shop,
		Period:   periodKey,
		Start:    start,
		End:      end,
		Currency: settings.Currency,
		Costs:    costs,
	}

	// a dead revenue source degrades the report to cost-only figures
	// instead of failing it
	sales, err := r.revenue.Fetch(ctx, shop, start, end, settings.NewCustomerWindowHours)
	if err != nil {
		r.log.Warn("report: revenue source unavailable, falling back to cost-only",
			slog.String("shop", shop), slog.String("err", err.Error()))
		sales = Sales{}
		report.Warning = "revenue data unavailable; showing cost-only metrics"
	}
	report.Sales = sales
	report.Metrics = Compute(sales, costs, settings.TransactionFeePercent)

	prevStart, prevEnd := money.PriorRange(start, end)
	prevCosts, err := r.Costs(ctx, shop, prevStart, prevEnd)
	if err != nil {
		return Report{}, err
	}
	prevSales, err := r.revenue.Fetch(ctx, shop, prevStart, prevEnd, settings.NewCustomerWindowHours)
	if err != nil {
		prevSales = Sales{}
	}
	prev := Compute(prevSales, prevCosts, settings.TransactionFeePercent)

	report.Trends = Trends{
		TotalSales:         money.Trend(report.Metrics.TotalSales, prev.TotalSales),
		OrderCount:         money.Trend(float64(sales.OrderCount), float64(prevSales.OrderCount)),
		GrossProfit:        money.Trend(report.Metrics.GrossProfit, prev.GrossProfit),
		ContributionProfit: money.Trend(report.Metrics.ContributionProfit, prev.ContributionProfit),
		NetProfit:          money.Trend(report.Metrics.NetProfit, prev.NetProfit),
		MarketingCosts:     money.Trend(report.Metrics.MarketingCosts, prev.MarketingCosts),
	}

	targets, err := r.store.GetTargets(ctx, shop)
	if err != nil {
		return Report{}, err
	}
	days := money.DaysBetween(start, end)
	report.Targets = Targets{
		TotalSales:         EvaluateTarget(report.Metrics.TotalSales, days, targets.TotalSales),
		GrossProfit:        EvaluateTarget(report.Metrics.GrossProfit, days, targets.GrossProfit),
		ContributionProfit: EvaluateTarget(report.Metrics.ContributionProfit, days, targets.ContributionProfit),
		NetProfit:          EvaluateTarget(report.Metrics.NetProfit, days, targets.NetProfit),
		MarketingCosts:     EvaluateTarget(report.Metrics.MarketingCosts, days, targets.MarketingCosts),
	}
	return report, nil
}
