// Package ledger persists the per-day, per-platform cost records a shop's
// profitability report is built from, together with the integration,
// settings and target state that hangs off a shop.
package ledger

import (
	"encoding/json"
	"time"
)

// Manual cost categories. Anything else is bucketed as "other".
const (
	CategoryShipping = "shipping"
	CategoryCOGS     = "cogs"
	CategoryOther    = "other"
)

// MarketingCost is one reconciled day of ad spend for a platform. Within a
// (shop, platform) pair at most one record exists per calendar day; re-syncs
// overwrite the amount (last writer wins).
type MarketingCost struct {
	ID          string    `json:"id"`
	Shop        string    `json:"shop"`
	Platform    string    `json:"platform"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FixedCost is a user-entered operating cost. A recurring cost contributes a
// prorated share to any overlapping query range; a one-off contributes its
// full amount only when its start date falls inside the range.
type FixedCost struct {
	ID          string     `json:"id"`
	Shop        string     `json:"shop"`
	Category    string     `json:"category"`
	Amount      float64    `json:"amount"`
	Recurring   bool       `json:"recurring"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ManualCost is a user-entered cost tied to a single day, bucketed by
// category into the report's variable-cost lines.
type ManualCost struct {
	ID          string    `json:"id"`
	Shop        string    `json:"shop"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
}

// ManualCostTotals buckets manual costs for a range.
type ManualCostTotals struct {
	Shipping float64 `json:"shipping"`
	COGS     float64 `json:"cogs"`
	Other    float64 `json:"other"`
}

// CostSummary aggregates every cost source over a range.
type CostSummary struct {
	Marketing float64          `json:"marketing"`
	Fixed     float64          `json:"fixed"`
	Manual    ManualCostTotals `json:"manual"`
}

// Total returns the sum of all cost lines.
func (c CostSummary) Total() float64 {
	return c.Marketing + c.Fixed + c.Manual.Shipping + c.Manual.COGS + c.Manual.Other
}

// Integration is a shop's connection to one ad platform. Credentials are an
// opaque blob owned by that platform's adapter; the orchestrator only moves
// it around.
type Integration struct {
	Shop        string          `json:"shop"`
	Platform    string          `json:"platform"`
	IsActive    bool            `json:"isActive"`
	Credentials json.RawMessage `json:"credentials,omitempty"`
	LastSync    time.Time       `json:"lastSync,omitempty"`
}

// Settings carries per-shop report configuration.
type Settings struct {
	Shop                  string  `json:"shop"`
	TransactionFeePercent float64 `json:"transactionFeePercent"`
	Currency              string  `json:"currency"`
	Timezone              string  `json:"timezone"`
	// NewCustomerWindowHours is the journey-to-first-order window used by the
	// external order system to classify a customer as new. Kept configurable;
	// the heuristic misclassifies returning customers without journey data.
	NewCustomerWindowHours int `json:"newCustomerWindowHours"`
}

// DefaultSettings returns the settings applied to a shop that never saved any.
func DefaultSettings(shop string) Settings {
	return Settings{
		Shop:                  shop,
		TransactionFeePercent: 3.0,
		Currency:              "USD",
		Timezone:              "UTC",
		NewCustomerWindowHours: 24,
	}
}

// MetricTargets holds a shop's monthly goals. A nil field disables target
// evaluation for that metric.
type MetricTargets struct {
	Shop               string   `json:"shop"`
	TotalSales         *float64 `json:"totalSales,omitempty"`
	GrossProfit        *float64 `json:"grossProfit,omitempty"`
	ContributionProfit *float64 `json:"contributionProfit,omitempty"`
	NetProfit          *float64 `json:"netProfit,omitempty"`
	MarketingCosts     *float64 `json:"marketingCosts,omitempty"`
}
