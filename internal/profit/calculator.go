// Package profit derives gross/contribution/net profit, margins,
// distributions, trends and target status from revenue and reconciled costs.
package profit

import (
	"github.com/profitlens/profitlens/internal/ledger"
	"github.com/profitlens/profitlens/internal/money"
)

// Sales is the revenue payload produced by the external order system.
type Sales struct {
	TotalSales            float64 `json:"totalSales"`
	NewCustomerRevenue    float64 `json:"newCustomerRevenue"`
	ReturnCustomerRevenue float64 `json:"returnCustomerRevenue"`
	OrderCount            int     `json:"orderCount"`
	NewCustomerCount      int     `json:"newCustomerCount"`
	ReturnCustomerCount   int     `json:"returnCustomerCount"`
}

// Metrics is the computed profit breakdown for one period.
type Metrics struct {
	TotalSales         float64 `json:"totalSales"`
	TransactionFees    float64 `json:"transactionFees"`
	ShippingCosts      float64 `json:"shippingCosts"`
	COGS               float64 `json:"cogs"`
	VariableCosts      float64 `json:"variableCosts"`
	GrossProfit        float64 `json:"grossProfit"`
	MarketingCosts     float64 `json:"marketingCosts"`
	ContributionProfit float64 `json:"contributionProfit"`
	FixedCosts         float64 `json:"fixedCosts"`
	OtherCosts         float64 `json:"otherCosts"`
	NetProfit          float64 `json:"netProfit"`

	GrossMargin        float64 `json:"grossMargin"`
	ContributionMargin float64 `json:"contributionMargin"`
	NetMargin          float64 `json:"netMargin"`

	Distribution Distribution `json:"distribution"`
}

// Distribution expresses every revenue and cost line as a percentage of
// total sales. All zero when total sales is zero.
type Distribution struct {
	NewCustomerRevenue    float64 `json:"newCustomerRevenue"`
	ReturnCustomerRevenue float64 `json:"returnCustomerRevenue"`
	TransactionFees       float64 `json:"transactionFees"`
	ShippingCosts         float64 `json:"shippingCosts"`
	COGS                  float64 `json:"cogs"`
	MarketingCosts        float64 `json:"marketingCosts"`
	FixedCosts            float64 `json:"fixedCosts"`
	OtherCosts            float64 `json:"otherCosts"`
	GrossProfit           float64 `json:"grossProfit"`
	ContributionProfit    float64 `json:"contributionProfit"`
	NetProfit             float64 `json:"netProfit"`
}

// Compute is pure arithmetic with divide-by-zero guards; it has no error
// channel. Uncategorized manual costs come off after fixed costs so they are
// never silently dropped.
func Compute(sales Sales, costs ledger.CostSummary, feePercent float64) Metrics {
	m := Metrics{
		TotalSales:     sales.TotalSales,
		ShippingCosts:  costs.Manual.Shipping,
		COGS:           costs.Manual.COGS,
		MarketingCosts: costs.Marketing,
		FixedCosts:     costs.Fixed,
		OtherCosts:     costs.Manual.Other,
	}
	m.TransactionFees = money.Round2(sales.TotalSales * feePercent / 100)
	m.VariableCosts = m.ShippingCosts + m.COGS + m.TransactionFees
	m.GrossProfit = sales.TotalSales - m.VariableCosts
	m.ContributionProfit = m.GrossProfit - m.MarketingCosts
	m.NetProfit = m.ContributionProfit - m.FixedCosts - m.OtherCosts

	m.GrossMargin = money.SafeMargin(m.GrossProfit, sales.TotalSales)
	m.ContributionMargin = money.SafeMargin(m.ContributionProfit, sales.TotalSales)
	m.NetMargin = money.SafeMargin(m.NetProfit, sales.TotalSales)

	m.Distribution = Distribution{
		NewCustomerRevenue:    money.SafeMargin(sales.NewCustomerRevenue, sales.TotalSales),
		ReturnCustomerRevenue: money.SafeMargin(sales.ReturnCustomerRevenue, sales.TotalSales),
		TransactionFees:       money.SafeMargin(m.TransactionFees, sales.TotalSales),
		ShippingCosts:         money.SafeMargin(m.ShippingCosts, sales.TotalSales),
		COGS:                  money.SafeMargin(m.COGS, sales.TotalSales),
		MarketingCosts:        money.SafeMargin(m.MarketingCosts, sales.TotalSales),
		FixedCosts:            money.SafeMargin(m.FixedCosts, sales.TotalSales),
		OtherCosts:            money.SafeMargin(m.OtherCosts, sales.TotalSales),
		GrossProfit:           m.GrossMargin,
		ContributionProfit:    m.ContributionMargin,
		NetProfit:             m.NetMargin,
	}
	return m
}

// TargetStatus classifies a metric against its monthly goal.
type TargetStatus string

const (
	TargetOn   TargetStatus = "on_target"   // projection >= 100% of target
	TargetNear TargetStatus = "near_target" // projection >= 80% of target
	TargetOff  TargetStatus = "off_target"
)

// TargetEval pairs a monthly target with the period's projected attainment.
type TargetEval struct {
	Target     float64      `json:"target"`
	Projected  float64      `json:"projected"`
	Attainment float64      `json:"attainmentPercent"`
	Status     TargetStatus `json:"status"`
}

// EvaluateTarget projects value over periodDays to a 30-day month and
// classifies it. Nil when the target is unset, non-positive, or the period
// is empty (no divide by zero on projection).
func EvaluateTarget(value float64, periodDays int, target *float64) *TargetEval {
	if target == nil || *target <= 0 || periodDays <= 0 {
		return nil
	}
	projected := money.Round2(value / float64(periodDays) * 30)
	attainment := money.SafeMargin(projected, *target)
	status := TargetOff
	switch {
	case attainment >= 100:
		status = TargetOn
	case attainment >= 80:
		status = TargetNear
	}
	return &TargetEval{Target: *target, Projected: projected, Attainment: attainment, Status: status}
}
