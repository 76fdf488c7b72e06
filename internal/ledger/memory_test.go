package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUpsertDailyCostIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.UpsertDailyCost(ctx, "shop-1", "facebook", day(2025, 3, 1), 42.50, "facebook ads"))
	// re-sync of the same day with a revised amount overwrites, never adds
	require.NoError(t, st.UpsertDailyCost(ctx, "shop-1", "facebook", day(2025, 3, 1).Add(9*time.Hour), 50.00, "facebook ads"))

	total, err := st.SumMarketingCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 50.00, total)
}

func TestSumMarketingCostsAcrossPlatformsAndRange(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	require.NoError(t, st.UpsertDailyCost(ctx, "shop-1", "facebook", day(2025, 3, 1), 10, ""))
	require.NoError(t, st.UpsertDailyCost(ctx, "shop-1", "google", day(2025, 3, 2), 20, ""))
	require.NoError(t, st.UpsertDailyCost(ctx, "shop-1", "google", day(2025, 4, 1), 99, "")) // outside
	require.NoError(t, st.UpsertDailyCost(ctx, "shop-2", "google", day(2025, 3, 2), 7, ""))  // other shop

	total, err := st.SumMarketingCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 30.0, total)
}

func TestSumFixedCostsProratesRecurring(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.CreateFixedCost(ctx, FixedCost{
		Shop: "shop-1", Category: "software", Amount: 300, Recurring: true,
		StartDate: day(2025, 1, 1),
	})
	require.NoError(t, err)

	// 10-day range against the 30-day basis contributes exactly a third
	total, err := st.SumFixedCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 10))
	require.NoError(t, err)
	assert.Equal(t, 100.0, total)
}

func TestSumFixedCostsOneOff(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.CreateFixedCost(ctx, FixedCost{
		Shop: "shop-1", Category: "equipment", Amount: 500, Recurring: false,
		StartDate: day(2025, 3, 5),
	})
	require.NoError(t, err)

	// start date inside the range counts in full
	total, err := st.SumFixedCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 10))
	require.NoError(t, err)
	assert.Equal(t, 500.0, total)

	// start date outside the range contributes nothing, even though the
	// cost "exists" during it
	total, err = st.SumFixedCosts(ctx, "shop-1", day(2025, 3, 6), day(2025, 3, 10))
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestSumFixedCostsHonorsEndDate(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	ended := day(2025, 2, 28)
	_, err := st.CreateFixedCost(ctx, FixedCost{
		Shop: "shop-1", Category: "rent", Amount: 900, Recurring: true,
		StartDate: day(2025, 1, 1), EndDate: &ended,
	})
	require.NoError(t, err)

	total, err := st.SumFixedCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 30))
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestSumManualCostsBuckets(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	for _, mc := range []ManualCost{
		{Shop: "shop-1", Category: CategoryShipping, Date: day(2025, 3, 1), Amount: 50},
		{Shop: "shop-1", Category: CategoryCOGS, Date: day(2025, 3, 2), Amount: 200},
		{Shop: "shop-1", Category: "packaging", Date: day(2025, 3, 3), Amount: 25},
		{Shop: "shop-1", Category: CategoryShipping, Date: day(2025, 4, 1), Amount: 999}, // outside
	} {
		_, err := st.CreateManualCost(ctx, mc)
		require.NoError(t, err)
	}

	totals, err := st.SumManualCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, ManualCostTotals{Shipping: 50, COGS: 200, Other: 25}, totals)
}

func TestDeleteCosts(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	fc, err := st.CreateFixedCost(ctx, FixedCost{Shop: "shop-1", Category: "software", Amount: 30, Recurring: true, StartDate: day(2025, 1, 1)})
	require.NoError(t, err)
	require.NoError(t, st.DeleteFixedCost(ctx, "shop-1", fc.ID))
	assert.ErrorIs(t, st.DeleteFixedCost(ctx, "shop-1", fc.ID), ErrNotFound)

	mc, err := st.CreateManualCost(ctx, ManualCost{Shop: "shop-1", Category: CategoryOther, Date: day(2025, 3, 1), Amount: 5})
	require.NoError(t, err)
	require.NoError(t, st.DeleteManualCost(ctx, "shop-1", mc.ID))
	assert.ErrorIs(t, st.DeleteManualCost(ctx, "shop-1", mc.ID), ErrNotFound)
}

func TestIntegrationLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, err := st.GetIntegration(ctx, "shop-1", "facebook")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.SaveCredentials(ctx, "shop-1", "facebook", []byte(`{}`)), ErrNotFound)

	require.NoError(t, st.UpsertIntegration(ctx, Integration{
		Shop: "shop-1", Platform: "facebook", IsActive: true,
		Credentials: []byte(`{"accessToken":"tok"}`),
	}))
	require.NoError(t, st.SaveCredentials(ctx, "shop-1", "facebook", []byte(`{"accessToken":"tok2"}`)))

	at := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpdateLastSync(ctx, "shop-1", "facebook", at))

	in, err := st.GetIntegration(ctx, "shop-1", "facebook")
	require.NoError(t, err)
	assert.Equal(t, at, in.LastSync)
	assert.JSONEq(t, `{"accessToken":"tok2"}`, string(in.Credentials))

	active, err := st.ListActiveIntegrations(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestSettingsAndTargetsDefaults(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	set, err := st.GetSettings(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, set.TransactionFeePercent)
	assert.Equal(t, 24, set.NewCustomerWindowHours)

	set.TransactionFeePercent = 2.5
	require.NoError(t, st.SaveSettings(ctx, set))
	set, err = st.GetSettings(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, 2.5, set.TransactionFeePercent)

	targets, err := st.GetTargets(ctx, "shop-1")
	require.NoError(t, err)
	assert.Nil(t, targets.NetProfit)

	goal := 1000.0
	targets.NetProfit = &goal
	require.NoError(t, st.SaveTargets(ctx, targets))
	targets, err = st.GetTargets(ctx, "shop-1")
	require.NoError(t, err)
	require.NotNil(t, targets.NetProfit)
	assert.Equal(t, 1000.0, *targets.NetProfit)
}
