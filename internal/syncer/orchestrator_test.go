package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitlens/profitlens/internal/adapters"
	"github.com/profitlens/profitlens/internal/ledger"
)

type fakeAdapter struct {
	platform   string
	accounts   []adapters.Account
	spend      []adapters.DailySpend
	spendErr   error
	freshCreds json.RawMessage
	refreshErr error

	fetchedWith json.RawMessage
	fetchCalls  int
}

func (f *fakeAdapter) Platform() string { return f.platform }

func (f *fakeAdapter) ListAccounts(ctx context.Context, creds json.RawMessage) []adapters.Account {
	return f.accounts
}

func (f *fakeAdapter) FetchDailySpend(ctx context.Context, creds json.RawMessage, accountID string, start, end time.Time) ([]adapters.DailySpend, error) {
	f.fetchCalls++
	f.fetchedWith = creds
	return f.spend, f.spendErr
}

func (f *fakeAdapter) EnsureFresh(ctx context.Context, creds json.RawMessage) (json.RawMessage, bool, error) {
	if f.refreshErr != nil {
		return nil, false, f.refreshErr
	}
	if f.freshCreds != nil {
		return f.freshCreds, true, nil
	}
	return creds, false, nil
}

func (f *fakeAdapter) SelectedAccount(creds json.RawMessage) string {
	var c struct {
		AccountID string `json:"selectedAccountId"`
	}
	_ = json.Unmarshal(creds, &c)
	return c.AccountID
}

func (f *fakeAdapter) WithSelectedAccount(creds json.RawMessage, accountID string) (json.RawMessage, error) {
	var c map[string]any
	if err := json.Unmarshal(creds, &c); err != nil {
		return nil, err
	}
	c["selectedAccountId"] = accountID
	return json.Marshal(c)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedIntegration(t *testing.T, st ledger.Store, platform string, creds string) {
	t.Helper()
	require.NoError(t, st.UpsertIntegration(context.Background(), ledger.Integration{
		Shop: "shop-1", Platform: platform, IsActive: true, Credentials: []byte(creds),
	}))
}

func newOrchestrator(st ledger.Store, a adapters.Adapter) *Orchestrator {
	return New(st, []adapters.Adapter{a}, nil, nil, discardLogger(), time.Hour)
}

func TestSyncHistoricalSuccess(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform: "facebook",
		spend: []adapters.DailySpend{
			{Date: day(2025, 3, 1), Amount: 10.5},
			{Date: day(2025, 3, 2), Amount: 20},
		},
	}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok","selectedAccountId":"123"}`)

	o := newOrchestrator(st, fa)
	before := time.Now()
	res := o.SyncHistorical(ctx, "shop-1", "facebook", 30)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 30.5, res.TotalAmount)
	assert.Equal(t, 2, res.SyncedDays)

	total, err := st.SumMarketingCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 30.5, total)

	in, err := st.GetIntegration(ctx, "shop-1", "facebook")
	require.NoError(t, err)
	assert.False(t, in.LastSync.Before(before), "lastSync must advance on success")
}

func TestSyncHistoricalIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform: "facebook",
		spend:    []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 10}},
	}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok","selectedAccountId":"123"}`)
	o := newOrchestrator(st, fa)

	require.True(t, o.SyncHistorical(ctx, "shop-1", "facebook", 30).Success)
	// provider revises the figure on the second pass
	fa.spend = []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 12}}
	require.True(t, o.SyncHistorical(ctx, "shop-1", "facebook", 30).Success)

	total, err := st.SumMarketingCosts(ctx, "shop-1", day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 12.0, total, "re-sync overwrites, never accumulates")
}

func TestSyncHistoricalNotConnected(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{platform: "facebook"}
	o := newOrchestrator(st, fa)

	// missing integration
	res := o.SyncHistorical(ctx, "shop-1", "facebook", 30)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNotConnected.Error(), res.Error)

	// inactive integration
	require.NoError(t, st.UpsertIntegration(ctx, ledger.Integration{
		Shop: "shop-1", Platform: "facebook", IsActive: false, Credentials: []byte(`{"accessToken":"tok"}`),
	}))
	res = o.SyncHistorical(ctx, "shop-1", "facebook", 30)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNotConnected.Error(), res.Error)

	// active but empty credentials
	require.NoError(t, st.UpsertIntegration(ctx, ledger.Integration{
		Shop: "shop-1", Platform: "facebook", IsActive: true,
	}))
	res = o.SyncHistorical(ctx, "shop-1", "facebook", 30)
	assert.False(t, res.Success)
}

func TestSyncHistoricalUnknownPlatform(t *testing.T) {
	st := ledger.NewMemoryStore()
	o := newOrchestrator(st, &fakeAdapter{platform: "facebook"})
	res := o.SyncHistorical(context.Background(), "shop-1", "tiktok", 30)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown platform")
}

func TestSyncHistoricalPersistsRefreshedToken(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform:   "google",
		freshCreds: []byte(`{"accessToken":"new-tok","selectedAccountId":"123"}`),
		spend:      []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 5}},
	}
	seedIntegration(t, st, "google", `{"accessToken":"old-tok","selectedAccountId":"123"}`)
	o := newOrchestrator(st, fa)

	require.True(t, o.SyncHistorical(ctx, "shop-1", "google", 30).Success)

	in, err := st.GetIntegration(ctx, "shop-1", "google")
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"new-tok","selectedAccountId":"123"}`, string(in.Credentials))
	assert.JSONEq(t, `{"accessToken":"new-tok","selectedAccountId":"123"}`, string(fa.fetchedWith),
		"fetch must use the refreshed token")
}

func TestSyncHistoricalRefreshFailureAborts(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform:   "google",
		refreshErr: adapters.ErrCredentialRefresh,
		spend:      []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 5}},
	}
	seedIntegration(t, st, "google", `{"accessToken":"old-tok","selectedAccountId":"123"}`)
	o := newOrchestrator(st, fa)

	res := o.SyncHistorical(ctx, "shop-1", "google", 30)
	assert.False(t, res.Success)
	assert.Equal(t, 0, fa.fetchCalls, "must not fetch with a stale token")

	in, err := st.GetIntegration(ctx, "shop-1", "google")
	require.NoError(t, err)
	assert.True(t, in.LastSync.IsZero(), "failed sync must not advance lastSync")
}

func TestSyncHistoricalAutoSelectsFirstAccount(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform: "facebook",
		accounts: []adapters.Account{{ID: "acc-1", Name: "First"}, {ID: "acc-2", Name: "Second"}},
		spend:    []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 5}},
	}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok"}`)
	o := newOrchestrator(st, fa)

	require.True(t, o.SyncHistorical(ctx, "shop-1", "facebook", 30).Success)

	in, err := st.GetIntegration(ctx, "shop-1", "facebook")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", fa.SelectedAccount(in.Credentials), "selection must be persisted")
}

func TestSyncHistoricalNoAccounts(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{platform: "facebook"}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok"}`)
	o := newOrchestrator(st, fa)

	res := o.SyncHistorical(ctx, "shop-1", "facebook", 30)
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoAccountSelected.Error(), res.Error)
}

func TestSyncHistoricalFetchFailureLeavesLastSync(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform: "facebook",
		spendErr: errors.New("provider error: boom"),
	}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok","selectedAccountId":"123"}`)
	o := newOrchestrator(st, fa)

	res := o.SyncHistorical(ctx, "shop-1", "facebook", 30)
	assert.False(t, res.Success)

	in, err := st.GetIntegration(ctx, "shop-1", "facebook")
	require.NoError(t, err)
	assert.True(t, in.LastSync.IsZero())
}

func TestRunDueHonorsThrottle(t *testing.T) {
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	fa := &fakeAdapter{
		platform: "facebook",
		spend:    []adapters.DailySpend{{Date: day(2025, 3, 1), Amount: 5}},
	}
	seedIntegration(t, st, "facebook", `{"accessToken":"tok","selectedAccountId":"123"}`)
	o := newOrchestrator(st, fa)

	// freshly synced: the sweep must skip it
	require.NoError(t, st.UpdateLastSync(ctx, "shop-1", "facebook", time.Now().Add(-time.Minute)))
	o.RunDue(ctx, 30)
	assert.Equal(t, 0, fa.fetchCalls)

	// stale: the sweep picks it up
	require.NoError(t, st.UpdateLastSync(ctx, "shop-1", "facebook", time.Now().Add(-2*time.Hour)))
	o.RunDue(ctx, 30)
	assert.Equal(t, 1, fa.fetchCalls)
}
