package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func googleCreds(t *testing.T, gc googleCredentials) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(gc)
	require.NoError(t, err)
	return b
}

func TestGoogleFetchDailySpendConvertsMicrosAndPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.Equal(t, "dev-tok", r.Header.Get("developer-token"))

		var body struct {
			Query     string `json:"query"`
			PageToken string `json:"pageToken"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "metrics.cost_micros")

		if body.PageToken == "" {
			fmt.Fprint(w, `{"results":[
				{"segments":{"date":"2025-01-01"},"metrics":{"costMicros":"12500000"}},
				{"segments":{"date":"2025-01-02"},"metrics":{"costMicros":"0"}}
			],"nextPageToken":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"results":[
			{"segments":{"date":"2025-01-03"},"metrics":{"costMicros":"990000"}}
		]}`)
	}))
	defer srv.Close()

	g := NewGoogle(srv.Client(), GoogleConfig{BaseURL: srv.URL, DeveloperToken: "dev-tok"}, testLogger())
	spend, err := g.FetchDailySpend(context.Background(),
		googleCreds(t, googleCredentials{AccessToken: "tok"}), "123",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	// the zero-micros day is dropped
	require.Len(t, spend, 2)
	assert.Equal(t, 12.5, spend[0].Amount)
	assert.Equal(t, 0.99, spend[1].Amount)
}

func TestGoogleFetchDailySpendFirstPageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"developer token not approved"}}`)
	}))
	defer srv.Close()

	g := NewGoogle(srv.Client(), GoogleConfig{BaseURL: srv.URL}, testLogger())
	_, err := g.FetchDailySpend(context.Background(),
		googleCreds(t, googleCredentials{AccessToken: "tok"}), "123",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrProvider)
}

func TestGoogleListAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resourceNames":["customers/111","customers/222"]}`)
	}))
	defer srv.Close()

	g := NewGoogle(srv.Client(), GoogleConfig{BaseURL: srv.URL}, testLogger())
	accounts := g.ListAccounts(context.Background(), googleCreds(t, googleCredentials{AccessToken: "tok"}))
	require.Len(t, accounts, 2)
	assert.Equal(t, "111", accounts[0].ID)
}

func TestGoogleEnsureFreshUsesRefreshGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-tok", r.Form.Get("refresh_token"))
		fmt.Fprint(w, `{"access_token":"new-tok","expires_in":3600}`)
	}))
	defer srv.Close()

	g := NewGoogle(srv.Client(), GoogleConfig{TokenURL: srv.URL, ClientID: "id", ClientSecret: "sec"}, testLogger())
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	expired := googleCreds(t, googleCredentials{
		AccessToken: "tok", RefreshToken: "refresh-tok",
		ExpiresAt: now.Add(-time.Minute), AccountID: "123",
	})
	fresh, changed, err := g.EnsureFresh(context.Background(), expired)
	require.NoError(t, err)
	assert.True(t, changed)

	var gc googleCredentials
	require.NoError(t, json.Unmarshal(fresh, &gc))
	assert.Equal(t, "new-tok", gc.AccessToken)
	assert.Equal(t, "refresh-tok", gc.RefreshToken)
	assert.Equal(t, "123", gc.AccountID)
	assert.Equal(t, now.Add(time.Hour), gc.ExpiresAt)
}

func TestGoogleEnsureFreshWithoutRefreshToken(t *testing.T) {
	g := NewGoogle(NewHTTPClient(time.Second), GoogleConfig{}, testLogger())
	g.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	expired := googleCreds(t, googleCredentials{AccessToken: "tok", ExpiresAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)})
	_, _, err := g.EnsureFresh(context.Background(), expired)
	assert.ErrorIs(t, err, ErrCredentialRefresh)
}

func TestGoogleSelectedAccountRoundTrip(t *testing.T) {
	g := NewGoogle(NewHTTPClient(time.Second), GoogleConfig{}, testLogger())

	creds := googleCreds(t, googleCredentials{AccessToken: "tok"})
	assert.Equal(t, "", g.SelectedAccount(creds))

	withAccount, err := g.WithSelectedAccount(creds, "987")
	require.NoError(t, err)
	assert.Equal(t, "987", g.SelectedAccount(withAccount))
}
