package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/profitlens/profitlens/internal/money"
)

// GoogleConfig holds the Google Ads API coordinates. BaseURL and TokenURL
// are overridable so tests can point at fake servers.
type GoogleConfig struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	DeveloperToken string
}

// Google reads ad spend from the Google Ads API search endpoint. Costs
// arrive as integer micro-units, paginated via nextPageToken; access tokens
// are short-lived and refreshed with the stored refresh token.
type Google struct {
	c   HTTPClient
	cfg GoogleConfig
	log *slog.Logger
	now func() time.Time
}

func NewGoogle(c HTTPClient, cfg GoogleConfig, log *slog.Logger) *Google {
	return &Google{c: c, cfg: cfg, log: log, now: time.Now}
}

var _ Adapter = (*Google)(nil)

type googleCredentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`
	AccountID    string    `json:"selectedAccountId,omitempty"`
}

func (g *Google) Platform() string { return PlatformGoogle }

func (g *Google) headers(accessToken string) map[string]string {
	return map[string]string{
		"Authorization":   "Bearer " + accessToken,
		"developer-token": g.cfg.DeveloperToken,
	}
}

func (g *Google) ListAccounts(ctx context.Context, creds json.RawMessage) []Account {
	gc, err := decodeGoogleCredentials(creds)
	if err != nil {
		g.log.Warn("google: bad credentials", slog.String("err", err.Error()))
		return nil
	}
	var resp struct {
		ResourceNames []string `json:"resourceNames"`
	}
	u := g.cfg.BaseURL + "/customers:listAccessibleCustomers"
	if err := getJSON(ctx, g.c, u, g.headers(gc.AccessToken), &resp); err != nil {
		g.log.Warn("google: list accounts failed", slog.String("err", err.Error()))
		return nil
	}
	accounts := make([]Account, 0, len(resp.ResourceNames))
	for _, rn := range resp.ResourceNames {
		id := strings.TrimPrefix(rn, "customers/")
		accounts = append(accounts, Account{ID: id, Name: id})
	}
	return accounts
}

type googleSearchPage struct {
	Results []struct {
		Segments struct {
			Date string `json:"date"`
		} `json:"segments"`
		Metrics struct {
			CostMicros string `json:"costMicros"`
		} `json:"metrics"`
	} `json:"results"`
	NextPageToken string `json:"nextPageToken"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Google) FetchDailySpend(ctx context.Context, creds json.RawMessage, accountID string, start, end time.Time) ([]DailySpend, error) {
	gc, err := decodeGoogleCredentials(creds)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT segments.date, metrics.cost_micros FROM customer WHERE segments.date BETWEEN '%s' AND '%s'",
		money.Day(start).Format("2006-01-02"), money.Day(end).Format("2006-01-02"))
	u := g.cfg.BaseURL + "/customers/" + accountID + "/googleAds:search"

	var out []DailySpend
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		body := map[string]any{"query": query, "pageSize": 100}
		if pageToken != "" {
			body["pageToken"] = pageToken
		}
		var resp googleSearchPage
		err := postJSON(ctx, g.c, u, g.headers(gc.AccessToken), body, &resp)
		if err == nil && resp.Error != nil {
			err = fmt.Errorf("%w: %s", ErrProvider, resp.Error.Message)
		}
		if err != nil {
			if page == 0 {
				return nil, wrapProvider(err)
			}
			g.log.Warn("google: page fetch failed, returning partial",
				slog.Int("page", page), slog.String("err", err.Error()))
			return out, nil
		}
		for _, row := range resp.Results {
			d, err := time.Parse("2006-01-02", row.Segments.Date)
			if err != nil {
				continue
			}
			micros, err := strconv.ParseInt(row.Metrics.CostMicros, 10, 64)
			if err != nil || micros <= 0 {
				continue // zero-spend days are never stored
			}
			out = append(out, DailySpend{Date: money.Day(d), Amount: float64(micros) / 1e6})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func (g *Google) EnsureFresh(ctx context.Context, creds json.RawMessage) (json.RawMessage, bool, error) {
	gc, err := decodeGoogleCredentials(creds)
	if err != nil {
		return nil, false, err
	}
	if gc.AccessToken != "" && !gc.ExpiresAt.IsZero() && g.now().Before(gc.ExpiresAt) {
		return creds, false, nil
	}
	if gc.RefreshToken == "" {
		return nil, false, fmt.Errorf("%w: no refresh token", ErrCredentialRefresh)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"refresh_token": {gc.RefreshToken},
	}
	if err := postForm(ctx, g.c, g.cfg.TokenURL, form, &resp); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCredentialRefresh, err)
	}
	if resp.AccessToken == "" {
		return nil, false, fmt.Errorf("%w: empty access token", ErrCredentialRefresh)
	}
	gc.AccessToken = resp.AccessToken
	gc.ExpiresAt = g.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	fresh, err := json.Marshal(gc)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

func (g *Google) SelectedAccount(creds json.RawMessage) string {
	gc, err := decodeGoogleCredentials(creds)
	if err != nil {
		return ""
	}
	return gc.AccountID
}

func (g *Google) WithSelectedAccount(creds json.RawMessage, accountID string) (json.RawMessage, error) {
	gc, err := decodeGoogleCredentials(creds)
	if err != nil {
		return nil, err
	}
	gc.AccountID = accountID
	return json.Marshal(gc)
}

func decodeGoogleCredentials(creds json.RawMessage) (googleCredentials, error) {
	var gc googleCredentials
	if err := json.Unmarshal(creds, &gc); err != nil {
		return googleCredentials{}, fmt.Errorf("%w: credentials: %v", ErrParse, err)
	}
	return gc, nil
}
