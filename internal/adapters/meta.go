package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/profitlens/profitlens/internal/money"
)

// MetaConfig holds the Graph API coordinates. BaseURL is overridable so
// tests can point at a fake server.
type MetaConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
}

// Meta reads ad spend from the Facebook/Instagram Graph API insights
// endpoint. Spend arrives as decimal strings, one row per day
// (time_increment=1), paginated via absolute paging.next URLs.
type Meta struct {
	c   HTTPClient
	cfg MetaConfig
	log *slog.Logger
	now func() time.Time
}

func NewMeta(c HTTPClient, cfg MetaConfig, log *slog.Logger) *Meta {
	return &Meta{c: c, cfg: cfg, log: log, now: time.Now}
}

var _ Adapter = (*Meta)(nil)

// metaCredentials is the platform-typed shape of the opaque credential blob.
// Meta long-lived tokens carry no refresh token; expiry is pushed out by
// re-exchanging the token itself.
type metaCredentials struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
	AccountID   string    `json:"selectedAccountId,omitempty"`
}

func (m *Meta) Platform() string { return PlatformMeta }

func (m *Meta) ListAccounts(ctx context.Context, creds json.RawMessage) []Account {
	mc, err := decodeMetaCredentials(creds)
	if err != nil {
		m.log.Warn("meta: bad credentials", slog.String("err", err.Error()))
		return nil
	}
	var resp struct {
		Data []struct {
			AccountID string `json:"account_id"`
			ID        string `json:"id"`
			Name      string `json:"name"`
		} `json:"data"`
		Error *metaError `json:"error"`
	}
	u := m.cfg.BaseURL + "/me/adaccounts?" + url.Values{
		"fields":       {"account_id,name"},
		"access_token": {mc.AccessToken},
	}.Encode()
	if err := getJSON(ctx, m.c, u, nil, &resp); err != nil {
		m.log.Warn("meta: list accounts failed", slog.String("err", err.Error()))
		return nil
	}
	if resp.Error != nil {
		m.log.Warn("meta: list accounts failed", slog.String("err", resp.Error.Message))
		return nil
	}
	accounts := make([]Account, 0, len(resp.Data))
	for _, a := range resp.Data {
		id := a.AccountID
		if id == "" {
			id = strings.TrimPrefix(a.ID, "act_")
		}
		accounts = append(accounts, Account{ID: id, Name: a.Name})
	}
	return accounts
}

type metaError struct {
	Message string `json:"message"`
}

type metaInsightsPage struct {
	Data []struct {
		DateStart string `json:"date_start"`
		Spend     string `json:"spend"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *metaError `json:"error"`
}

func (m *Meta) FetchDailySpend(ctx context.Context, creds json.RawMessage, accountID string, start, end time.Time) ([]DailySpend, error) {
	mc, err := decodeMetaCredentials(creds)
	if err != nil {
		return nil, err
	}
	timeRange := fmt.Sprintf(`{"since":"%s","until":"%s"}`,
		money.Day(start).Format("2006-01-02"), money.Day(end).Format("2006-01-02"))
	next := m.cfg.BaseURL + "/act_" + accountID + "/insights?" + url.Values{
		"time_increment": {"1"},
		"fields":         {"spend,date_start"},
		"time_range":     {timeRange},
		"limit":          {"100"},
		"access_token":   {mc.AccessToken},
	}.Encode()

	var out []DailySpend
	for page := 0; page < maxPages && next != ""; page++ {
		var resp metaInsightsPage
		err := getJSON(ctx, m.c, next, nil, &resp)
		if err == nil && resp.Error != nil {
			err = fmt.Errorf("%w: %s", ErrProvider, resp.Error.Message)
		}
		if err != nil {
			if page == 0 {
				return nil, wrapProvider(err)
			}
			// best effort: keep what earlier pages produced
			m.log.Warn("meta: page fetch failed, returning partial",
				slog.Int("page", page), slog.String("err", err.Error()))
			return out, nil
		}
		for _, row := range resp.Data {
			d, err := time.Parse("2006-01-02", row.DateStart)
			if err != nil {
				continue
			}
			amount, err := strconv.ParseFloat(row.Spend, 64)
			if err != nil || amount <= 0 {
				continue // zero-spend days are never stored
			}
			out = append(out, DailySpend{Date: money.Day(d), Amount: amount})
		}
		next = resp.Paging.Next
	}
	return out, nil
}

func (m *Meta) EnsureFresh(ctx context.Context, creds json.RawMessage) (json.RawMessage, bool, error) {
	mc, err := decodeMetaCredentials(creds)
	if err != nil {
		return nil, false, err
	}
	if mc.ExpiresAt.IsZero() || m.now().Before(mc.ExpiresAt) {
		return creds, false, nil
	}
	var resp struct {
		AccessToken string     `json:"access_token"`
		ExpiresIn   int64      `json:"expires_in"`
		Error       *metaError `json:"error"`
	}
	u := m.cfg.BaseURL + "/oauth/access_token?" + url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {m.cfg.AppID},
		"client_secret":     {m.cfg.AppSecret},
		"fb_exchange_token": {mc.AccessToken},
	}.Encode()
	if err := getJSON(ctx, m.c, u, nil, &resp); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCredentialRefresh, err)
	}
	if resp.Error != nil || resp.AccessToken == "" {
		msg := "empty access token"
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, false, fmt.Errorf("%w: %s", ErrCredentialRefresh, msg)
	}
	mc.AccessToken = resp.AccessToken
	mc.ExpiresAt = m.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	fresh, err := json.Marshal(mc)
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

func (m *Meta) SelectedAccount(creds json.RawMessage) string {
	mc, err := decodeMetaCredentials(creds)
	if err != nil {
		return ""
	}
	return mc.AccountID
}

func (m *Meta) WithSelectedAccount(creds json.RawMessage, accountID string) (json.RawMessage, error) {
	mc, err := decodeMetaCredentials(creds)
	if err != nil {
		return nil, err
	}
	mc.AccountID = accountID
	return json.Marshal(mc)
}

func decodeMetaCredentials(creds json.RawMessage) (metaCredentials, error) {
	var mc metaCredentials
	if err := json.Unmarshal(creds, &mc); err != nil {
		return metaCredentials{}, fmt.Errorf("%w: credentials: %v", ErrParse, err)
	}
	return mc, nil
}

func wrapProvider(err error) error {
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrParse) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProvider, err)
}
