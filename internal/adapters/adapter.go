// Package adapters translates provider-specific ad-spend APIs into a
// canonical per-day spend sequence. One implementation per platform; the
// orchestrator never branches on platform names.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Platform identifiers double as the ledger's platform tags.
const (
	PlatformMeta   = "facebook"
	PlatformGoogle = "google"
)

// maxPages caps pagination per fetch. Hitting the cap yields the partial
// result accumulated so far, not an error.
const maxPages = 20

var (
	// ErrCredentialRefresh means a stale token could not be exchanged. The
	// sync must abort rather than proceed with the stale token.
	ErrCredentialRefresh = errors.New("credential refresh failed")
	// ErrProvider means the remote API returned an error payload or
	// non-success status.
	ErrProvider = errors.New("provider error")
	// ErrParse means the provider response could not be decoded.
	ErrParse = errors.New("malformed provider response")
)

// Account is an external ad account visible to a credential.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DailySpend is one day of reported spend in standard currency units.
type DailySpend struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Adapter is the per-platform capability surface. Credentials travel as an
// opaque blob and are decoded into the platform's own typed shape inside the
// adapter; callers never inspect them.
type Adapter interface {
	Platform() string

	// ListAccounts returns the ad accounts visible to the credential. Any
	// failure yields an empty list; "nothing to show" is not fatal.
	ListAccounts(ctx context.Context, creds json.RawMessage) []Account

	// FetchDailySpend reports per-day spend for the account over the
	// inclusive range, following pagination up to the safety cap and
	// dropping zero-spend days. A failure on the first page is an error;
	// later page failures yield the partial result.
	FetchDailySpend(ctx context.Context, creds json.RawMessage, accountID string, start, end time.Time) ([]DailySpend, error)

	// EnsureFresh refreshes the access token when expired. changed reports
	// whether the returned credentials must be persisted.
	EnsureFresh(ctx context.Context, creds json.RawMessage) (fresh json.RawMessage, changed bool, err error)

	// SelectedAccount extracts the merchant's chosen account id, if any.
	SelectedAccount(creds json.RawMessage) string

	// WithSelectedAccount returns the credentials with the account id set.
	WithSelectedAccount(creds json.RawMessage, accountID string) (json.RawMessage, error)
}
