// Package revenue queries the external order system for sales figures. The
// engine never computes revenue itself; it only consumes this payload.
package revenue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/profitlens/profitlens/internal/money"
	"github.com/profitlens/profitlens/internal/profit"
)

// HTTPClient is the transport seam; tests substitute a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource fetches revenue over HTTP from the order system.
type HTTPSource struct {
	c       HTTPClient
	baseURL string
}

var _ profit.RevenueSource = (*HTTPSource)(nil)

func NewHTTPSource(c HTTPClient, baseURL string) *HTTPSource {
	return &HTTPSource{c: c, baseURL: baseURL}
}

// Fetch returns the sales summary for the inclusive day range. The
// new-customer window rides along so classification stays a configurable
// policy of the order system, not a constant baked in here.
func (s *HTTPSource) Fetch(ctx context.Context, shop string, start, end time.Time, newCustomerWindowHours int) (profit.Sales, error) {
	if s.baseURL == "" {
		return profit.Sales{}, errors.New("revenue: source not configured")
	}
	u := s.baseURL + "/revenue?" + url.Values{
		"shop":                      {shop},
		"from":                      {money.Day(start).Format("2006-01-02")},
		"to":                        {money.Day(end).Format("2006-01-02")},
		"new_customer_window_hours": {strconv.Itoa(newCustomerWindowHours)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return profit.Sales{}, err
	}
	resp, err := s.c.Do(req)
	if err != nil {
		return profit.Sales{}, fmt.Errorf("revenue: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return profit.Sales{}, fmt.Errorf("revenue: non-2xx: %d body=%s", resp.StatusCode, string(b))
	}
	var sales profit.Sales
	if err := json.NewDecoder(resp.Body).Decode(&sales); err != nil {
		return profit.Sales{}, fmt.Errorf("revenue: decode: %w", err)
	}
	return sales, nil
}
