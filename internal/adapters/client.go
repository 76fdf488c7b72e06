package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/profitlens/profitlens/internal/utils"
)

// HTTPClient is the transport seam; tests substitute a fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &http.Client{Timeout: timeout}
}

// statusError carries a non-2xx response so adapters can decode the
// provider's error payload.
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("non-2xx: %d body=%s", e.status, string(e.body))
}

// getJSON fetches url and decodes the response, retrying transport errors
// and 5xx with exponential backoff.
func getJSON(ctx context.Context, c HTTPClient, rawURL string, headers map[string]string, v any) error {
	return doJSON(ctx, c, http.MethodGet, rawURL, headers, "", nil, v)
}

// postJSON sends a JSON body.
func postJSON(ctx context.Context, c HTTPClient, rawURL string, headers map[string]string, body any, v any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return doJSON(ctx, c, http.MethodPost, rawURL, headers, "application/json", b, v)
}

// postForm sends a urlencoded form, used by token refresh grants.
func postForm(ctx context.Context, c HTTPClient, rawURL string, form url.Values, v any) error {
	return doJSON(ctx, c, http.MethodPost, rawURL, nil, "application/x-www-form-urlencoded", []byte(form.Encode()), v)
}

func doJSON(ctx context.Context, c HTTPClient, method, rawURL string, headers map[string]string, contentType string, body []byte, v any) error {
	bo := utils.Backoff{Base: 100 * time.Millisecond, MaxRetries: 2}
	return bo.Do(ctx, func(int) error {
		var rd io.Reader
		if body != nil {
			rd = strings.NewReader(string(body))
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
		if err != nil {
			return utils.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		for k, val := range headers {
			req.Header.Set(k, val)
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			serr := &statusError{status: resp.StatusCode, body: b}
			if resp.StatusCode >= 500 {
				return serr
			}
			return utils.Permanent(serr)
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return utils.Permanent(fmt.Errorf("%w: %v", ErrParse, err))
		}
		return nil
	})
}
