package storedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"kaki_store/internal/adapters/observability"
)

// Client talks to the hosted data service that owns all persistence for the
// storefront. Rows come back untyped; normalization happens in the app layer.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// ---- Public API (tries the REST prefix first, falls back to the bare path) ----

func (c *Client) ListStores(ctx context.Context) ([]map[string]any, error) {
	candidates := []string{
		c.base + "/rest/v1/stores?select=*", // hosted REST surface
		c.base + "/stores",                  // proxy backend
	}
	return c.getRows(ctx, candidates)
}

func (c *Client) GetStore(ctx context.Context, id string) (map[string]any, error) {
	esc := url.PathEscape(id)
	candidates := []string{
		fmt.Sprintf("%s/rest/v1/stores?id=eq.%s&select=*", c.base, esc),
		fmt.Sprintf("%s/stores/%s", c.base, esc),
	}
	rows, err := c.getRows(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

func (c *Client) GetSpecialHours(ctx context.Context, id string) ([]map[string]any, error) {
	esc := url.PathEscape(id)
	candidates := []string{
		fmt.Sprintf("%s/rest/v1/special_hours?store_id=eq.%s&select=*&order=date.asc", c.base, esc),
		fmt.Sprintf("%s/stores/%s/special-hours", c.base, esc),
	}
	return c.getRows(ctx, candidates)
}

// ---- Internals ----

var (
	ErrNotFound     = errors.New("storedata: not found")
	ErrUnauthorized = errors.New("storedata: unauthorized")
	ErrForbidden    = errors.New("storedata: forbidden")
)

// getRows fetches the first candidate URL that answers, accepting the three
// response shapes the service is known to produce: a bare array, a bare
// object, or a {"status": ..., "data": ...} envelope.
func (c *Client) getRows(ctx context.Context, urls []string) ([]map[string]any, error) {
	var raw json.RawMessage
	if err := c.getFirst(ctx, urls, &raw); err != nil {
		return nil, err
	}
	return decodeRows(raw)
}

func decodeRows(raw json.RawMessage) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var one map[string]any
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("storedata: undecodable payload: %w", err)
	}
	switch data := one["data"].(type) {
	case []any:
		out := make([]map[string]any, 0, len(data))
		for _, it := range data {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, nil
	case map[string]any:
		return []map[string]any{data}, nil
	default:
		return []map[string]any{one}, nil
	}
}

func (c *Client) getFirst(ctx context.Context, urls []string, out any) error {
	var last error
	for _, u := range urls {
		if err := c.get(ctx, u, out); err != nil {
			if errors.Is(err, ErrNotFound) {
				last = err
				continue // try next pattern
			}
			return err // non-404: stop early
		}
		return nil
	}
	if last != nil {
		return last
	}
	return errors.New("no candidate URL succeeded")
}

// get performs a GET with client-side rate limiting, retries, and JSON decode
// into out. Retries on 429 and transient 5xx, honoring Retry-After.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "kaki-store/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err == nil {
			observability.ObserveExternal("storedata", req.URL.Path, resp.StatusCode, time.Since(start))
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(250*(1<<attempt)) * time.Millisecond
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
