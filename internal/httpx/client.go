// Package httpx is the read-only JSON client used for rollup provider lookups.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/version"
)

const (
	maxBodyBytes = 8 << 20
	maxBackoff   = 2 * time.Second
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  version.CLIName + "-cli/" + version.CLIVersion,
		sleep:      sleepContext,
	}
}

// GetJSON fetches url and decodes the body into out. Rate limits, 5xx responses and
// network failures are retried; a Retry-After header shortens or lengthens the wait
// up to two seconds.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	wait := time.Duration(0)
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if wait == 0 {
				wait = backoff(attempt)
			}
			if err := c.sleep(ctx, wait); err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "request cancelled", err)
			}
		}

		body, retryAfter, err := c.get(ctx, url)
		if err == nil {
			if out == nil {
				return nil
			}
			if len(bytes.TrimSpace(body)) == 0 {
				return clierr.New(clierr.CodeUnavailable, "rollup provider returned empty response")
			}
			if err := json.Unmarshal(body, out); err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "decode rollup provider JSON", err)
			}
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
		wait = retryAfter
	}
	return lastErr
}

type retryableError struct{ error }

func (e retryableError) Unwrap() error { return e.error }

func retryable(err error) bool {
	var r retryableError
	return errors.As(err, &r)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, retryableError{mapNetError(err)}
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, retryableError{clierr.Wrap(clierr.CodeUnavailable, "read rollup provider response", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter(resp.Header), retryableError{clierr.New(clierr.CodeUnavailable, "rollup provider rate limited request")}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, retryAfter(resp.Header), retryableError{clierr.New(clierr.CodeUnavailable, fmt.Sprintf("rollup provider unavailable (status %d)", resp.StatusCode))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, 0, clierr.New(clierr.CodeBlocked, fmt.Sprintf("rollup provider refused request (status %d)", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, 0, clierr.New(clierr.CodeUnsupported, fmt.Sprintf("rollup provider returned unexpected status %d", resp.StatusCode))
	}
	return buf, 0, nil
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func mapNetError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return clierr.Wrap(clierr.CodeUnavailable, "rollup provider timeout", err)
	}
	return clierr.Wrap(clierr.CodeUnavailable, "rollup provider request failed", err)
}

func backoff(attempt int) time.Duration {
	d := 120 * time.Millisecond * time.Duration(1<<uint(attempt-1))
	if d > maxBackoff {
		d = maxBackoff
	}
	return d + time.Duration(rand.Intn(75))*time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
