// Package httpclient is a small wrapper around net/http with a per-attempt
// timeout and bounded retries for non-4xx failures.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Error carries the upstream status alongside the translated message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Client issues requests with a per-attempt timeout and retries transient
// failures. A 4xx response is never retried.
type Client struct {
	Timeout    time.Duration // per attempt, default 30s
	Retries    int           // additional attempts after the first
	RetryDelay time.Duration // base delay, grows linearly per attempt

	base *http.Client
}

// New creates a Client with the given per-attempt timeout and retry budget.
func New(timeout time.Duration, retries int, retryDelay time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		Timeout:    timeout,
		Retries:    retries,
		RetryDelay: retryDelay,
		base:       &http.Client{},
	}
}

// Do issues the request and returns the response body. The body bytes are
// replayed on each retry. header may be nil.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.Retries; attempt++ {
		data, err := c.attempt(ctx, method, url, header, body)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var upstream *Error
		if errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 500 {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
		}

		if attempt < c.Retries {
			select {
			case <-time.After(c.RetryDelay * time.Duration(attempt+1)):
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Message: string(data)}
	}
	return data, nil
}
