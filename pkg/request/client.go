// Package request performs HTTP calls against upstream services with a
// per-host serial queue, retry of idempotent requests and provider backoff.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stationpa/pkg/tracker"
	"stationpa/pkg/version"
)

var (
	defaultUserAgent = fmt.Sprintf("StationPA Player (stationpa/%s)", version.Version)
)

// StatusError is returned for a non-retryable HTTP error status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error: status %d", e.Code)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Code, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Client handles HTTP requests with queuing, retries and tracking.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	backoff    *Backoff

	maxAttempts int
	baseDelay   time.Duration

	// Queues per provider (host)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	headers  map[string]string
	retry    bool
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client. The tracker may be nil.
func New(t *tracker.Tracker) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		tracker:     t,
		backoff:     NewBackoff(time.Second, 30*time.Second),
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		queues:      make(map[string]chan job),
	}
}

// Get performs a GET request. Network errors, 429 and 5xx responses are retried.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil)
}

// GetWithHeaders performs a GET request with custom headers.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, u, nil, headers, true)
}

// Post performs a POST request. POSTs are never retried.
func (c *Client) Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error) {
	return c.PostWithHeaders(ctx, u, body, map[string]string{"Content-Type": contentType})
}

// PostWithHeaders performs a POST request with custom headers and queuing.
func (c *Client) PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, u, body, headers, false)
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, headers map[string]string, retry bool) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := parsedURL.Host

	var rdr io.Reader = http.NoBody
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	c.dispatch(provider, job{req: req, headers: headers, retry: retry, respChan: respChan})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-respChan:
		return res.body, res.err
	}
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		// Create new queue and start worker
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// We block here if the queue is full, effectively throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		// Caller gave up before we could even enqueue
		j.respChan <- jobResult{err: j.req.Context().Err()}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		ctx := j.req.Context()
		if err := c.backoff.Wait(ctx, provider); err != nil {
			slog.Warn("Job dropped from queue (context expired)", "provider", provider, "error", err)
			j.respChan <- jobResult{err: err}
			continue
		}

		// Apply User-Agent (Default if not provided)
		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", defaultUserAgent)
		}

		attempts := 1
		if j.retry {
			attempts = c.maxAttempts
		}
		body, err := c.executeWithBackoff(j.req, attempts)

		var se *StatusError
		switch {
		case err == nil:
			c.tracker.TrackAPISuccess(provider)
			c.backoff.Success(provider)
		case errors.As(err, &se) && se.Code < 500:
			// The server answered; a client error says nothing about its health
			c.tracker.TrackAPIFailure(provider)
		case ctx.Err() == nil:
			c.tracker.TrackAPIFailure(provider)
			c.backoff.Failure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}
	}
}

// executeWithBackoff attempts the request, retrying network errors, 429 and 5xx
// up to maxAttempts times with exponential delay.
func (c *Client) executeWithBackoff(req *http.Request, maxAttempts int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Verify context is still alive before dialing
		if req.Context().Err() != nil {
			return nil, req.Context().Err()
		}

		slog.Debug("Network Request", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		resp, err := c.httpClient.Do(req)

		if err != nil {
			// Check if the error is a context cancellation from OUR side
			if req.Context().Err() != nil {
				return nil, req.Context().Err()
			}
			slog.Warn("Request failed", "url", req.URL, "attempt", attempt+1, "error", err)
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				slog.Warn("API Backoff", "status", resp.StatusCode, "url", req.URL, "attempt", attempt+1)
				lastErr = &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
			case resp.StatusCode >= 400:
				return nil, &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
			case readErr != nil:
				return nil, fmt.Errorf("read error: %w", readErr)
			default:
				return body, nil
			}
		}

		if attempt == maxAttempts-1 {
			break
		}
		sleepDur := c.baseDelay << attempt
		select {
		case <-time.After(sleepDur):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	if maxAttempts > 1 {
		return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return nil, lastErr
}
