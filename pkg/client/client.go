// Package client talks to a stationpa server on behalf of a remote player.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"stationpa/pkg/model"
	"stationpa/pkg/request"
	"stationpa/pkg/tracker"
)

// ErrNotFound is returned when the server does not know the record.
var ErrNotFound = errors.New("not found")

// Snapshot mirrors the GET /api/announcements payload.
type Snapshot struct {
	Templates []model.Template `json:"templates"`
	Records   []model.Record   `json:"records"`
}

// Client is a typed wrapper over the announcement API.
type Client struct {
	base   string
	req    *request.Client
	stream *http.Client
}

// New creates a client for the server at baseURL (http://host:port).
func New(baseURL string, tr *tracker.Tracker) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		req:  request.New(tr),
		// Streams are long lived: no overall timeout
		stream: &http.Client{},
	}
}

func (c *Client) url(path string) string {
	return c.base + path
}

func mapErr(err error) error {
	if request.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.req.Get(ctx, c.url("/health"))
	return err
}

// Snapshot fetches templates and the newest records.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	body, err := c.req.Get(ctx, c.url("/api/announcements"))
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// Pending fetches pending records, oldest first.
func (c *Client) Pending(ctx context.Context, limit int) ([]model.Record, error) {
	u := c.url("/api/announcements/pending")
	if limit > 0 {
		u += "?" + url.Values{"limit": {fmt.Sprint(limit)}}.Encode()
	}
	body, err := c.req.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Records []model.Record `json:"records"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode pending records: %w", err)
	}
	return resp.Records, nil
}

// MarkAnnounced reports a record as spoken.
func (c *Client) MarkAnnounced(ctx context.Context, id, audioURL string) (*model.Record, error) {
	payload, err := json.Marshal(map[string]string{"audioUrl": audioURL})
	if err != nil {
		return nil, err
	}
	return c.transition(ctx, id, "announced", payload)
}

// MarkFailed reports a record as not delivered.
func (c *Client) MarkFailed(ctx context.Context, id string) (*model.Record, error) {
	return c.transition(ctx, id, "failed", []byte("{}"))
}

func (c *Client) transition(ctx context.Context, id, action string, payload []byte) (*model.Record, error) {
	u := c.url("/api/announcements/" + url.PathEscape(id) + "/" + action)
	body, err := c.req.Post(ctx, u, payload, "application/json")
	if err != nil {
		return nil, mapErr(err)
	}
	var r model.Record
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return &r, nil
}

type streamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Stream opens the SSE stream and forwards new records. The channel closes
// when the connection ends or ctx is cancelled.
func (c *Client) Stream(ctx context.Context) (<-chan model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/announcements/stream"), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream: unexpected status %d", resp.StatusCode)
	}

	out := make(chan model.Record, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var data bytes.Buffer
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				// Blank line ends the event
				if data.Len() > 0 {
					if rec, ok := decodeEvent(data.Bytes()); ok {
						select {
						case out <- rec:
						case <-ctx.Done():
							return
						}
					}
					data.Reset()
				}
			case strings.HasPrefix(line, ":"):
				// Comment (heartbeat)
			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		if err := sc.Err(); err != nil && ctx.Err() == nil {
			slog.Debug("Stream: read ended", "error", err)
		}
	}()
	return out, nil
}

func decodeEvent(b []byte) (model.Record, bool) {
	var ev streamEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		slog.Warn("Stream: undecodable event", "error", err)
		return model.Record{}, false
	}
	if ev.Type != "new_announcement" {
		return model.Record{}, false
	}
	var rec model.Record
	if err := json.Unmarshal(ev.Data, &rec); err != nil {
		slog.Warn("Stream: undecodable record", "error", err)
		return model.Record{}, false
	}
	return rec, true
}
