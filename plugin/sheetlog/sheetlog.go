// Package sheetlog mirrors message traffic to an external record log.
// Appends are fire-and-forget: failures are logged once and dropped, never
// retried, never surfaced to the reply path.
package sheetlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/warelay/warelay/internal/metrics"
)

// timeout is the timeout for one append request.
const timeout = 30 * time.Second

// Record directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Record is one mirrored message.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Direction   string    `json:"direction"`
	Sender      string    `json:"sender"`
	Chat        string    `json:"chat"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content"`
}

// Recorder is the minimal logging capability the router depends on.
type Recorder interface {
	Append(ctx context.Context, rec *Record) error
	AppendAsync(rec *Record)
}

// Client posts records to an HTTP endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	exporter   *metrics.Exporter
}

// NewClient creates a record-log client. exporter may be nil.
func NewClient(endpoint, apiKey string, exporter *metrics.Exporter) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		exporter:   exporter,
	}
}

// Append posts one record to the log endpoint.
func (c *Client) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "build record request to %s", c.endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post record to %s", c.endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.Errorf("record log returned status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// AppendAsync posts the record in a new goroutine and does not wait for the
// response.
func (c *Client) AppendAsync(rec *Record) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := c.Append(ctx, rec); err != nil {
			if c.exporter != nil {
				c.exporter.RecordLogFailures.Inc()
			}
			slog.Warn("failed to append record asynchronously",
				"direction", rec.Direction,
				"chat", rec.Chat,
				"err", err,
			)
		}
	}()
}

// Noop is the Recorder used when no log endpoint is configured.
type Noop struct{}

// NewNoop returns a Recorder that drops everything.
func NewNoop() *Noop { return &Noop{} }

func (*Noop) Append(context.Context, *Record) error { return nil }

func (*Noop) AppendAsync(*Record) {}
