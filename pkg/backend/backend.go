// Package backend is the client for the tally backend REST contract: the
// snapshot read, the reset command, the CSV backfill, form submission and the
// health probe.
package backend

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/internal/transport"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/logging"
	"github.com/agentstation/tally/pkg/records"
)

// API is the backend contract used by the sync controller and the CLI.
type API interface {
	// Entries returns the raw payloads of the snapshot read.
	Entries(ctx context.Context) ([]records.Payload, error)
	// Reset asks the backend to drop every record.
	Reset(ctx context.Context) (ResetResult, error)
	// Backfill asks the backend to import rows from its configured sheet.
	Backfill(ctx context.Context) (BackfillResult, error)
	// Submit posts a raw form payload, as the form webhook would.
	Submit(ctx context.Context, payload records.Payload) error
	// Health probes the liveness endpoint.
	Health(ctx context.Context) error
}

// ResetResult is the reset command response.
type ResetResult struct {
	OK    bool   `json:"ok" yaml:"ok"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// BackfillResult is the backfill command response.
type BackfillResult struct {
	OK          bool   `json:"ok" yaml:"ok"`
	RowsFromCSV int    `json:"rows_from_csv" yaml:"rows_from_csv"`
	AddedTotal  int    `json:"added_total" yaml:"added_total"`
	TotalNow    int    `json:"total_now" yaml:"total_now"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Client implements API over HTTP.
type Client struct {
	transport *transport.Client
	logger    *zerolog.Logger
}

var _ API = (*Client)(nil)

// Option configures a Client.
type Option func(*options)

type options struct {
	transport []transport.Option
	logger    *zerolog.Logger
}

// WithTransportOptions passes options to the underlying HTTP transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(o *options) {
		o.transport = append(o.transport, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	tc, err := transport.New(baseURL, o.transport...)
	if err != nil {
		return nil, err
	}
	return &Client{
		transport: tc,
		logger:    logging.Component(o.logger, "backend"),
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.transport.BaseURL().String()
}

// Transport returns the HTTP transport, shared with the push channel.
func (c *Client) Transport() *transport.Client {
	return c.transport
}

// Entries reads the snapshot. A body that is not a JSON array is an error;
// array elements that are not objects are skipped.
func (c *Client) Entries(ctx context.Context) ([]records.Payload, error) {
	resp, err := c.transport.Get(ctx, constants.EntriesPath)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := transport.DecodeResponse(resp, &raw); err != nil {
		return nil, err
	}

	payloads := make([]records.Payload, 0, len(raw))
	for _, item := range raw {
		var p records.Payload
		if err := json.Unmarshal(item, &p); err != nil || p == nil {
			continue
		}
		payloads = append(payloads, p)
	}
	c.logger.Debug().Int("records", len(payloads)).Msg("Fetched snapshot")
	return payloads, nil
}

// Reset posts the reset command. A well-formed {"ok": false} answer yields
// the result and an error matching errors.ErrResetRejected.
func (c *Client) Reset(ctx context.Context) (ResetResult, error) {
	var result ResetResult
	if err := c.command(ctx, "reset", constants.ResetPath, nil, &result, func() (bool, string) {
		return result.OK, result.Error
	}); err != nil {
		return result, err
	}
	return result, nil
}

// Backfill posts the backfill command.
func (c *Client) Backfill(ctx context.Context) (BackfillResult, error) {
	var result BackfillResult
	if err := c.command(ctx, "backfill", constants.BackfillPath, nil, &result, func() (bool, string) {
		return result.OK, result.Error
	}); err != nil {
		return result, err
	}
	c.logger.Info().
		Int("rows", result.RowsFromCSV).
		Int("added", result.AddedTotal).
		Int("total", result.TotalNow).
		Msg("Backfill completed")
	return result, nil
}

// Submit posts payload to the form webhook.
func (c *Client) Submit(ctx context.Context, payload records.Payload) error {
	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	return c.command(ctx, "submit", constants.WebhookPath, payload, &result, func() (bool, string) {
		return result.OK, result.Error
	})
}

// Health returns nil when the backend answers the liveness probe.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.transport.Get(ctx, constants.HealthPath)
	if err != nil {
		return err
	}
	_, err = transport.ReadBody(resp)
	return err
}

// command posts body to path and decodes an {"ok", "error"} shaped answer
// into target. The backend answers failures with an error status and the
// same body shape, so the body is examined before the status.
func (c *Client) command(ctx context.Context, op, path string, body, target any, outcome func() (bool, string)) error {
	resp, err := c.transport.PostJSON(ctx, path, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("Backend command failed")
		return err
	}

	data, statusErr := transport.ReadBody(resp)
	if decodeErr := json.Unmarshal(data, target); decodeErr == nil && hasOK(data) {
		ok, msg := outcome()
		if !ok {
			c.logger.Warn().Str("op", op).Str("error", msg).Int("status", resp.StatusCode).Msg("Backend rejected command")
			return errors.NewBackendError(op, msg)
		}
		return nil
	}
	if statusErr != nil {
		c.logger.Warn().Err(statusErr).Str("op", op).Msg("Backend command failed")
		return statusErr
	}
	return errors.NewParseError("json", path, "response has no ok field: "+truncate(string(data), 120), nil)
}

// hasOK reports whether a JSON object carries an "ok" member.
func hasOK(data []byte) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	_, ok := probe["ok"]
	return ok
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
