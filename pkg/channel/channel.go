// Package channel is the push side of the backend contract: a long-lived
// connection that delivers named events (form_update) carrying a record
// payload or a reset signal.
//
// Two transports are provided. SocketIO speaks Socket.IO v4 over a WebSocket,
// which is what the backend serves; SSE reads a server-sent events stream for
// backends that expose one. Both own their reconnect policy: a bounded number
// of attempts separated by a fixed delay.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
)

// Channel is a subscribable push connection.
type Channel interface {
	// Open starts connecting in the background. It returns once the
	// connection loop is running; failures are retried per the reconnect
	// policy and surface through Done and Err.
	Open(ctx context.Context) error
	// Subscribe registers h for event. Handlers run on the channel's reader
	// goroutine in arrival order.
	Subscribe(event string, h Handler) (unsubscribe func())
	// Close disconnects, unsubscribes every handler and waits for the
	// connection loop to exit.
	Close() error
	// Done is closed when the connection loop exits.
	Done() <-chan struct{}
	// Err reports why the loop gave up, or nil after Close.
	Err() error
	Status() Status
}

// Handler receives one event.
type Handler func(Message)

// Message is one event received from the backend.
type Message struct {
	Event string
	Data  json.RawMessage
}

// IsReset reports whether the message is the {"reset": true} signal.
func (m Message) IsReset() bool {
	var body struct {
		Reset bool `json:"reset"`
	}
	if err := json.Unmarshal(m.Data, &body); err != nil {
		return false
	}
	return body.Reset
}

// Payload decodes the message data as a raw record payload.
func (m Message) Payload() (records.Payload, error) {
	var p records.Payload
	if err := json.Unmarshal(m.Data, &p); err != nil {
		return nil, errors.WrapParse("json", m.Event, err)
	}
	if p == nil {
		return nil, errors.NewParseError("json", m.Event, "event data is not an object", nil)
	}
	return p, nil
}

// Status is the connection state of a channel.
type Status int

// Channel statuses.
const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusDisconnected
	StatusClosed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	case StatusClosed:
		return "closed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Transport names a Channel implementation.
type Transport string

// Supported transports.
const (
	TransportSocketIO Transport = "socketio"
	TransportSSE      Transport = "sse"
	TransportNone     Transport = "none"
)

// ReconnectPolicy bounds automatic reconnection. Attempts counts retries
// after the first failure; a negative value retries forever. The counter
// resets once a connection is established.
type ReconnectPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultReconnectPolicy returns 5 attempts one second apart.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Attempts: constants.DefaultReconnectAttempts,
		Delay:    constants.DefaultReconnectDelay,
	}
}

type config struct {
	reconnect  ReconnectPolicy
	logger     *zerolog.Logger
	header     http.Header
	httpClient *http.Client
	onStatus   func(Status)
}

// Option configures a channel.
type Option func(*config)

// WithReconnect sets the reconnect policy.
func WithReconnect(policy ReconnectPolicy) Option {
	return func(c *config) {
		c.reconnect = policy
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithHeader adds headers to the connection request.
func WithHeader(h http.Header) Option {
	return func(c *config) {
		c.header = h.Clone()
	}
}

// WithHTTPClient sets the client used by the SSE transport. Its Timeout must
// be zero or the stream is cut when it expires.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithStatusHook is called on every status change.
func WithStatusHook(fn func(Status)) Option {
	return func(c *config) {
		c.onStatus = fn
	}
}

func newConfig(opts []Option) config {
	c := config{
		reconnect: DefaultReconnectPolicy(),
		header:    http.Header{},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// New creates the channel for transport.
func New(transport Transport, baseURL string, opts ...Option) (Channel, error) {
	switch transport {
	case TransportSocketIO, "":
		return NewSocketIO(baseURL, opts...)
	case TransportSSE:
		return NewSSE(baseURL, opts...)
	case TransportNone:
		return NewNop(), nil
	default:
		return nil, errors.NewConfigError("channel", fmt.Sprintf("unknown transport %q", transport), nil)
	}
}
