package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/agentstation/tally/internal/transport"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// SSE reads a server-sent events stream. Each event's data must be JSON; the
// event name defaults to "message" as in the EventSource API.
type SSE struct {
	*base
	url    string
	stream *sse.Client
}

var _ Channel = (*SSE)(nil)

// NewSSE creates an SSE channel for the backend at baseURL.
func NewSSE(baseURL string, opts ...Option) (*SSE, error) {
	u, err := transport.ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimRight(u.Path, "/") + constants.StreamPath

	cfg := newConfig(opts)
	stream := sse.NewClient(u.String(), sse.ClientMaxBufferSize(constants.MaxMessageSize))
	if cfg.httpClient != nil {
		stream.Connection = cfg.httpClient
	}
	for k := range cfg.header {
		stream.Headers[k] = cfg.header.Get(k)
	}
	// reconnects belong to base; the stream client gets one attempt per session
	stream.ReconnectStrategy = &backoff.StopBackOff{}

	s := &SSE{url: u.String(), stream: stream}
	s.base = newBase(string(TransportSSE), cfg, s.session)
	return s, nil
}

// URL returns the stream endpoint.
func (s *SSE) URL() string {
	return s.url
}

func (s *SSE) session(ctx context.Context, ready func()) error {
	s.stream.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return errors.NewAPIError(constants.StreamPath, resp.StatusCode, resp.Status)
		}
		ready()
		return nil
	}

	err := s.stream.SubscribeRawWithContext(ctx, s.emit)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) {
			return err
		}
		return fmt.Errorf("read stream %s: %w", s.url, err)
	}
	return errors.New("event stream ended")
}

func (s *SSE) emit(ev *sse.Event) {
	name := string(ev.Event)
	if name == "" {
		name = "message"
	}
	data := bytes.TrimSpace(ev.Data)
	if len(data) == 0 {
		return
	}
	if !json.Valid(data) {
		s.logger.Warn().Str("event", name).Msg("Ignoring event with non-JSON data")
		return
	}
	s.dispatch(Message{Event: name, Data: json.RawMessage(bytes.Clone(data))})
}
