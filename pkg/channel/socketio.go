package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zishang520/engine.io-go-parser/packet"

	"github.com/agentstation/tally/internal/transport"
	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// SocketIO is a Socket.IO v4 client on the default namespace using the
// WebSocket transport only (no long-polling upgrade).
type SocketIO struct {
	*base
	url    string
	dialer *websocket.Dialer
}

var _ Channel = (*SocketIO)(nil)

// NewSocketIO creates a Socket.IO channel for the backend at baseURL.
func NewSocketIO(baseURL string, opts ...Option) (*SocketIO, error) {
	u, err := SocketIOURL(baseURL)
	if err != nil {
		return nil, err
	}
	s := &SocketIO{
		url: u,
		dialer: &websocket.Dialer{
			HandshakeTimeout: constants.DefaultTimeout,
		},
	}
	s.base = newBase(string(TransportSocketIO), newConfig(opts), s.session)
	return s, nil
}

// URL returns the WebSocket endpoint.
func (s *SocketIO) URL() string {
	return s.url
}

// SocketIOURL derives the Engine.IO WebSocket endpoint from a backend base
// URL: http becomes ws, https becomes wss.
func SocketIOURL(baseURL string) (string, error) {
	base, err := transport.ParseBaseURL(baseURL)
	if err != nil {
		return "", err
	}
	u := *base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + constants.SocketIOPath
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// session dials, performs the Engine.IO and Socket.IO handshakes and then
// reads packets until the connection drops.
func (s *SocketIO) session(ctx context.Context, ready func()) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, s.cfg.header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", s.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(constants.MaxMessageSize)

	var writeMu sync.Mutex
	write := func(frame string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(frame))
	}

	stop := context.AfterFunc(ctx, func() {
		if frame, err := encodeDisconnect("/"); err == nil {
			_ = write(frame)
		}
		writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		_ = conn.Close()
	})
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(constants.DefaultPingInterval + constants.DefaultPingTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	hs, err := decodeHandshake(frame)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Str("sid", hs.SID).
		Dur("ping_interval", hs.interval()).
		Dur("ping_timeout", hs.timeout()).
		Msg("Engine.IO handshake")

	connect, err := encodeConnect("/")
	if err != nil {
		return err
	}
	if err := write(connect); err != nil {
		return fmt.Errorf("namespace connect: %w", err)
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(hs.readDeadline()))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(data) == 0 {
			continue
		}

		typ, payload, err := decodeFrame(data)
		if err != nil {
			s.logger.Debug().Err(err).Str("frame", quoteFrame(string(data))).Msg("Ignoring unknown engine.io packet")
			continue
		}

		switch typ {
		case packet.PING:
			pong, err := encodeFrame(packet.PONG, payload)
			if err != nil {
				return err
			}
			if err := write(pong); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case packet.CLOSE:
			return errors.New("server closed the engine.io session")
		case packet.MESSAGE:
			done, err := s.handlePacket(payload, ready)
			if err != nil {
				return err
			}
			if done {
				return errors.New("server disconnected the namespace")
			}
		}
	}
}

// handlePacket processes one Socket.IO packet. done reports a server-side
// namespace disconnect.
func (s *SocketIO) handlePacket(raw string, ready func()) (done bool, err error) {
	p, err := decodeSocketPacket(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring malformed socket.io packet")
		return false, nil
	}
	if p.Namespace != "/" {
		return false, nil
	}

	switch p.Type {
	case sioConnect:
		ready()
	case sioConnectError:
		return false, fmt.Errorf("namespace connect rejected: %s", string(p.Data))
	case sioDisconnect:
		return true, nil
	case sioEvent:
		msg, err := decodeEvent(p.Data)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Ignoring malformed event")
			return false, nil
		}
		s.dispatch(msg)
	case sioBinaryEvent:
		s.logger.Debug().Msg("Ignoring binary event")
	}
	return false, nil
}
