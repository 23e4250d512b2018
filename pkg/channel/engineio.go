package channel

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zishang520/engine.io-go-parser/packet"
	eioparser "github.com/zishang520/engine.io-go-parser/parser"
	"github.com/zishang520/engine.io-go-parser/types"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

// eio encodes and decodes Engine.IO v4 packets.
var eio = eioparser.Parserv4()

// Socket.IO v5 packet types, carried inside Engine.IO message packets.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioAck          = '3'
	sioConnectError = '4'
	sioBinaryEvent  = '5'
	sioBinaryAck    = '6'
)

// handshake is the payload of the Engine.IO open packet.
type handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func (h handshake) interval() time.Duration {
	if h.PingInterval <= 0 {
		return constants.DefaultPingInterval
	}
	return time.Duration(h.PingInterval) * time.Millisecond
}

func (h handshake) timeout() time.Duration {
	if h.PingTimeout <= 0 {
		return constants.DefaultPingTimeout
	}
	return time.Duration(h.PingTimeout) * time.Millisecond
}

// readDeadline is how long to wait for the next frame: the server pings every
// interval and is declared dead after a further timeout.
func (h handshake) readDeadline() time.Duration {
	return h.interval() + h.timeout()
}

// decodeFrame splits one Engine.IO text frame into its packet type and
// payload.
func decodeFrame(frame []byte) (packet.Type, string, error) {
	if len(frame) == 0 {
		return "", "", errors.NewParseError("engine.io", "packet", "empty frame", nil)
	}
	p, err := eio.DecodePacket(types.NewStringBuffer(frame))
	if err != nil {
		return "", "", errors.WrapParse("engine.io", "packet", err)
	}
	if p.Data == nil {
		return p.Type, "", nil
	}
	data, err := io.ReadAll(p.Data)
	if err != nil {
		return "", "", errors.WrapParse("engine.io", "packet", err)
	}
	return p.Type, string(data), nil
}

// encodeFrame renders an Engine.IO packet with an optional text payload.
func encodeFrame(typ packet.Type, data string) (string, error) {
	p := &packet.Packet{Type: typ}
	if data != "" {
		p.Data = types.NewStringBufferString(data)
	}
	buf, err := eio.EncodePacket(p, false)
	if err != nil {
		return "", errors.WrapParse("engine.io", "packet", err)
	}
	return buf.String(), nil
}

// decodeHandshake parses an Engine.IO open packet.
func decodeHandshake(frame []byte) (handshake, error) {
	var h handshake
	typ, data, err := decodeFrame(frame)
	if err != nil {
		return h, err
	}
	if typ != packet.OPEN {
		return h, errors.NewParseError("engine.io", "handshake", "expected open packet, got "+quoteFrame(string(frame)), nil)
	}
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return h, errors.WrapParse("engine.io", "handshake", err)
	}
	return h, nil
}

// socketPacket is a decoded Socket.IO packet.
type socketPacket struct {
	Type      byte
	Namespace string
	AckID     int
	HasAck    bool
	Data      json.RawMessage
}

// decodeSocketPacket parses the part of an Engine.IO message after the '4':
// <type>[<namespace>,][<ack id>][<json data>].
func decodeSocketPacket(s string) (socketPacket, error) {
	var p socketPacket
	if s == "" {
		return p, errors.NewParseError("socket.io", "packet", "empty packet", nil)
	}
	p.Type = s[0]
	if p.Type < sioConnect || p.Type > sioBinaryAck {
		return p, errors.NewParseError("socket.io", "packet", "unknown packet type "+quoteFrame(s), nil)
	}
	rest := s[1:]

	if p.Type == sioBinaryEvent || p.Type == sioBinaryAck {
		// <attachments>-
		i := strings.IndexByte(rest, '-')
		if i < 0 {
			return p, errors.NewParseError("socket.io", "packet", "binary packet without attachment count", nil)
		}
		rest = rest[i+1:]
	}

	p.Namespace = "/"
	if strings.HasPrefix(rest, "/") {
		i := strings.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace, rest = rest, ""
		} else {
			p.Namespace, rest = rest[:i], rest[i+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(rest[:digits])
		if err != nil {
			return p, errors.WrapParse("socket.io", "ack id", err)
		}
		p.AckID, p.HasAck = id, true
		rest = rest[digits:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return p, errors.NewParseError("socket.io", "packet", "invalid JSON data", nil)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// decodeEvent splits event data ["name", arg, ...] into the name and the
// first argument.
func decodeEvent(data json.RawMessage) (Message, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return Message{}, errors.WrapParse("socket.io", "event", err)
	}
	if len(args) == 0 {
		return Message{}, errors.NewParseError("socket.io", "event", "event without name", nil)
	}
	var msg Message
	if err := json.Unmarshal(args[0], &msg.Event); err != nil {
		return Message{}, errors.WrapParse("socket.io", "event name", err)
	}
	msg.Data = json.RawMessage("null")
	if len(args) > 1 {
		msg.Data = args[1]
	}
	return msg, nil
}

// encodeControl wraps a namespace-level Socket.IO packet with no data in an
// Engine.IO message.
func encodeControl(typ byte, namespace string) (string, error) {
	body := string(typ)
	if namespace != "" && namespace != "/" {
		body += namespace + ","
	}
	return encodeFrame(packet.MESSAGE, body)
}

// encodeConnect is the namespace connect request.
func encodeConnect(namespace string) (string, error) {
	return encodeControl(sioConnect, namespace)
}

// encodeDisconnect is the namespace disconnect notice.
func encodeDisconnect(namespace string) (string, error) {
	return encodeControl(sioDisconnect, namespace)
}

func quoteFrame(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return strconv.Quote(s)
}
