package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-go-parser/packet"

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

const openPacket = `0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// socketIOServer runs the Engine.IO and namespace handshakes for every
// connection and then hands the connection to script with its 1-based index.
func socketIOServer(t *testing.T, script func(n int, conn *websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var count atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(count.Add(1))
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(openPacket)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil || string(data) != "40" {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"n1"}`)); err != nil {
			return
		}
		script(n, conn)
	}))
	t.Cleanup(srv.Close)
	return srv, &count
}

func send(conn *websocket.Conn, frame string) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// drainUntilClosed blocks until the client goes away and returns every frame
// it sent meanwhile.
func drainUntilClosed(conn *websocket.Conn) []string {
	var frames []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return frames
		}
		frames = append(frames, string(data))
	}
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func fastReconnect(attempts int) Option {
	return WithReconnect(ReconnectPolicy{Attempts: attempts, Delay: 10 * time.Millisecond})
}

func TestSocketIOURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:5000":        "ws://localhost:5000/socket.io/?EIO=4&transport=websocket",
		"https://example.com/tally/":   "wss://example.com/tally/socket.io/?EIO=4&transport=websocket",
		"http://127.0.0.1:8080/prefix": "ws://127.0.0.1:8080/prefix/socket.io/?EIO=4&transport=websocket",
	}
	for in, want := range tests {
		got, err := SocketIOURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := SocketIOURL("not a url")
	assert.Error(t, err)
}

func TestEngineIOFrames(t *testing.T) {
	hs, err := decodeHandshake([]byte(openPacket))
	require.NoError(t, err)
	assert.Equal(t, "s1", hs.SID)
	assert.Equal(t, 45*time.Second, hs.readDeadline())

	_, err = decodeHandshake([]byte(`40`))
	assert.Error(t, err)

	typ, data, err := decodeFrame([]byte(`2hb-7`))
	require.NoError(t, err)
	assert.Equal(t, packet.PING, typ)
	assert.Equal(t, "hb-7", data)

	typ, data, err = decodeFrame([]byte(`42["form_update",{}]`))
	require.NoError(t, err)
	assert.Equal(t, packet.MESSAGE, typ)
	assert.Equal(t, `2["form_update",{}]`, data)

	_, _, err = decodeFrame([]byte(`9`))
	assert.Error(t, err)

	pong, err := encodeFrame(packet.PONG, "hb-7")
	require.NoError(t, err)
	assert.Equal(t, "3hb-7", pong)

	connect, err := encodeConnect("/")
	require.NoError(t, err)
	assert.Equal(t, "40", connect)

	leave, err := encodeDisconnect("/admin")
	require.NoError(t, err)
	assert.Equal(t, "41/admin,", leave)
}

func TestSocketIOEvents(t *testing.T) {
	clientFrames := make(chan []string, 1)
	srv, _ := socketIOServer(t, func(_ int, conn *websocket.Conn) {
		send(conn, `42["form_update",{"nome":"Ana","numero":"1"}]`)
		send(conn, `42["other",1]`)
		send(conn, `42/admin,["form_update",{"nome":"ignored"}]`)
		send(conn, `2`)
		send(conn, `42["form_update",{"reset":true}]`)
		clientFrames <- drainUntilClosed(conn)
	})

	var statuses []Status
	var mu sync.Mutex
	ch, err := NewSocketIO(srv.URL, fastReconnect(0), WithStatusHook(func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}))
	require.NoError(t, err)

	got := make(chan Message, 8)
	ch.Subscribe(constants.UpdateEvent, func(m Message) { got <- m })
	require.NoError(t, ch.Open(context.Background()))

	first := receive(t, got)
	assert.Equal(t, "form_update", first.Event)
	assert.False(t, first.IsReset())
	p, err := first.Payload()
	require.NoError(t, err)
	assert.Equal(t, "Ana", p["nome"])

	second := receive(t, got)
	assert.True(t, second.IsReset())
	assert.Equal(t, StatusConnected, ch.Status())

	require.NoError(t, ch.Close())
	assert.Equal(t, StatusClosed, ch.Status())
	assert.NoError(t, ch.Err())

	select {
	case frames := <-clientFrames:
		assert.Contains(t, frames, "3")
		assert.Contains(t, frames, "41")
	case <-time.After(3 * time.Second):
		t.Fatal("server did not see the client leave")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusConnecting, StatusConnected, StatusClosed}, statuses)
}

func TestSocketIOReconnectsAfterDrop(t *testing.T) {
	srv, count := socketIOServer(t, func(n int, conn *websocket.Conn) {
		if n == 1 {
			send(conn, `41`)
			return
		}
		send(conn, `42["form_update",{"numero":"2"}]`)
		drainUntilClosed(conn)
	})

	ch, err := NewSocketIO(srv.URL, fastReconnect(3))
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	got := make(chan Message, 1)
	ch.Subscribe(constants.UpdateEvent, func(m Message) { got <- m })
	require.NoError(t, ch.Open(context.Background()))

	m := receive(t, got)
	p, err := m.Payload()
	require.NoError(t, err)
	assert.Equal(t, "2", p["numero"])
	assert.Equal(t, int32(2), count.Load())
}

func TestSocketIOGivesUp(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ch, err := NewSocketIO(srv.URL, fastReconnect(2))
	require.NoError(t, err)
	require.NoError(t, ch.Open(context.Background()))

	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not give up")
	}

	assert.Equal(t, int32(3), count.Load())
	assert.Equal(t, StatusDisconnected, ch.Status())
	require.Error(t, ch.Err())
	assert.True(t, errors.IsUnavailable(ch.Err()))

	var chErr *errors.ChannelError
	require.True(t, errors.As(ch.Err(), &chErr))
	assert.Equal(t, 3, chErr.Attempt)
	assert.Equal(t, "socketio", chErr.Transport)
}

func TestSocketIOUnsubscribe(t *testing.T) {
	srv, _ := socketIOServer(t, func(_ int, conn *websocket.Conn) {
		send(conn, `42["form_update",{"numero":"1"}]`)
		send(conn, `42["form_update",{"numero":"2"}]`)
		drainUntilClosed(conn)
	})

	ch, err := NewSocketIO(srv.URL)
	require.NoError(t, err)
	defer func() { _ = ch.Close() }()

	kept := make(chan Message, 4)
	dropped := make(chan Message, 4)
	ch.Subscribe(constants.UpdateEvent, func(m Message) { kept <- m })
	unsubscribe := ch.Subscribe(constants.UpdateEvent, func(m Message) { dropped <- m })
	unsubscribe()

	require.NoError(t, ch.Open(context.Background()))
	receive(t, kept)
	receive(t, kept)
	assert.Empty(t, dropped)
}

func TestOpenTwiceAndAfterClose(t *testing.T) {
	ch := NewNop()
	require.NoError(t, ch.Open(context.Background()))
	assert.Error(t, ch.Open(context.Background()))
	assert.Equal(t, StatusIdle, ch.Status())

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.True(t, errors.IsClosed(ch.Open(context.Background())))
	assert.Equal(t, StatusClosed, ch.Status())

	unopened := NewNop()
	require.NoError(t, unopened.Close())
	<-unopened.Done()
}

func TestOpenStopsWithContext(t *testing.T) {
	ch := NewNop()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ch.Open(ctx))
	cancel()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.NoError(t, ch.Err())
}

func TestSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stream" || r.Header.Get("Accept") != "text/event-stream" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "event: form_update\ndata: {\"nome\":\"Ana\"}\n\n")
		fmt.Fprint(w, "event: form_update\ndata: not json\n\n")
		fmt.Fprint(w, "data: {\"x\":1}\n\n")
		fmt.Fprint(w, "event: form_update\nid: 7\ndata: {\"reset\":\ndata: true}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ch, err := NewSSE(srv.URL, fastReconnect(0))
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api/stream", ch.URL())

	updates := make(chan Message, 4)
	messages := make(chan Message, 4)
	ch.Subscribe(constants.UpdateEvent, func(m Message) { updates <- m })
	ch.Subscribe("message", func(m Message) { messages <- m })
	require.NoError(t, ch.Open(context.Background()))

	first := receive(t, updates)
	p, err := first.Payload()
	require.NoError(t, err)
	assert.Equal(t, "Ana", p["nome"])

	assert.JSONEq(t, `{"x":1}`, string(receive(t, messages).Data))
	assert.True(t, receive(t, updates).IsReset())

	require.NoError(t, ch.Close())
}

func TestSSEResumesAfterDrop(t *testing.T) {
	var count atomic.Int32
	lastIDs := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client") != "tally" {
			http.Error(w, "missing client header", http.StatusBadRequest)
			return
		}
		n := count.Add(1)
		lastIDs <- r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		if n == 1 {
			fmt.Fprint(w, "event: form_update\nid: 41\ndata: {\"numero\":\"1\"}\n\n")
			flusher.Flush()
			return
		}
		fmt.Fprint(w, "event: form_update\nid: 42\ndata: {\"numero\":\"2\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ch, err := NewSSE(srv.URL, fastReconnect(3), WithHeader(http.Header{"X-Client": []string{"tally"}}))
	require.NoError(t, err)
	updates := make(chan Message, 4)
	ch.Subscribe(constants.UpdateEvent, func(m Message) { updates <- m })
	require.NoError(t, ch.Open(context.Background()))
	defer func() { _ = ch.Close() }()

	for _, want := range []string{"1", "2"} {
		p, err := receive(t, updates).Payload()
		require.NoError(t, err)
		assert.Equal(t, want, p["numero"])
	}
	assert.Equal(t, "", <-lastIDs)
	assert.Equal(t, "41", <-lastIDs, "reconnect resumes after the last event id")
	assert.Equal(t, StatusConnected, ch.Status())
}

func TestSSEStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ch, err := NewSSE(srv.URL, fastReconnect(0))
	require.NoError(t, err)
	require.NoError(t, ch.Open(context.Background()))
	<-ch.Done()

	require.Error(t, ch.Err())
	assert.True(t, errors.IsNotFound(ch.Err()))
}

func TestNew(t *testing.T) {
	ch, err := New(TransportSocketIO, "http://localhost:5000")
	require.NoError(t, err)
	assert.IsType(t, &SocketIO{}, ch)

	ch, err = New(TransportSSE, "http://localhost:5000")
	require.NoError(t, err)
	assert.IsType(t, &SSE{}, ch)

	ch, err = New(TransportNone, "")
	require.NoError(t, err)
	assert.IsType(t, &Nop{}, ch)

	_, err = New("carrier-pigeon", "http://localhost:5000")
	assert.Error(t, err)
}

func TestMessage(t *testing.T) {
	assert.True(t, Message{Data: json.RawMessage(`{"reset": true}`)}.IsReset())
	assert.False(t, Message{Data: json.RawMessage(`{"reset": false}`)}.IsReset())
	assert.False(t, Message{Data: json.RawMessage(`{"nome": "x"}`)}.IsReset())
	assert.False(t, Message{Data: json.RawMessage(`[1]`)}.IsReset())

	_, err := Message{Event: "form_update", Data: json.RawMessage(`[1]`)}.Payload()
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	_, err = Message{Event: "form_update", Data: json.RawMessage(`null`)}.Payload()
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
