package session

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pelusa-v/pelusa-chat-client/internal/dispatch"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

// pushServer upgrades one connection and passes it to fn.
func pushServer(t *testing.T, fn func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		fn(conn, r)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnect(t *testing.T) {
	t.Run("successful handshake", func(t *testing.T) {
		tokens := make(chan string, 1)
		srv := pushServer(t, func(conn *websocket.Conn, r *http.Request) {
			tokens <- r.URL.Query().Get("token")
			conn.ReadMessage()
		})
		defer srv.Close()

		s := NewSession(wsURL(srv), dispatch.NewDispatcher(), testLogger())
		defer s.Disconnect()

		require.NoError(t, s.Connect(context.Background(), "t1"))
		assert.Equal(t, StateConnected, s.State())
		assert.Equal(t, "t1", <-tokens, "expected token passed on the handshake")
	})

	t.Run("handshake failure returns ConnectionError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no", http.StatusUnauthorized)
		}))
		defer srv.Close()

		s := NewSession(wsURL(srv), dispatch.NewDispatcher(), testLogger())
		err := s.Connect(context.Background(), "t1")

		var cerr *ConnectionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, StateDisconnected, s.State(), "expected return to disconnected on failure")
	})

	t.Run("connect while connected fails", func(t *testing.T) {
		srv := pushServer(t, func(conn *websocket.Conn, r *http.Request) {
			conn.ReadMessage()
		})
		defer srv.Close()

		s := NewSession(wsURL(srv), dispatch.NewDispatcher(), testLogger())
		defer s.Disconnect()

		require.NoError(t, s.Connect(context.Background(), "t1"))
		assert.Error(t, s.Connect(context.Background(), "t1"))
	})
}

func TestInboundDispatch(t *testing.T) {
	frames := []string{
		`not json at all`,
		`{"no_event_field":true}`,
		`{"event":"new_message","data":{"id":"m1","content":"hola"}}`,
	}

	srv := pushServer(t, func(conn *websocket.Conn, r *http.Request) {
		for _, f := range frames {
			conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		conn.ReadMessage()
	})
	defer srv.Close()

	d := dispatch.NewDispatcher()
	received := make(chan json.RawMessage, len(frames))
	d.Subscribe(types.EventNewMessage, func(data json.RawMessage) {
		received <- data
	})

	s := NewSession(wsURL(srv), d, testLogger())
	defer s.Disconnect()
	require.NoError(t, s.Connect(context.Background(), "t1"))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"id":"m1","content":"hola"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched frame")
	}

	// The two malformed frames must have been dropped, not delivered.
	select {
	case data := <-received:
		t.Fatalf("unexpected extra dispatch: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSend(t *testing.T) {
	t.Run("while connected", func(t *testing.T) {
		frames := make(chan []byte, 1)
		srv := pushServer(t, func(conn *websocket.Conn, r *http.Request) {
			_, raw, err := conn.ReadMessage()
			if err == nil {
				frames <- raw
			}
		})
		defer srv.Close()

		s := NewSession(wsURL(srv), dispatch.NewDispatcher(), testLogger())
		defer s.Disconnect()
		require.NoError(t, s.Connect(context.Background(), "t1"))

		s.Send(types.EventJoinRoom, types.JoinRoomPayload{RoomId: "r1"})

		select {
		case raw := <-frames:
			assert.JSONEq(t, `{"event":"join_room","data":{"roomId":"r1"}}`, string(raw))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for outbound frame")
		}
	})

	t.Run("while disconnected is a no-op", func(t *testing.T) {
		s := NewSession("ws://localhost:0", dispatch.NewDispatcher(), testLogger())

		assert.NotPanics(t, func() {
			s.Send(types.EventSendMessage, types.SendMessagePayload{RoomId: "r1", Content: "hola"})
		})
	})
}

func TestDisconnect(t *testing.T) {
	srv := pushServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.ReadMessage()
	})
	defer srv.Close()

	s := NewSession(wsURL(srv), dispatch.NewDispatcher(), testLogger())
	require.NoError(t, s.Connect(context.Background(), "t1"))

	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())

	// Idempotent: a second disconnect must not panic or block.
	assert.NotPanics(t, s.Disconnect)

	// A new connect after disconnect is legal.
	require.NoError(t, s.Connect(context.Background(), "t2"))
	s.Disconnect()
}
