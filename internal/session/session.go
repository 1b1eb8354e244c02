// Package session owns the lifecycle of one push connection. The
// session does not reconnect on its own; after a failure the caller
// decides whether to dial again.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pelusa-v/pelusa-chat-client/internal/dispatch"
	"github.com/pelusa-v/pelusa-chat-client/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ConnectionError reports a failed handshake or an illegal connect.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %s", e.Err.Error())
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Session is the push connection state machine. Inbound frames are
// decoded as {event, data} envelopes and handed to the dispatcher on
// the read goroutine; frames that do not decode are logged and dropped.
type Session struct {
	wsURL      string
	dispatcher *dispatch.Dispatcher
	log        *log.Logger
	dialer     *websocket.Dialer

	mu    sync.Mutex
	state State
	conn  *websocket.Conn
	send  chan []byte
	stop  chan struct{}
}

func NewSession(wsURL string, d *dispatch.Dispatcher, logger *log.Logger) *Session {
	return &Session{
		wsURL:      wsURL,
		dispatcher: d,
		log:        logger,
		dialer:     websocket.DefaultDialer,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect performs the auth-bearing handshake. On failure the session
// returns to disconnected and the caller gets a ConnectionError.
func (s *Session) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		state := s.state
		s.mu.Unlock()
		return &ConnectionError{Err: fmt.Errorf("session already %s", state)}
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, _, err := s.dialer.DialContext(ctx, s.wsURL+"?token="+url.QueryEscape(token), nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return &ConnectionError{Err: err}
	}

	s.mu.Lock()
	s.conn = conn
	s.send = make(chan []byte, sendBufferSize)
	s.stop = make(chan struct{})
	s.state = StateConnected
	send, stop := s.send, s.stop
	s.mu.Unlock()

	go s.readPump(conn)
	go s.writePump(conn, send, stop)

	s.log.Println("push connection established")
	return nil
}

// Send queues an outbound envelope. While not connected it is a silent
// no-op so callers never need a readiness check before sending.
func (s *Session) Send(event types.EventName, data any) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	send := s.send
	s.mu.Unlock()

	payload, err := json.Marshal(data)
	if err != nil {
		s.log.Printf("encode %q payload: %v", event, err)
		return
	}

	frame, err := json.Marshal(types.Envelope{Event: event, Data: payload})
	if err != nil {
		s.log.Printf("encode %q envelope: %v", event, err)
		return
	}

	select {
	case send <- frame:
	default:
		s.log.Printf("send buffer full, dropping %q", event)
	}
}

// Disconnect tears the connection down and is always legal; calling it
// on an already disconnected session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return
	}
	s.teardown(conn)
}

// teardown releases the given connection. A connection that has
// already been replaced or released is left alone, which makes the
// read-error path and Disconnect safe to race.
func (s *Session) teardown(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != conn {
		return
	}

	close(s.stop)
	conn.Close()
	s.conn = nil
	s.send = nil
	s.stop = nil
	s.state = StateDisconnected
	s.log.Println("push connection closed")
}

func (s *Session) readPump(conn *websocket.Conn) {
	defer s.teardown(conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			s.log.Printf("dropping malformed frame: %s", raw)
			continue
		}

		s.dispatcher.Dispatch(env.Event, env.Data)
	}
}

func (s *Session) writePump(conn *websocket.Conn, send chan []byte, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Printf("ws: write: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
