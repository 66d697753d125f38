package wsrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readTimeout          = 60 * time.Second
	writeTimeout         = 10 * time.Second
	maxInboundMessageLen = 1 << 20 // 1 MiB
	heartbeatInterval    = 30 * time.Second
)

var errClosed = errors.New("websocket session closed")

type session struct {
	conn       *websocket.Conn
	manager    *Manager
	id         string
	closed     chan struct{}
	closeOnce  sync.Once
	writeMutex sync.Mutex
	requests   chan inboundMessage
	cancels    chan string
}

func newSession(conn *websocket.Conn, mgr *Manager, id string) *session {
	s := &session{
		conn:     conn,
		manager:  mgr,
		id:       id,
		closed:   make(chan struct{}),
		requests: make(chan inboundMessage, 1),
		cancels:  make(chan string, 1),
	}
	conn.SetReadLimit(maxInboundMessageLen)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	s.startHeartbeat()
	return s
}

func (s *session) startHeartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.closed:
				return
			case <-ticker.C:
				s.writeMutex.Lock()
				err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
				s.writeMutex.Unlock()
				if err != nil {
					s.cleanup(err)
					return
				}
			}
		}
	}()
}

// readLoop runs until the connection fails or closes.
func (s *session) readLoop() {
	defer s.cleanup(errClosed)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.cleanup(err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		var msg inboundMessage
		if errDecode := json.Unmarshal(data, &msg); errDecode != nil {
			_ = s.send(Message{Type: MessageTypeError, Payload: map[string]any{"error": "Invalid message", "message": errDecode.Error()}})
			continue
		}
		s.dispatch(msg)
	}
}

func (s *session) dispatch(msg inboundMessage) {
	switch msg.Type {
	case MessageTypePing:
		_ = s.send(Message{ID: msg.ID, Type: MessageTypePong})
	case MessageTypeCancel:
		select {
		case s.cancels <- msg.ID:
		default:
		}
	case MessageTypeBatch:
		select {
		case s.requests <- msg:
		default:
			_ = s.send(Message{ID: msg.ID, Type: MessageTypeError, Payload: map[string]any{
				"error":   "Batch in progress",
				"message": "Wait for the running batch to finish or cancel it first",
			}})
		}
	default:
		s.manager.logDebugf("wsrelay: ignoring message type %q on session %s", msg.Type, s.id)
	}
}

func (s *session) send(msg Message) error {
	select {
	case <-s.closed:
		return errClosed
	default:
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func (s *session) cleanup(cause error) {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		if s.manager != nil {
			s.manager.handleSessionClosed(s, cause)
		}
	})
}
