package wsrelay

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// handleWebsocket upgrades the connection, registers the session and serves
// its batches until the connection closes.
func (m *Manager) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	expectedPath := m.Path()
	if expectedPath != "" && r.URL != nil && r.URL.Path != expectedPath {
		http.NotFound(w, r)
		return
	}
	if !strings.EqualFold(r.Method, http.MethodGet) {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logWarnf("wsrelay: upgrade failed: %v", err)
		return
	}
	s := newSession(conn, m, uuid.NewString())
	m.sessMutex.Lock()
	m.sessions[s.id] = s
	m.sessMutex.Unlock()
	if m.onConnected != nil {
		m.onConnected(s.id)
	}

	go s.readLoop()
	m.serve(context.WithoutCancel(r.Context()), s)
}

// serve runs the session's batches one after another.
func (m *Manager) serve(ctx context.Context, s *session) {
	for {
		select {
		case <-s.closed:
			return
		case req := <-s.requests:
			m.runBatch(ctx, s, req)
		}
	}
}

func (m *Manager) runBatch(parent context.Context, s *session, req inboundMessage) {
	// A cancel sent while idle must not stop this batch.
	select {
	case <-s.cancels:
	default:
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-s.cancels:
			m.logInfof("wsrelay: batch %s cancelled by client", req.ID)
			cancel()
		case <-done:
		}
	}()

	send := func(msg Message) error {
		msg.ID = req.ID
		return s.send(msg)
	}
	if m.run == nil {
		_ = send(Message{Type: MessageTypeError, Payload: map[string]any{"error": "Batch unavailable", "message": "No batch runner is configured"}})
		return
	}
	if err := m.run(ctx, req.Payload, send); err != nil {
		m.logDebugf("wsrelay: batch %s on session %s ended: %v", req.ID, s.id, err)
	}
}
