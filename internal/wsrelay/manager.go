// Package wsrelay streams batch results to browsers over websocket. A client
// sends one batch message at a time and receives one row message per result
// followed by a summary or an error.
package wsrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/git-captain/git-captain/internal/constant"
	"github.com/gorilla/websocket"
)

// RunFunc executes one batch. payload is the raw payload of the batch
// message. send writes a message to the client; its ID is filled in.
type RunFunc func(ctx context.Context, payload json.RawMessage, send func(Message) error) error

// Manager upgrades connections on one path and runs their batches.
type Manager struct {
	path      string
	upgrader  websocket.Upgrader
	run       RunFunc
	sessions  map[string]*session
	sessMutex sync.RWMutex

	onConnected    func(string)
	onDisconnected func(string, error)

	logDebugf func(string, ...any)
	logInfof  func(string, ...any)
	logWarnf  func(string, ...any)
}

// Options configures a Manager instance.
type Options struct {
	Path string
	// CheckOrigin decides whether a browser origin may connect. Nil allows same-origin requests only.
	CheckOrigin    func(*http.Request) bool
	Run            RunFunc
	OnConnected    func(string)
	OnDisconnected func(string, error)
	LogDebugf      func(string, ...any)
	LogInfof       func(string, ...any)
	LogWarnf       func(string, ...any)
}

// NewManager builds a websocket batch manager with the supplied options.
func NewManager(opts Options) *Manager {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = constant.BatchStreamPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	mgr := &Manager{
		path:     path,
		run:      opts.Run,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		onConnected:    opts.OnConnected,
		onDisconnected: opts.OnDisconnected,
		logDebugf:      opts.LogDebugf,
		logInfof:       opts.LogInfof,
		logWarnf:       opts.LogWarnf,
	}
	if mgr.logDebugf == nil {
		mgr.logDebugf = func(string, ...any) {}
	}
	if mgr.logInfof == nil {
		mgr.logInfof = func(string, ...any) {}
	}
	if mgr.logWarnf == nil {
		mgr.logWarnf = func(s string, args ...any) { fmt.Printf(s+"\n", args...) }
	}
	return mgr
}

// Path returns the HTTP path the manager expects for websocket upgrades.
func (m *Manager) Path() string {
	if m == nil {
		return constant.BatchStreamPath
	}
	return m.path
}

// Handler exposes an http.Handler that upgrades connections to websocket sessions.
func (m *Manager) Handler() http.Handler {
	return http.HandlerFunc(m.handleWebsocket)
}

// Sessions reports the number of connected clients.
func (m *Manager) Sessions() int {
	m.sessMutex.RLock()
	defer m.sessMutex.RUnlock()
	return len(m.sessions)
}

// Stop closes all active websocket sessions. Running batches stop before
// their next repository.
func (m *Manager) Stop(_ context.Context) error {
	m.sessMutex.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*session)
	m.sessMutex.Unlock()

	for _, sess := range sessions {
		sess.cleanup(errors.New("wsrelay: manager stopped"))
	}
	return nil
}

func (m *Manager) handleSessionClosed(s *session, cause error) {
	if s == nil {
		return
	}
	m.sessMutex.Lock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	m.sessMutex.Unlock()
	if m.onDisconnected != nil {
		m.onDisconnected(s.id, cause)
	}
}
