package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/shared/id"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20
)

// Host implements bridge.Controller for websocket clients. Delegates are
// shared by every connection.
type Host struct {
	log      *logging.Logger
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	delegates map[string]bridge.MessageDelegate
	conns     map[id.ConnectionID]*conn
}

// Option configures a Host.
type Option func(*Host)

// WithCheckOrigin sets the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Host) { h.upgrader.CheckOrigin = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.log = l
		}
	}
}

// NewHost creates a host with no delegates.
func NewHost(opts ...Option) *Host {
	h := &Host{
		log: logging.NewNop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		delegates: make(map[string]bridge.MessageDelegate),
		conns:     make(map[id.ConnectionID]*conn),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.Named("ws")
	return h
}

// SetMessageDelegate implements bridge.Controller.
func (h *Host) SetMessageDelegate(name string, d bridge.MessageDelegate) error {
	if name == "" || d == nil {
		return errors.New("ws: delegate needs a name")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.delegates[name]; ok {
		return fmt.Errorf("ws: delegate %q already installed", name)
	}
	h.delegates[name] = d
	return nil
}

func (h *Host) delegate(name string) (bridge.MessageDelegate, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d, ok := h.delegates[name]
	return d, ok
}

// Connections returns the number of open connections.
func (h *Host) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Serve(ws)
}

// Serve runs the read loop for an established connection.
func (h *Host) Serve(ws *websocket.Conn) {
	c := &conn{
		id:    id.NewConnectionID(),
		h:     h,
		ws:    ws,
		ports: make(map[string]*port),
	}
	c.log = h.log.With(logging.Conn(c.id))

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	c.log.Info("client connected", zap.String("remote", ws.RemoteAddr().String()))

	defer func() {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		c.close()
		c.log.Info("client disconnected")
	}()

	ws.SetReadLimit(maxMessageSize)
	c.readLoop()
}

// Close closes every open connection.
func (h *Host) Close() {
	h.mu.RLock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}
