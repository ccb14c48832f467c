// Package server pushes reload results to connected clients over
// WebSocket. Editor plugins or browser previews connect to /ws and
// receive one JSON event per reload, success or failure, so they can
// swap in fresh SPIR-V or surface compiler diagnostics without polling.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/shaderwatch/internal/config"
	"github.com/conneroisu/shaderwatch/internal/logging"
	"github.com/conneroisu/shaderwatch/internal/watch"
)

// ReloadEvent is the JSON document broadcast per reload.
type ReloadEvent struct {
	Status   string `json:"status"` // "ok" or "error"
	Error    string `json:"error,omitempty"`
	Vertex   string `json:"vertex,omitempty"` // vertex entry point name
	Fragment string `json:"fragment,omitempty"`
	Compute  string `json:"compute,omitempty"`
	// Workgroup is only set for compute reloads; omitempty is inert on
	// fixed-size arrays, so a pointer keeps it out of graphics and
	// error events.
	Workgroup *[3]uint32 `json:"workgroup,omitempty"`
	SizeBytes int        `json:"size_bytes"` // total SPIR-V bytes across stages
	Timestamp time.Time  `json:"timestamp"`
}

// EventFromResult converts a reload result into its wire form.
func EventFromResult(r watch.Result) ReloadEvent {
	ev := ReloadEvent{Timestamp: time.Now()}

	if r.Err != nil {
		ev.Status = "error"
		ev.Error = r.Err.Error()

		return ev
	}

	ev.Status = "ok"
	ev.Vertex = r.Message.Entry.Vertex.Name
	ev.Fragment = r.Message.Entry.Fragment.Name
	ev.Compute = r.Message.Entry.Compute.Name
	if ev.Compute != "" {
		workgroup := r.Message.Entry.Compute.Workgroup
		ev.Workgroup = &workgroup
	}
	ev.SizeBytes = len(r.Message.Shaders.Vertex) +
		len(r.Message.Shaders.Fragment) +
		len(r.Message.Shaders.Compute)

	return ev
}

// client is one connected WebSocket peer with a buffered send queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server broadcasts reload events to WebSocket clients.
//
// A central hub goroutine owns the clients map; registration,
// unregistration and broadcasting all go through channels so no client
// I/O ever holds a lock.
type Server struct {
	cfg    config.ServerConfig
	logger logging.Logger

	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte

	httpServer *http.Server
	listener   net.Listener

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
}

// New creates a Server. Call Start to begin listening.
func New(cfg config.ServerConfig, logger logging.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:        cfg,
		logger:     logger.WithComponent("server"),
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client, 32),
		unregister: make(chan *websocket.Conn, 32),
		broadcast:  make(chan []byte, 256),
		ctx:        ctx,
		cancel:     cancel,
		hubDone:    make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The hub starts with the server value, not with Start, so
	// Shutdown always has a hub to join.
	go s.runHub()

	return s
}

// Start binds the listener and serves until Shutdown. It returns once
// the listener is bound; serving continues in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error(s.ctx, err, "http server stopped")
		}
	}()

	s.logger.Info(s.ctx, "listening", "addr", listener.Addr().String())

	return nil
}

// Addr returns the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// Broadcast queues a reload event for every connected client. It never
// blocks; if the broadcast queue is full the event is dropped, since a
// newer one supersedes it anyway.
func (s *Server) Broadcast(ev ReloadEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error(s.ctx, err, "marshaling reload event")

		return
	}

	select {
	case s.broadcast <- payload:
	default:
		s.logger.Warn(s.ctx, nil, "broadcast queue full, dropping event")
	}
}

// Shutdown closes all client connections and stops the HTTP server.
// Idempotent.
func (s *Server) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		s.cancel()
		<-s.hubDone

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "http server shutdown")
		}
	})
}

// runHub is the central goroutine owning the clients map.
func (s *Server) runHub() {
	defer func() {
		for conn, c := range s.clients {
			close(c.send)
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		close(s.hubDone)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return

		case c := <-s.register:
			s.clients[c.conn] = c
			s.logger.Debug(s.ctx, "client connected", "clients", len(s.clients))

		case conn := <-s.unregister:
			if c, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				close(c.send)
				s.logger.Debug(s.ctx, "client disconnected", "clients", len(s.clients))
			}

		case payload := <-s.broadcast:
			for conn, c := range s.clients {
				select {
				case c.send <- payload:
				default:
					// Slow client; disconnect rather than stall the hub.
					delete(s.clients, conn)
					close(c.send)
					_ = conn.Close(websocket.StatusPolicyViolation, "send queue overflow")
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.allowedOrigin(r) {
		s.logger.Warn(r.Context(), nil, "rejecting connection", "origin", r.Header.Get("Origin"))
		http.Error(w, "Forbidden", http.StatusForbidden)

		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origin is validated above against the configured allowlist.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")

		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}

	select {
	case s.register <- c:
	case <-s.ctx.Done():
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")

		return
	}

	go s.writePump(c)
}

// writePump drains one client's send queue. Clients are read-discarded:
// the protocol is push-only.
func (s *Server) writePump(c *client) {
	readCtx := c.conn.CloseRead(s.ctx)

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()

			if err != nil {
				s.dropClient(c.conn)

				return
			}

		case <-readCtx.Done():
			s.dropClient(c.conn)

			return
		}
	}
}

func (s *Server) dropClient(conn *websocket.Conn) {
	select {
	case s.unregister <- conn:
	case <-s.ctx.Done():
	}
}

func (s *Server) allowedOrigin(r *http.Request) bool {
	// An empty allowlist admits everyone, which suits a local dev tool.
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		// Non-browser clients send no Origin header.
		return true
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
