// Package dashboard serves the live statistics over HTTP: a websocket stream,
// a JSON snapshot endpoint, a command endpoint and a Prometheus scrape target.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/studiowebux/frontloader/internal/command"
	"github.com/studiowebux/frontloader/internal/logger"
)

const (
	// StreamInterval is how often /ws pushes a snapshot.
	StreamInterval = 100 * time.Millisecond

	maxClients   = 100
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// Dispatcher runs control commands.
type Dispatcher interface {
	Dispatch(cmd command.Command) error
}

// Server is the dashboard HTTP server.
type Server struct {
	addr     string
	src      Source
	dispatch Dispatcher
	now      func() time.Time

	upgrader websocket.Upgrader
	registry *prometheus.Registry
	server   *http.Server

	clientsMu sync.Mutex
	clients   int
}

// NewServer creates a dashboard listening on addr.
func NewServer(addr string, src Source, dispatch Dispatcher) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(src))

	return &Server{
		addr:     addr,
		src:      src,
		dispatch: dispatch,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		registry: registry,
	}
}

// Handler returns the routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/command/{name}", s.handleCommand)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{DisableCompression: true}))

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Component("dashboard").Info("Starting dashboard", "addr", s.addr)
		errc <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, BuildPayload(s.src, s.now()))
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, ok := command.Parse(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown command"})
		return
	}

	if err := s.dispatch.Dispatch(cmd); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	logger.Component("dashboard").Info("Command received", "command", cmd, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"command": string(cmd), "phase": s.src.Phase().String()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.Component("dashboard")

	s.clientsMu.Lock()
	if s.clients >= maxClients {
		s.clientsMu.Unlock()
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}
	s.clients++
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		s.clients--
		s.clientsMu.Unlock()
	}()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Reading is required to notice the client going away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("WebSocket read error", "err", err)
				}
				return
			}
		}
	}()

	push := time.NewTicker(StreamInterval)
	defer push.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(BuildPayload(s.src, s.now()))
	}
	if err := send(); err != nil {
		return
	}

	for {
		select {
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-push.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Component("dashboard").Warn("Failed to encode response", "err", err)
	}
}
