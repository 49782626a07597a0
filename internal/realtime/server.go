package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"project-tracker/internal/observability"
	"project-tracker/internal/snapshot"
)

const (
	pingInterval  = 30 * time.Second
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second

	defaultPollInterval = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard is read-only; any origin may subscribe.
	},
}

// Options configures a Server.
type Options struct {
	Metrics      *observability.Metrics
	Gatherer     prometheus.Gatherer // serves /metrics when set
	StaticDir    string
	PollInterval time.Duration
}

// Server serves dashboard snapshots over REST and pushes them to
// WebSocket clients.
type Server struct {
	snapshots    *snapshot.Service
	metrics      *observability.Metrics
	gatherer     prometheus.Gatherer
	staticDir    string
	pollInterval time.Duration

	clients   map[*client]bool
	clientsMu sync.RWMutex
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// New creates a new realtime server.
func New(snapshots *snapshot.Service, opts Options) *Server {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Server{
		snapshots:    snapshots,
		metrics:      opts.Metrics,
		gatherer:     opts.Gatherer,
		staticDir:    opts.StaticDir,
		pollInterval: opts.PollInterval,
		clients:      make(map[*client]bool),
	}
}

// Handler returns an http.Handler with all routes configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint.
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// REST API endpoints.
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Static file serving.
	if s.staticDir != "" {
		fileServer := http.FileServer(http.Dir(s.staticDir))
		mux.Handle("/", fileServer)
	}

	return corsMiddleware(requestMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestMiddleware tags each request with an id and logs its outcome.
func requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := observability.WithRequestID(r.Context(), reqID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		observability.LoggerFromContext(ctx).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Run pushes an agents snapshot to connected clients every poll interval
// until ctx is done.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.BroadcastAgents(ctx)
		}
	}
}

// BroadcastAgents builds an agents snapshot and sends it to every client.
// Nothing is built while no client is connected.
func (s *Server) BroadcastAgents(ctx context.Context) {
	if s.clientCount() == 0 {
		return
	}
	s.broadcast(s.agentsMessage(ctx))
}

// BroadcastProjects builds a projects snapshot and sends it to every
// client. The file watcher calls it after the project file changes.
func (s *Server) BroadcastProjects(ctx context.Context) {
	if s.clientCount() == 0 {
		return
	}
	s.broadcast(s.projectsMessage(ctx))
}

// Shutdown closes every client connection.
func (s *Server) Shutdown() {
	s.clientsMu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

func (s *Server) clientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// broadcast sends an encoded message to all connected clients.
func (s *Server) broadcast(data []byte) {
	if data == nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, skip.
		}
	}
}

// sendTo queues data for one client if it is still connected.
func (s *Server) sendTo(c *client, data []byte) {
	if data == nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	if !s.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func encode(msg interface{}) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		observability.Logger().Error("encode websocket message", "error", err)
		return nil
	}
	return data
}
