// Package gateway serves the attendance assistant over HTTP and websocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
	"absensi-ai/internal/infra/middleware"
	"absensi-ai/internal/usecase"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Agent answers one question given a prior transcript.
type Agent interface {
	Run(ctx context.Context, userMessage string, history []domain.Message, opts ...usecase.RunOption) string
}

// ServerDeps holds the dependencies of the gateway.
type ServerDeps struct {
	Agent    Agent
	Tools    domain.ToolExecutor
	Sessions *usecase.SessionManager
	Auth     Authenticator // nil disables authentication
	Health   func(ctx context.Context) error
	Logger   *slog.Logger
}

// Server is the HTTP and websocket gateway.
type Server struct {
	deps      ServerDeps
	cfg       config.GatewayConfig
	logger    *slog.Logger
	metrics   *Metrics
	startTime time.Time

	clients   sync.Map // connID (uint64) -> *clientConn
	nextID    atomic.Uint64
	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a gateway server.
func NewServer(cfg config.GatewayConfig, deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		deps:      deps,
		cfg:       cfg,
		logger:    deps.Logger,
		metrics:   &Metrics{},
		startTime: time.Now(),
	}
}

// Metrics returns the server counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler builds the routed handler with the middleware chain. The rate
// limiter's cleanup goroutine stops when ctx is done.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", requireAuth(s.deps.Auth, s.handleMetrics))
	mux.HandleFunc("POST /chat", requireAuth(s.deps.Auth, s.handleChat))
	mux.HandleFunc("POST /api/attendance/trends", requireAuth(s.deps.Auth, s.toolEndpoint("get_attendance_trends")))
	mux.HandleFunc("POST /api/geolocation/analysis", requireAuth(s.deps.Auth, s.toolEndpoint("get_geolocation_analysis")))
	mux.HandleFunc("POST /api/class/comparison", requireAuth(s.deps.Auth, s.toolEndpoint("compare_class_attendance")))
	mux.HandleFunc("GET /api/tools", requireAuth(s.deps.Auth, s.handleListTools))
	mux.HandleFunc("POST /api/tools/{name}", requireAuth(s.deps.Auth, s.handleToolCall))
	mux.HandleFunc("GET /ws", requireAuth(s.deps.Auth, s.handleUpgrade))
	mux.HandleFunc("GET /ws/{client_id}", requireAuth(s.deps.Auth, s.handleUpgrade))

	var h http.Handler = mux
	h = middleware.MaxBody(maxBodyBytes)(h)
	h = middleware.RateLimitWithConfig(ctx, middleware.RateLimitConfig{
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMinute,
		BurstSize:      s.cfg.RateLimit.Burst,
		TrustedProxies: s.cfg.TrustedProxies,
	})(h)
	h = middleware.CORS(s.cfg.CORSOrigins)(h)
	h = middleware.SecurityHeaders(h)
	return h
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop closes websocket clients and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(key, value any) bool {
		value.(*clientConn).close("server shutting down")
		s.clients.Delete(key)
		return true
	})

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// observer counts tool activity for the metrics endpoint and forwards
// events to next when set.
func (s *Server) observer(next usecase.Observer) usecase.Observer {
	return func(ev usecase.ToolEvent) {
		if ev.Kind == usecase.ToolEventResult {
			s.metrics.ToolCallsTotal.Add(1)
			if ev.Failed {
				s.metrics.ToolErrorsTotal.Add(1)
			}
		}
		if next != nil {
			next(ev)
		}
	}
}
