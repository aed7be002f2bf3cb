package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vitos/crypto_trade_level/internal/usecase"
)

// Server is the admin HTTP surface named in spec.md §6: a handful of
// execution-session control endpoints, a health check, a Prometheus
// scrape endpoint, and the /ws duplex subscriber channel. The market-data
// core never depends on this package; Server only reads from it.
type Server struct {
	router *http.ServeMux
	server *http.Server
	logger *zap.Logger

	hub            *usecase.SubscriptionHub
	session        *ExecutionSession
	symbols        []string
	allowedOrigins map[string]struct{} // empty means allow any origin
}

// NewServer constructs the admin server bound to addr (e.g. "0.0.0.0:8080").
// allowedOrigins is the ALLOWED_ORIGINS env var's split value, per
// spec.md §6; an empty slice allows every origin.
func NewServer(addr string, hub *usecase.SubscriptionHub, session *ExecutionSession, symbols, allowedOrigins []string, logger *zap.Logger) *Server {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	s := &Server{
		router:         http.NewServeMux(),
		hub:            hub,
		session:        session,
		symbols:        symbols,
		allowedOrigins: origins,
		logger:         logger,
	}
	s.routes()
	s.server = &http.Server{Addr: addr, Handler: s.withCORS(s.router)}
	return s
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	_, ok := s.allowedOrigins[origin]
	return ok
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/health", s.handleHealth)
	s.router.HandleFunc("GET /api/testnet/exchange-info", s.handleExchangeInfo)

	s.router.HandleFunc("GET /api/execution/status", s.handleExecutionStatus)
	s.router.HandleFunc("POST /api/execution/connect", s.handleExecutionConnect)
	s.router.HandleFunc("POST /api/execution/disconnect", s.handleExecutionDisconnect)
	s.router.HandleFunc("POST /api/execution/enabled", s.handleExecutionEnabled)
	s.router.HandleFunc("POST /api/execution/settings", s.handleExecutionSettings)
	s.router.HandleFunc("POST /api/execution/symbol", s.handleExecutionSymbol)

	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) Start() error {
	s.logger.Info("starting admin web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr formats a host/port pair into the listen address NewServer expects.
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
