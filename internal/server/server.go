package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"StableCore/internal/engine"
	"StableCore/internal/observability"
)

// Server exposes the engine over HTTP/JSON. Reads go straight to the
// engine's accessors; state-changing endpoints call the guarded
// operations and map engine errors to HTTP statuses.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

type Deps struct {
	Engine        *engine.Engine
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

func New(addr string, deps *Deps) *Server {
	h := &handlers{
		engine:  deps.Engine,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", deps.HealthChecker.LivenessHandler)
	mux.HandleFunc("GET /readyz", deps.HealthChecker.ReadinessHandler)

	// Read endpoints.
	mux.HandleFunc("GET /api/params", h.getParams)
	mux.HandleFunc("GET /api/accounts/{id}", h.getAccount)
	mux.HandleFunc("GET /api/accounts/{id}/collateral/{token}", h.getCollateralBalance)
	mux.HandleFunc("GET /api/value/usd", h.getUsdValue)
	mux.HandleFunc("GET /api/value/token", h.getTokenAmount)

	// Operation endpoints.
	mux.HandleFunc("POST /api/deposit", h.postDeposit)
	mux.HandleFunc("POST /api/mint", h.postMint)
	mux.HandleFunc("POST /api/deposit-and-mint", h.postDepositAndMint)
	mux.HandleFunc("POST /api/redeem", h.postRedeem)
	mux.HandleFunc("POST /api/burn", h.postBurn)
	mux.HandleFunc("POST /api/redeem-for-burn", h.postRedeemForBurn)
	mux.HandleFunc("POST /api/liquidate", h.postLiquidate)

	var handler http.Handler = mux
	handler = metricsMiddleware(deps.Metrics)(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: deps.Logger,
	}
}

// Handler exposes the routed handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// metricsMiddleware counts requests and observes latency per route
// pattern. The pattern is only known after routing, so it reads
// r.Pattern populated by the mux.
func metricsMiddleware(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			endpoint := r.Pattern
			if endpoint == "" {
				endpoint = "unmatched"
			}
			m.HTTPRequests.WithLabelValues(endpoint, http.StatusText(sw.status)).Inc()
			m.HTTPDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
