// Package http serves the payment JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paymanager/internal/log"
	"paymanager/internal/metrics"
	"paymanager/internal/middleware/ratelimit"
	"paymanager/internal/middleware/security"
	"paymanager/internal/middleware/trace"
)

type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	// RateLimit configures write throttling. A zero RequestsPerMinute
	// disables it.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	svc     PaymentService
	logger  *log.Logger
	limiter *ratelimit.Limiter
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc PaymentService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:     svc,
		logger:  opts.Logger.WithComponent(log.ComponentHTTP),
		started: time.Now(),
	}

	clientIP := security.NewClientIP()
	r := mux.NewRouter().UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Use(trace.NewMiddleware(s.logger, opts.Metrics, clientIP.Extract).Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	if opts.RateLimit.RequestsPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(opts.RateLimit)
		r.Use(s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
	}
	if opts.RequestTimeout > 0 {
		r.Use(withTimeout(opts.RequestTimeout))
	}

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/payments", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/payments", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("/payments", s.handleDeleteAll).Methods(http.MethodDelete)
	api.HandleFunc("/payments/{name}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/payments/{name}", s.handlePatch).Methods(http.MethodPatch)
	api.HandleFunc("/payments/{name}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/payments/{name}/pay", s.handlePay).Methods(http.MethodPost)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/chart", s.handleChart).Methods(http.MethodGet)

	s.Handler = r
	return s
}

// withTimeout bounds the context of every request.
func withTimeout(d time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
