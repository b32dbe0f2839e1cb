// Package proxy is the thin HTTP service between the recommender and the
// business search provider. It keeps the provider credential server side.
package proxy

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"quiz-recommender/internal/common/config"
	"quiz-recommender/internal/common/logger"
	"quiz-recommender/internal/common/metrics"
	"quiz-recommender/internal/provider/yelp"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes    = 64 << 10
	requestIDHeader = "X-Request-ID"
)

// Provider is the upstream search API. *yelp.Client satisfies it.
type Provider interface {
	Search(ctx context.Context, p yelp.SearchParams) (*yelp.SearchResponse, error)
	Business(ctx context.Context, id string) (*yelp.BusinessResponse, error)
	HasCredential() bool
}

type Server struct {
	cfg      config.ProxyConfig
	provider Provider
	logger   logger.Logger
	started  time.Time
}

func New(cfg config.ProxyConfig, provider Provider, log logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		logger:   logger.ForComponent(log, "proxy"),
		started:  time.Now(),
	}
}

// Routes builds the router: POST /search, POST /details, GET /ping, /health and /metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     s.cfg.AllowedOrigins,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"Content-Type", "Authorization"},
		ExposedHeaders:     []string{requestIDHeader},
		MaxAge:             86400,
		OptionsPassthrough: true,
	}))
	r.Use(s.instrument)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})

	r.Get("/ping", s.handlePing)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Options("/search", noContent)
	r.Options("/details", noContent)

	r.Group(func(r chi.Router) {
		if s.cfg.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RequestsPerMinute, time.Minute))
		}
		r.Post("/search", s.handleSearch)
		r.Post("/details", s.handleDetails)
	})
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Search proxy listening", map[string]interface{}{"address": s.cfg.Address})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ProxyRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.logger.Debug("Handled request", map[string]interface{}{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  ww.Header().Get(requestIDHeader),
		})
	})
}
