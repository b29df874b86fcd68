package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type ServerConfig struct {
	Handler *Handler
	Host    string
	Port    int
	// CorsAllowedOrigins empty disables cross-origin access
	CorsAllowedOrigins []string
	RequestsPerSecond  float64
	Burst              int
}

type Server struct {
	router      chi.Router
	rateLimiter *RateLimiter
	server      *http.Server
}

func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil || cfg.Handler == nil {
		return nil, fmt.Errorf("[API] handler is nil")
	}
	if cfg.RequestsPerSecond <= 0 || cfg.Burst <= 0 {
		return nil, fmt.Errorf("[API] rate limit must be positive")
	}

	rateLimiter := NewRateLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	if len(cfg.CorsAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", HeaderAddress, HeaderTimestamp, HeaderSignature, HeaderRequestID},
			ExposedHeaders:   []string{HeaderRequestID},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(rateLimiter.RateLimit)
	cfg.Handler.RegisterRoutes(r)

	return &Server{
		router:      r,
		rateLimiter: rateLimiter,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root http handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("[API] Starting API server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.server.Shutdown(ctx)
}
