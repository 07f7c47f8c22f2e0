// Package server exposes question generation over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/mcqgen/internal/config"
	"github.com/abhisek/mcqgen/internal/llm"
	"github.com/abhisek/mcqgen/internal/logger"
	"github.com/abhisek/mcqgen/internal/metrics"
	"github.com/abhisek/mcqgen/internal/store"
)

// ProviderFactory builds the provider for one request.
type ProviderFactory func(ctx context.Context, cfg llm.Config, deps llm.Deps) (llm.Provider, error)

// Options configures a Server. Config and Logger are required.
type Options struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics // optional; /metrics is not routed without it
	Store   *store.Store     // optional; sessions are not persisted without it
	Version string

	// NewProvider defaults to llm.NewProvider.
	NewProvider ProviderFactory
}

// Server is the mcqgen HTTP server.
type Server struct {
	cfg         *config.Config
	log         logger.Logger
	metrics     *metrics.Metrics
	store       *store.Store
	version     string
	newProvider ProviderFactory

	router *gin.Engine
	http   *http.Server
}

// New creates a Server with its middleware and routes installed.
func New(opts Options) *Server {
	if opts.Config.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:         opts.Config,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		store:       opts.Store,
		version:     opts.Version,
		newProvider: opts.NewProvider,
	}
	if s.newProvider == nil {
		s.newProvider = llm.NewProvider
	}

	router := gin.New()
	// Recovery first, then the request-scoped logger so everything after it
	// logs with request_id.
	router.Use(RecoveryMiddleware(s.log))
	router.Use(RequestIDLoggerMiddleware(s.log))
	router.Use(LoggerMiddleware())
	if s.metrics != nil {
		router.Use(MetricsMiddleware(s.metrics))
	}
	router.Use(CORSMiddleware(s.cfg.Server.CORSOrigins))

	s.routes(router)
	s.router = router

	s.http = &http.Server{
		Addr:         s.cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api")
	if rl := s.cfg.RateLimit; rl.Enabled {
		api.Use(RateLimitMiddleware(newClientLimiter(rl.RequestsPerMinute, rl.Burst)))
	}
	api.POST("/generate-mcq-stream", s.handleGenerateStream)
	api.POST("/generate-mcq", s.handleGenerateBatch)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("Starting HTTP server",
		logger.String("address", ln.Addr().String()),
		logger.String("version", s.version),
		logger.Duration("read_timeout", s.http.ReadTimeout),
		logger.Duration("write_timeout", s.http.WriteTimeout),
	)
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests,
// open streams included, up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server",
		logger.Duration("timeout", s.cfg.Server.ShutdownTimeout),
	)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped gracefully")
	return nil
}
