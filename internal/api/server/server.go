package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-token-gate/internal/api/middleware"
	"github.com/feral-file/ff-token-gate/internal/api/rest"
	"github.com/feral-file/ff-token-gate/internal/gate"
	"github.com/feral-file/ff-token-gate/internal/logger"
	"github.com/feral-file/ff-token-gate/internal/ruleset"
)

// Config holds the server configuration
type Config struct {
	Debug        bool
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AddressHeader is the request header carrying the caller address
	AddressHeader string
	// UpstreamURL, when non-empty, is the origin gated requests are
	// proxied to; when empty the gateway answers decisions itself
	UpstreamURL string
	// RulesPath is the rules document used by the reload endpoint
	RulesPath string

	Auth middleware.AuthConfig
}

// Server wraps the HTTP server
type Server struct {
	config     Config
	engine     *gate.Engine
	loader     *ruleset.Loader
	httpServer *http.Server
}

// New creates a new gateway server
func New(cfg Config, engine *gate.Engine, loader *ruleset.Loader) *Server {
	return &Server{
		config: cfg,
		engine: engine,
		loader: loader,
	}
}

// Start initializes and starts the HTTP server
func (s *Server) Start() error {
	// Set Gin mode based on debug flag
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Setup middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.SetupCORS())

	// Admin + health routes
	restHandler := rest.NewHandler(s.engine, s.loader, s.config.RulesPath)
	rest.SetupRoutes(router, restHandler, s.config.Auth)

	// Every other path goes through the gate
	gated, err := s.gatedHandler()
	if err != nil {
		return err
	}
	gateOpts := middleware.GateOptions{
		AddressHeader: s.config.AddressHeader,
		JWTPublicKey:  s.config.Auth.JWTPublicKey,
	}
	router.NoRoute(middleware.Gate(s.engine, gateOpts), gated)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	logger.Info("Starting gateway server",
		zap.String("address", addr),
		zap.String("upstream", s.config.UpstreamURL),
	)

	// Start server
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// gatedHandler returns the handler run after the gate passes: a reverse
// proxy to the configured upstream, or a probe response when no
// upstream is configured
func (s *Server) gatedHandler() (gin.HandlerFunc, error) {
	if s.config.UpstreamURL == "" {
		return func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"allowed": true})
		}, nil
	}

	upstream, err := url.Parse(s.config.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL %q: %w", s.config.UpstreamURL, err)
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error(fmt.Errorf("upstream proxy error: %w", err),
			zap.String("path", r.URL.Path),
		)
		w.WriteHeader(http.StatusBadGateway)
	}

	return func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down gateway server")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	return nil
}
