package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faultlinehq/faultline/internal/config"
	"github.com/faultlinehq/faultline/pkg/logger"
)

// Server wraps the HTTP server and its lifecycle.
type Server struct {
	cfg        config.ServerConfig
	logger     logger.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router, middleware and routes around the triager.
func NewServer(cfg config.ServerConfig, log logger.Logger, triager Triager) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))

	handler := NewTriageHandler(log, triager)
	router.GET("/healthz", handler.Health)

	v1 := router.Group("/api/v1/triage")
	v1.POST("/monitor", handler.Monitor)
	v1.POST("/logs", handler.Logs)
	v1.POST("/service", handler.Service)

	return &Server{cfg: cfg, logger: log, router: router}
}

// Start serves requests until ctx is canceled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.cfg.Address,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// Triage runs fan out to Datadog with retries; responses need time.
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("triage API listening", "addr", s.cfg.Address)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve on %s: %w", s.cfg.Address, err)
	case <-ctx.Done():
		s.logger.Info("shutting down triage API")
	}

	timeout := s.cfg.GracefulTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler returns the underlying router so tests can mount it directly.
func (s *Server) Handler() http.Handler {
	return s.router
}
