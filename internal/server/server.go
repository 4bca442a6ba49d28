// Package server exposes the chat pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/models"
)

const shutdownTimeout = 10 * time.Second

// ChatExecutor runs one chat request end to end
type ChatExecutor interface {
	Execute(ctx context.Context, requestID string, req *models.ChatRequest) (*models.CompletionResult, error)
}

// Server is the HTTP front of the gateway
type Server struct {
	engine *gin.Engine
	chat   ChatExecutor
	logger *logger.Logger
}

// New builds the router with its middleware and routes.
func New(chat ChatExecutor, log *logger.Logger) *Server {
	s := &Server{
		engine: gin.New(),
		chat:   chat,
		logger: log.WithComponent("http"),
	}

	zl := s.logger.Zap()
	s.engine.Use(
		requestIDMiddleware(),
		loggingMiddleware(zl, "/healthz", "/metrics"),
		recoveryMiddleware(zl),
		corsMiddleware(),
	)

	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.POST("/api/chat", s.handleChat)

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
