// Package server exposes the query pipeline as an OpenAI-compatible
// chat-completions endpoint.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ternarybob/arbor"

	"supportrag/internal/domain"
	"supportrag/internal/service"
)

const loggerKey = "logger"

// Chat is the query pipeline behind the completions endpoint.
type Chat interface {
	Complete(ctx context.Context, req service.ChatRequest) ([]byte, *service.Retrieval, error)
	Stream(ctx context.Context, req service.ChatRequest) (domain.ChunkStream, error)
}

// Server wraps an echo instance serving the chat endpoints.
type Server struct {
	echo   *echo.Echo
	chat   Chat
	logger arbor.ILogger
}

func New(chat Chat, logger arbor.ILogger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, chat: chat, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(s.requestLogger)

	e.GET("/health", s.health)
	e.POST("/api/chat/completions", s.chatCompletions)
	e.POST("/chat/completions", s.chatCompletions)
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		logger := s.logger.WithCorrelationId(id)
		c.Set(loggerKey, logger)

		logger.Debug().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Msg("HTTP request")
		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func loggerFrom(c echo.Context, fallback arbor.ILogger) arbor.ILogger {
	if l, ok := c.Get(loggerKey).(arbor.ILogger); ok {
		return l
	}
	return fallback
}
