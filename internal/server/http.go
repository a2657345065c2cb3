// Package server provides the HTTP surface of flashdeck: deck and card CRUD,
// export, AI generation and the review workflow.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultBodySizeLimit caps request bodies; source texts for generation are
// the largest payloads we accept.
const DefaultBodySizeLimit int64 = 1 << 20 // 1MB

// Config holds server configuration options.
type Config struct {
	MasterKey      string // optional bearer token required on /api routes
	MetricsEnabled bool   // expose Prometheus metrics on /metrics
	BodySizeLimit  int64  // max request body size in bytes
}

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates a new HTTP server around the given handler.
func New(handler *Handler, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Paths that stay public even with a master key configured.
	authSkipPaths := []string{"/health"}
	if cfg != nil && cfg.MetricsEnabled {
		authSkipPaths = append(authSkipPaths, "/metrics")
	}

	// Global middleware stack (order matters)
	e.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig()))
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	if cfg != nil && cfg.MasterKey != "" {
		e.Use(AuthMiddleware(cfg.MasterKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	api := e.Group("/api/v1")
	api.POST("/decks", handler.CreateDeck)
	api.GET("/decks", handler.ListDecks)
	api.GET("/decks/:id", handler.GetDeck)
	api.PUT("/decks/:id", handler.UpdateDeck)
	api.DELETE("/decks/:id", handler.DeleteDeck)
	api.GET("/decks/:id/export", handler.ExportDeck)
	api.POST("/decks/:id/cards", handler.CreateCard)
	api.GET("/decks/:id/cards", handler.ListCards)
	api.POST("/decks/:id/generate", handler.GenerateCards)
	api.GET("/decks/:id/review", handler.DueCards)
	api.GET("/cards/:id", handler.GetCard)
	api.PUT("/cards/:id", handler.UpdateCard)
	api.DELETE("/cards/:id", handler.DeleteCard)
	api.POST("/cards/:id/review", handler.GradeCard)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// requestLoggerConfig routes Echo's request log through slog.
func requestLoggerConfig() middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				slog.Error("request", attrs...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
