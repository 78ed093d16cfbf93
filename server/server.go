// Package server exposes the retrieval pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hyphora/hyphora/ai/core/retrieval"
	"github.com/hyphora/hyphora/ai/metrics"
	"github.com/hyphora/hyphora/internal/profile"
	"github.com/hyphora/hyphora/store"
	"github.com/hyphora/hyphora/store/vaultsync"
)

// Server is the HTTP query server.
type Server struct {
	Profile  *profile.Profile
	Store    *store.Store
	Pipeline *retrieval.Pipeline
	Syncer   *vaultsync.Syncer

	echoServer *echo.Echo
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(_ context.Context, profile *profile.Profile, store *store.Store, pipeline *retrieval.Pipeline, syncer *vaultsync.Syncer, exporter *metrics.PrometheusExporter) (*Server, error) {
	e := echo.New()
	e.Debug = true
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		Profile:    profile,
		Store:      store,
		Pipeline:   pipeline,
		Syncer:     syncer,
		echoServer: e,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	v1 := e.Group("/api/v1")
	v1.POST("/context", s.buildContext)
	v1.POST("/seeds", s.selectSeeds)
	v1.POST("/sync", s.syncVault)
	v1.GET("/graph/stats", s.graphStats)

	return s, nil
}

// Start launches the listener in the background. Errors other than graceful
// close are logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "failed to start server", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.ErrorContext(ctx, "failed to close store", "error", err)
	}
	slog.InfoContext(ctx, "hyphora stopped properly")
}
