// Package server exposes a small operational HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/gemrelay/gemrelay/internal/session"
)

// Server serves liveness and status endpoints.
type Server struct {
	echo    *echo.Echo
	addr    string
	started time.Time
}

type statusResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	UptimeS  int64  `json:"uptime_seconds"`
}

// New builds the HTTP server over the given session store.
func New(addr string, sessions *session.Store) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		addr:    addr,
		started: time.Now(),
	}

	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{
			Status:   "ok",
			Sessions: sessions.Count(),
			UptimeS:  int64(time.Since(s.started).Seconds()),
		})
	})

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
