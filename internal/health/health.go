package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type SessionCounter interface {
	Len() int
}

type Response struct {
	Status        string  `json:"status"`
	Sessions      int     `json:"sessions"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Server exposes GET /health.
type Server struct {
	echo     *echo.Echo
	addr     string
	sessions SessionCounter
	start    time.Time
	now      func() time.Time
	log      *slog.Logger
}

func New(addr string, sessions SessionCounter, start time.Time, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	s := &Server{
		echo:     e,
		addr:     addr,
		sessions: sessions,
		start:    start,
		now:      time.Now,
		log:      log,
	}

	e.GET("/health", s.HandleHealth)

	return s
}

func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Status:        "ok",
		Sessions:      s.sessions.Len(),
		UptimeSeconds: s.now().Sub(s.start).Seconds(),
	})
}

// Start blocks until the server stops. A graceful shutdown is not an error.
func (s *Server) Start(ctx context.Context) error {
	s.log.InfoContext(ctx, "Health server is started",
		"addr", s.addr)

	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start health server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown health server: %w", err)
	}

	return nil
}
