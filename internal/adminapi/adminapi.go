// Package adminapi exposes a small operator-facing HTTP surface (health and
// live stats) on a listener separate from the session TCP port, grounded in
// the teacher's server/api.go REST surface and carried over to the same
// labstack/echo/v4 stack.
package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"gridvoice/internal/level"
	"gridvoice/internal/world"
)

// Server is the admin/health HTTP surface.
type Server struct {
	echo      *echo.Echo
	world     *world.World
	levels    *level.Store
	startedAt time.Time
}

// New builds the admin API bound to w and levels; started is the process
// start time used to compute uptime for /stats.
func New(w *world.World, levels *level.Store, started time.Time) *Server {
	s := &Server{
		echo:      echo.New(),
		world:     w,
		levels:    levels,
		startedAt: started,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/stats", s.handleStats)
	return s
}

// Serve blocks, serving the admin API on addr until the listener closes.
func (s *Server) Serve(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the admin API.
func (s *Server) Shutdown() error {
	return s.echo.Close()
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	PlayerCount int      `json:"player_count"`
	LevelsLoaded []string `json:"levels_loaded"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

func (s *Server) handleStats(c echo.Context) error {
	snapshot := s.world.Snapshot()
	return c.JSON(http.StatusOK, statsResponse{
		PlayerCount:   len(snapshot.Players),
		LevelsLoaded:  s.levels.Names(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}
