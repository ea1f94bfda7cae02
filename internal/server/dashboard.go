package server

import (
	_ "embed"
	"net/http"
)

// dashboardHTML is served at / when no static directory is configured.
//
//go:embed dashboard.html
var dashboardHTML []byte

// handleDashboard handles GET / with the built-in status page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(dashboardHTML)
}
