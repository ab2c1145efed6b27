// internal/api/routes.go
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes returns the full HTTP surface wrapped in request-ID, metrics and
// access-log middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /activities", h.ListActivities)
	mux.HandleFunc("POST /activities/{activity_name}/signup", h.Signup)
	mux.HandleFunc("DELETE /activities/{activity_name}/unregister", h.Unregister)

	mux.HandleFunc("GET /{$}", h.RedirectRoot)
	if h.staticDir != "" {
		mux.HandleFunc("GET /static/index.html", h.serveIndex)
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.staticDir))))
	}

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return h.withRequestID(h.withObservability(mux))
}

// serveIndex answers the root redirect target directly. http.FileServer
// would 301 any path ending in /index.html to its directory.
func (h *Handler) serveIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(h.staticDir, "index.html"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
