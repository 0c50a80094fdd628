package web

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/web/handlers"
	"github.com/kozaktomas/facegate/internal/web/middleware"
	"github.com/kozaktomas/facegate/internal/web/static"
)

func (s *Server) setupRoutes(matcher *recognition.Matcher, aggregator *recognition.Aggregator, embedder *embedding.Client) {
	// Create handlers
	statsHandler := handlers.NewStatsHandler(s.config)
	studentsHandler := handlers.NewStudentsHandler(s.config, aggregator, embedder, statsHandler)
	verifyHandler := handlers.NewVerifyHandler(s.config, matcher, embedder)
	attendanceHandler := handlers.NewAttendanceHandler(s.config)
	digestHandler := handlers.NewDigestHandler(s.config)
	configHandler := handlers.NewConfigHandler(s.config)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Students
		r.Post("/students", studentsHandler.Create)
		r.Get("/students", studentsHandler.List)
		r.Get("/students/{studentID}", studentsHandler.Get)
		r.Put("/students/{studentID}", studentsHandler.Update)
		r.Delete("/students/{studentID}", studentsHandler.Delete)
		r.Post("/students/{studentID}/photos", studentsHandler.ReplacePhotos)
		r.Get("/students/{studentID}/similar", studentsHandler.Similar)

		// Check-in
		r.Post("/verify", verifyHandler.Verify)

		// Attendance ledger
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/history/{studentID}", attendanceHandler.History)
		r.Get("/attendance/{logID}/snapshot", attendanceHandler.Snapshot)
		r.Get("/attendance/export", attendanceHandler.Export)
		r.Post("/attendance/digest", digestHandler.Generate)

		// Stats
		r.Get("/stats", statsHandler.Get)

		// Config
		r.Get("/config", configHandler.Get)
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	// Check if we have embedded frontend assets
	if static.HasDist() {
		// Try to serve the requested file
		fs := static.GetFileSystem()
		path := r.URL.Path
		if path == "/" {
			path = "/index.html"
		}

		// Try to open the file
		f, err := fs.Open(path)
		if err == nil {
			defer f.Close()

			// Get file info for content type detection
			stat, err := f.Stat()
			if err == nil && !stat.IsDir() {
				// Set content type based on extension
				contentType := "application/octet-stream"
				switch {
				case strings.HasSuffix(path, ".html"):
					contentType = "text/html; charset=utf-8"
				case strings.HasSuffix(path, ".css"):
					contentType = "text/css; charset=utf-8"
				case strings.HasSuffix(path, ".js"):
					contentType = "application/javascript; charset=utf-8"
				case strings.HasSuffix(path, ".json"):
					contentType = "application/json"
				case strings.HasSuffix(path, ".svg"):
					contentType = "image/svg+xml"
				case strings.HasSuffix(path, ".png"):
					contentType = "image/png"
				case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
					contentType = "image/jpeg"
				case strings.HasSuffix(path, ".ico"):
					contentType = "image/x-icon"
				case strings.HasSuffix(path, ".woff2"):
					contentType = "font/woff2"
				case strings.HasSuffix(path, ".woff"):
					contentType = "font/woff"
				}

				w.Header().Set("Content-Type", contentType)

				// Add cache headers for static assets
				if strings.HasPrefix(path, "/assets/") {
					w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				}

				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		// For SPA routing, serve index.html for non-asset paths
		if !strings.HasPrefix(path, "/assets/") {
			indexFile, err := fs.Open("/index.html")
			if err == nil {
				defer indexFile.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, indexFile)
				return
			}
		}
	}

	// Fallback: return placeholder page if no frontend is built
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Facegate</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Facegate</h1>
        <p>The dashboard frontend is not built yet.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
