package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/classeye/classeye/internal/web/handlers"
	"github.com/classeye/classeye/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	videoHandler := handlers.NewVideoHandler(s.deps.Sessions, s.log)
	eventsHandler := handlers.NewEventsHandler(s.deps.Broadcaster)
	sessionsHandler := handlers.NewSessionsHandler(s.deps.Sessions)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance, s.deps.Students,
		s.deps.Sessions, s.deps.Broadcaster, s.log)
	rosterHandler := handlers.NewRosterHandler(s.deps.Classes, s.deps.Students, s.log)
	statsHandler := handlers.NewStatsHandler(s.deps.Attendance, s.deps.Students, s.log)
	insightsHandler := handlers.NewInsightsHandler(s.deps.Insights, s.deps.Attendance,
		s.deps.Students, s.deps.Classes, s.log)

	// Health check
	s.router.Get("/healthz", handlers.HealthCheck)

	// The annotated video stream runs outside any request timeout.
	s.router.Get("/video/{classID}", videoHandler.Stream)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Live event feed, exempt from the request timeout like the
		// video stream.
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(60 * time.Second))

			// Sessions
			r.Get("/sessions", sessionsHandler.List)
			r.Get("/sessions/{classID}", sessionsHandler.Get)
			r.Post("/sessions/{classID}/start", sessionsHandler.Start)
			r.Post("/sessions/{classID}/stop", sessionsHandler.Stop)
			r.Post("/sessions/{classID}/reload", sessionsHandler.Reload)

			// Classes and rosters
			r.Get("/classes", rosterHandler.Classes)
			r.Get("/roster/{classID}", rosterHandler.Roster)

			// Attendance register
			r.Get("/attendance/{classID}", attendanceHandler.List)
			r.Post("/attendance/{classID}/mark", attendanceHandler.Mark)
			r.Post("/attendance/{classID}/absent", attendanceHandler.Absent)
			r.Delete("/attendance/{classID}/{studentID}", attendanceHandler.Unmark)

			// Aggregates and exports
			r.Get("/stats/{classID}", statsHandler.Get)
			r.Get("/report/{classID}", statsHandler.Report)

			// Natural-language summary
			r.Get("/insights/{classID}", insightsHandler.Get)
		})
	})

	// Dashboard
	s.router.Get("/", s.serveDashboard)
}

// serveDashboard serves the embedded single-page dashboard.
func (s *Server) serveDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(static.IndexHTML)
}
