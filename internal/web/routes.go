package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// requestTimeout applies to every route except the event stream.
const requestTimeout = time.Minute

func (s *Server) setupRoutes() {
	galleryHandler := handlers.NewGalleryHandler(s.services.Gallery, s.services.Matcher)
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Ledger, s.services.Gallery, s.services.Clock)
	recognizeHandler := handlers.NewRecognizeHandler(s.services.Recognizer)
	eventsHandler := handlers.NewEventsHandler(s.services.Broadcaster)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.APIToken))

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			// Gallery
			r.Get("/gallery", galleryHandler.List)
			r.Get("/gallery/audit", galleryHandler.Audit)

			// Attendance
			r.Get("/attendance", attendanceHandler.List)
			r.Get("/attendance/summary", attendanceHandler.Summary)
			r.Get("/attendance/{identityID}/today", attendanceHandler.Today)

			// Recognition
			r.Post("/detections", recognizeHandler.Detections)
			r.Post("/recognize", recognizeHandler.Recognize)
		})

		// Mark events (long-lived SSE stream)
		r.Get("/events", eventsHandler.Stream)
	})
}
