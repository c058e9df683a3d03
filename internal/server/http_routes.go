package server

import (
	"net/http"

	"skillpulse/internal/observability"
)

// route pairs a mux pattern with the handler serving it
type route struct {
	pattern string
	name    string
	handler http.HandlerFunc
}

func (s *Server) routes() []route {
	return []route{
		{"GET /health", "http.health", s.healthHandler},
		{"GET /stats", "http.stats", s.statsHandler},
		{"GET /api/skills", "api.skills", s.skillsHandler},
		{"GET /api/skills/top", "api.skills.top", s.topSkillsHandler},
		{"GET /api/weekly", "api.weekly", s.weeklyHandler},
		{"GET /api/forecasts", "api.forecasts", s.forecastsHandler},
		{"GET /api/jobs", "api.jobs", s.jobsHandler},
		{"GET /{$}", "dashboard", s.dashboardHandler},
	}
}

// setupRoutes configures all HTTP routes and middleware.
// Health and stats are not rate limited.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	rateLimitHandler := s.rateLimitMiddleware()
	requestLimitHandler := s.requestSizeLimitMiddleware()

	for _, rt := range s.routes() {
		h := requestLimitHandler(rt.handler)
		if rt.pattern != "GET /health" && rt.pattern != "GET /stats" {
			h = rateLimitHandler(h)
		}
		mux.Handle(rt.pattern, observability.ObservabilityMiddleware(s.Obs, rt.name)(h))
	}

	return mux
}

// Handler returns the complete handler chain, including otelhttp instrumentation
func (s *Server) Handler() http.Handler {
	return s.Obs.HTTPMiddleware()(s.setupRoutes())
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				if r.ContentLength > s.MaxRequestSize {
					s.writeErrorResponse(w, "Request too large", "request body exceeds the configured limit", http.StatusRequestEntityTooLarge)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}

			next(w, r)
		}
	}
}
