package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	dateLayout       = "2006-01-02"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig == nil || s.AppConfig.Observability.HealthCheck.Timeout <= 0 {
		return 5 * time.Second
	}
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler reports whether the store answers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "skillpulse",
		"version": s.Version,
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
	defer cancel()

	status := http.StatusOK
	if err := s.pingStore(ctx); err != nil {
		response["status"] = "degraded"
		response["store"] = map[string]any{"available": false, "error": err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		response["store"] = map[string]any{"available": true}
	}

	s.writeJSON(w, status, response)
}

func (s *Server) pingStore(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("store not configured")
	}
	return s.DB.PingContext(ctx)
}

// statsHandler reports table sizes along with limiter and cache statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := store.Counts(s.DB)
	if err != nil {
		s.logError(err, "Failed to count tables", r)
		s.writeErrorResponse(w, "Failed to read store", err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"service": "skillpulse",
		"version": s.Version,
		"tables":  counts,
		"cache":   s.Cache.GetStats(),
	}

	if s.RateLimiter != nil {
		stats := s.RateLimiter.GetStats()
		stats["enabled"] = true
		response["rate_limiting"] = stats
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// skillsHandler lists the skill vocabulary
func (s *Server) skillsHandler(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "skills", func() (any, error) {
		return store.ListSkills(s.DB)
	})
}

// topSkillsHandler returns the highest-demand skills of one week, the latest by default
func (s *Server) topSkillsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		s.writeErrorResponse(w, "Invalid limit", err.Error(), http.StatusBadRequest)
		return
	}

	var week *time.Time
	if v := r.URL.Query().Get("week"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			s.writeErrorResponse(w, "Invalid week", "week must be a YYYY-MM-DD date", http.StatusBadRequest)
			return
		}
		week = &t
	}

	key := fmt.Sprintf("top:%v:%d", r.URL.Query().Get("week"), limit)
	s.serveQuery(w, r, key, func() (any, error) {
		if week == nil {
			latest, ok, err := store.LatestWeek(s.DB)
			if err != nil {
				return nil, err
			}
			if !ok {
				return []types.SkillDemandRow{}, nil
			}
			week = &latest
		}
		return store.TopSkills(s.DB, *week, limit)
	})
}

// weeklyHandler returns weekly demand rows, optionally for one skill or the latest week only
func (s *Server) weeklyHandler(w http.ResponseWriter, r *http.Request) {
	skillID, err := parseSkillID(r)
	if err != nil {
		s.writeErrorResponse(w, "Invalid skill_id", err.Error(), http.StatusBadRequest)
		return
	}
	latest := false
	if v := r.URL.Query().Get("latest"); v != "" {
		if latest, err = strconv.ParseBool(v); err != nil {
			s.writeErrorResponse(w, "Invalid latest", "latest must be true or false", http.StatusBadRequest)
			return
		}
	}

	key := fmt.Sprintf("weekly:%s:%t", r.URL.Query().Get("skill_id"), latest)
	s.serveQuery(w, r, key, func() (any, error) {
		return store.ListWeekly(s.DB, store.WeeklyFilter{SkillID: skillID, LatestOnly: latest})
	})
}

// forecastsHandler returns forecast rows ordered by skill then ds
func (s *Server) forecastsHandler(w http.ResponseWriter, r *http.Request) {
	skillID, err := parseSkillID(r)
	if err != nil {
		s.writeErrorResponse(w, "Invalid skill_id", err.Error(), http.StatusBadRequest)
		return
	}

	s.serveQuery(w, r, "forecasts:"+r.URL.Query().Get("skill_id"), func() (any, error) {
		return store.ListForecasts(s.DB, skillID)
	})
}

// jobsHandler returns the most recent cleaned jobs
func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultListLimit)
	if err != nil {
		s.writeErrorResponse(w, "Invalid limit", err.Error(), http.StatusBadRequest)
		return
	}

	s.serveQuery(w, r, fmt.Sprintf("jobs:%d", limit), func() (any, error) {
		return store.RecentJobs(s.DB, limit)
	})
}

// serveQuery answers from the query cache, loading on a miss
func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, key string, load func() (any, error)) {
	v, err := s.Cache.Get(key, load)
	if err != nil {
		s.logError(err, "Query failed", r)
		s.writeErrorResponse(w, "Query failed", err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) logError(err error, msg string, r *http.Request) {
	if s.Logger != nil {
		s.Logger.LogError(err, msg, "endpoint", r.URL.Path)
	}
}

func parseLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func parseSkillID(r *http.Request) (*int64, error) {
	v := r.URL.Query().Get("skill_id")
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return nil, fmt.Errorf("skill_id must be a non-negative integer")
	}
	return &id, nil
}

// writeJSON writes v as JSON. A value that cannot be encoded is answered with a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		if s.Logger != nil {
			s.Logger.LogError(err, "Failed to encode response", "type", fmt.Sprintf("%T", v))
		}
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: "Internal error", Message: "failed to encode response"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeErrorResponse writes a standardized error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
