package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	fmt.Printf("Dashboard: http://%s:%s/\n", displayHost(s.Host), s.Port)
	s.displayEndpoints()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
	if s.StoreWatcher != nil {
		fmt.Printf("Store watcher: ENABLED (%s)\n", s.StorePath)
	} else {
		fmt.Println("Store watcher: DISABLED")
	}
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /                   - Dashboard")
	fmt.Println("  GET  /health             - Health check")
	fmt.Println("  GET  /stats              - Store and server statistics")
	fmt.Println("  GET  /api/skills         - Skill vocabulary")
	fmt.Println("  GET  /api/skills/top     - Top skills of a week (?week=YYYY-MM-DD&limit=20)")
	fmt.Println("  GET  /api/weekly         - Weekly demand (?skill_id=&latest=true)")
	fmt.Println("  GET  /api/forecasts      - Forecasts (?skill_id=)")
	fmt.Println("  GET  /api/jobs           - Recent jobs (?limit=20)")
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimiter != nil {
		fmt.Printf("Rate limiting: ENABLED per IP (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		fmt.Println("Rate limiting: DISABLED")
	}
}
