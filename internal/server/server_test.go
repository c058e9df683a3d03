package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func week(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func setupStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedStore(t *testing.T, db *sql.DB) []types.Skill {
	t.Helper()
	skills, err := store.EnsureSkills(db, []string{"Python", "SQL", "Excel"})
	require.NoError(t, err)
	id := map[string]int64{}
	for _, s := range skills {
		id[s.Name] = s.ID
	}

	_, err = store.UpsertWeekly(db, []types.WeeklySkillDemand{
		{WeekStart: week("2024-01-01"), SkillID: id["Python"], Demand: 3, MedianSalary: ptr(900000)},
		{WeekStart: week("2024-01-08"), SkillID: id["Python"], Demand: 5, MedianSalary: ptr(950000)},
		{WeekStart: week("2024-01-08"), SkillID: id["SQL"], Demand: 7},
		{WeekStart: week("2024-01-08"), SkillID: id["Excel"], Demand: 5},
	})
	require.NoError(t, err)

	var fc []types.SkillForecast
	for i := 0; i < 30; i++ {
		fc = append(fc, types.SkillForecast{SkillID: id["Python"], DS: week("2024-01-15").AddDate(0, 0, 7*i), YHat: 5, YHatLower: 4, YHatUpper: 6})
	}
	_, err = store.ReplaceForecasts(db, fc)
	require.NoError(t, err)

	posted := week("2024-01-09")
	raw := []types.JobPosting{{
		ExternalID: "ext-1", Source: "adzuna", Title: "Data Analyst", Company: "Acme",
		PostedAt: &posted, URL: "https://example.com/1", Description: "Python",
		RawPayload: json.RawMessage(`{}`), FetchedAt: posted,
	}}
	_, err = store.UpsertRawJobs(db, raw)
	require.NoError(t, err)
	_, err = store.ReplaceCleanJobs(db, []types.CleanedJob{{JobID: raw[0].ID, Title: "data analyst", Company: "Acme", PostedAt: &posted}})
	require.NoError(t, err)

	return skills
}

func newTestServer(t *testing.T, db *sql.DB, rl *config.RateLimitConfig) *Server {
	t.Helper()
	cfg := config.Default()
	s := NewServer(cfg, ServerConfig{Version: "test", CacheTTL: time.Minute, MaxRequestSize: 1024, RateLimit: rl}, db, nil, nil)
	t.Cleanup(s.cleanup)
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEmptyStoreReturnsEmptyArrays(t *testing.T) {
	h := newTestServer(t, setupStore(t), nil).Handler()

	for _, path := range []string{"/api/skills", "/api/skills/top", "/api/weekly", "/api/weekly?latest=true", "/api/forecasts", "/api/jobs"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, h, path)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
		})
	}
}

func TestDashboardPlaceholderOnEmptyStore(t *testing.T) {
	h := newTestServer(t, setupStore(t), nil).Handler()

	rec := get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "No data yet. Run ingest → process → aggregate → forecast.")
}

func TestTopSkills(t *testing.T) {
	db := setupStore(t)
	seedStore(t, db)
	h := newTestServer(t, db, nil).Handler()

	rec := get(t, h, "/api/skills/top")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]types.SkillDemandRow](t, rec)
	require.Len(t, rows, 3)
	assert.Equal(t, "SQL", rows[0].SkillName)
	// ties broken by name
	assert.Equal(t, "Excel", rows[1].SkillName)
	assert.Equal(t, "Python", rows[2].SkillName)

	rec = get(t, h, "/api/skills/top?week=2024-01-01&limit=1")
	rows = decode[[]types.SkillDemandRow](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "Python", rows[0].SkillName)
	assert.InDelta(t, 900000, *rows[0].MedianSalary, 1e-9)

	rec = get(t, h, "/api/skills/top?week=2023-06-05")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestQueryParamValidation(t *testing.T) {
	h := newTestServer(t, setupStore(t), nil).Handler()

	for _, path := range []string{
		"/api/skills/top?week=last-week",
		"/api/skills/top?limit=0",
		"/api/jobs?limit=abc",
		"/api/weekly?skill_id=x",
		"/api/weekly?latest=maybe",
		"/api/forecasts?skill_id=-1",
	} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, h, path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestWeeklyAndForecasts(t *testing.T) {
	db := setupStore(t)
	skills := seedStore(t, db)
	h := newTestServer(t, db, nil).Handler()

	var pythonID int64
	for _, s := range skills {
		if s.Name == "Python" {
			pythonID = s.ID
		}
	}

	rows := decode[[]types.WeeklySkillDemand](t, get(t, h, "/api/weekly"))
	assert.Len(t, rows, 4)

	rows = decode[[]types.WeeklySkillDemand](t, get(t, h, "/api/weekly?latest=true"))
	assert.Len(t, rows, 3)

	rows = decode[[]types.WeeklySkillDemand](t, get(t, h, "/api/weekly?skill_id="+itoa(pythonID)))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].WeekStart.Before(rows[1].WeekStart))

	fc := decode[[]types.SkillForecast](t, get(t, h, "/api/forecasts?skill_id="+itoa(pythonID)))
	require.Len(t, fc, 30)
	for i := 1; i < len(fc); i++ {
		assert.True(t, fc[i-1].DS.Before(fc[i].DS))
	}

	jobs := decode[[]types.CleanedJob](t, get(t, h, "/api/jobs?limit=5"))
	require.Len(t, jobs, 1)
	assert.Equal(t, "Acme", jobs[0].Company)
}

func TestDashboardRendersSelectedSkill(t *testing.T) {
	db := setupStore(t)
	seedStore(t, db)
	s := newTestServer(t, db, nil)

	data, err := LoadDashboard(s, "Python")
	require.NoError(t, err)
	assert.False(t, data.Empty)
	assert.Equal(t, "Python", data.Selected.Name)
	assert.Len(t, data.History, 2)
	assert.Len(t, data.Forecast, ForecastWeeks)
	assert.Equal(t, 7, data.MaxDemand)

	data, err = LoadDashboard(s, "")
	require.NoError(t, err)
	assert.Equal(t, "Excel", data.Selected.Name, "defaults to the first skill by name")

	rec := get(t, s.Handler(), "/?skill=Python")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Top skills this week (2024-01-08)")
	assert.Contains(t, body, "Demand over time: Python")
	assert.Contains(t, body, "Forecast (next 26 weeks): Python")
	assert.NotContains(t, body, EmptyStoreMessage)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	h := newTestServer(t, setupStore(t), nil).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestHealthAndStats(t *testing.T) {
	db := setupStore(t)
	seedStore(t, db)
	h := newTestServer(t, db, nil).Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	health := decode[map[string]any](t, rec)
	assert.Equal(t, "healthy", health["status"])

	stats := decode[map[string]any](t, get(t, h, "/stats"))
	tables := stats["tables"].(map[string]any)
	assert.EqualValues(t, 3, tables["skills"])
	assert.EqualValues(t, 1, tables["jobs_clean"])
	assert.Equal(t, false, stats["rate_limiting"].(map[string]any)["enabled"])
}

func TestHealthDegradedWithoutStore(t *testing.T) {
	db := setupStore(t)
	s := newTestServer(t, db, nil)
	require.NoError(t, db.Close())

	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestRateLimitPerIP(t *testing.T) {
	s := newTestServer(t, setupStore(t), &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 2})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/api/skills").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/api/skills").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/api/skills").Code)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// probes are exempt
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
}

func TestRequestSizeLimit(t *testing.T) {
	h := newTestServer(t, setupStore(t), nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/skills", strings.NewReader(strings.Repeat("x", 2048)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	assert.Equal(t, "203.0.113.9", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 198.51.100.3")
	assert.Equal(t, "198.51.100.3", getClientIP(req))
}

func TestQueryCache(t *testing.T) {
	c := NewQueryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var loads int32
	load := func() (any, error) {
		atomic.AddInt32(&loads, 1)
		return []int{1}, nil
	}

	_, err := c.Get("k", load)
	require.NoError(t, err)
	_, err = c.Get("k", load)
	require.NoError(t, err)
	assert.EqualValues(t, 1, loads)

	now = now.Add(2 * time.Minute)
	_, err = c.Get("k", load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads)

	c.Invalidate()
	_, err = c.Get("k", load)
	require.NoError(t, err)
	assert.EqualValues(t, 3, loads)
	assert.Equal(t, 1, c.GetStats()["entries"])
}

func TestStoreWriteVisibleAfterInvalidate(t *testing.T) {
	db := setupStore(t)
	s := newTestServer(t, db, nil)
	h := s.Handler()

	assert.Equal(t, "[]", strings.TrimSpace(get(t, h, "/api/skills").Body.String()))
	_, err := store.EnsureSkills(db, []string{"Go"})
	require.NoError(t, err)

	// cached until invalidated
	assert.Equal(t, "[]", strings.TrimSpace(get(t, h, "/api/skills").Body.String()))
	s.Cache.Invalidate()
	assert.Len(t, decode[[]types.Skill](t, get(t, h, "/api/skills")), 1)
}

func TestStoreWatcherInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "jobs.db")
	require.NoError(t, os.WriteFile(dbFile, []byte("v1"), 0600))

	changed := make(chan struct{}, 4)
	w := NewStoreWatcher(dbFile, func() { changed <- struct{}{} }, nil)
	w.debounceDelay = 20 * time.Millisecond
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	assert.True(t, w.IsRunning())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(dbFile+"-wal", []byte("v2"), 0600))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the database change")
	}

	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
}

func TestNewServerWatcherSelection(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, ServerConfig{StorePath: ":memory:", WatchStore: true}, nil, nil, nil)
	assert.Nil(t, s.StoreWatcher)

	s = NewServer(cfg, ServerConfigFrom(cfg, "test"), nil, nil, nil)
	assert.NotNil(t, s.StoreWatcher)
	assert.Equal(t, cfg.Store.Path, s.StorePath)
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func TestWriteJSONEncodingFailure(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.writeJSON(rec, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "failed to encode response", body.Message)
}
