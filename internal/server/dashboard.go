package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"time"

	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

// ForecastWeeks is how many forecast periods the dashboard shows
const ForecastWeeks = 26

// EmptyStoreMessage is shown until the pipeline has produced skills
const EmptyStoreMessage = "No data yet. Run ingest → process → aggregate → forecast."

var dashboardTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"date":   func(t time.Time) string { return t.Format(dateLayout) },
	"money":  formatMoney,
	"number": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	"bar":    barWidth,
}).ParseFS(templateFS, "templates/dashboard.html"))

// DashboardData is everything the dashboard page renders
type DashboardData struct {
	Title       string
	Empty       bool
	Message     string
	Skills      []types.Skill
	Selected    *types.Skill
	LatestWeek  *time.Time
	TopSkills   []types.SkillDemandRow
	MaxDemand   int
	History     []types.WeeklySkillDemand
	Forecast    []types.SkillForecast
	GeneratedAt time.Time
}

// LoadDashboard reads the dashboard view for the skill named selected, or the first skill by name
func LoadDashboard(s *Server, selected string) (DashboardData, error) {
	data := DashboardData{Title: "Job Market Analytics", GeneratedAt: time.Now().UTC()}

	v, err := s.Cache.Get("skills", func() (any, error) { return store.ListSkills(s.DB) })
	if err != nil {
		return data, err
	}
	skills := append([]types.Skill(nil), v.([]types.Skill)...)
	if len(skills) == 0 {
		data.Empty = true
		data.Message = EmptyStoreMessage
		return data, nil
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	data.Skills = skills

	data.Selected = &skills[0]
	for i := range skills {
		if skills[i].Name == selected {
			data.Selected = &skills[i]
			break
		}
	}

	v, err = s.Cache.Get("dashboard:top", func() (any, error) {
		latest, ok, err := store.LatestWeek(s.DB)
		if err != nil || !ok {
			return topView{}, err
		}
		rows, err := store.TopSkills(s.DB, latest, defaultListLimit)
		return topView{Week: &latest, Rows: rows}, err
	})
	if err != nil {
		return data, err
	}
	top := v.(topView)
	data.LatestWeek = top.Week
	data.TopSkills = top.Rows
	for _, r := range top.Rows {
		data.MaxDemand = max(data.MaxDemand, r.Demand)
	}

	sid := data.Selected.ID
	v, err = s.Cache.Get("weekly:"+strconv.FormatInt(sid, 10)+":false", func() (any, error) {
		return store.ListWeekly(s.DB, store.WeeklyFilter{SkillID: &sid})
	})
	if err != nil {
		return data, err
	}
	data.History = v.([]types.WeeklySkillDemand)

	v, err = s.Cache.Get("forecasts:"+strconv.FormatInt(sid, 10), func() (any, error) {
		return store.ListForecasts(s.DB, &sid)
	})
	if err != nil {
		return data, err
	}
	fc := v.([]types.SkillForecast)
	if len(fc) > ForecastWeeks {
		fc = fc[:ForecastWeeks]
	}
	data.Forecast = fc

	return data, nil
}

type topView struct {
	Week *time.Time
	Rows []types.SkillDemandRow
}

// dashboardHandler renders the HTML dashboard
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	data, err := LoadDashboard(s, r.URL.Query().Get("skill"))
	if err != nil {
		s.logError(err, "Failed to load dashboard", r)
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		s.logError(err, "Failed to render dashboard", r)
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func formatMoney(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}

// barWidth scales n against top to a CSS percentage
func barWidth(n, top int) int {
	if top <= 0 {
		return 0
	}
	return n * 100 / top
}
