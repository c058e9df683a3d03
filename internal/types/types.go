package types

import (
	"encoding/json"
	"time"
)

// OverallSkillID keys the forecast series that ignores skills.
const OverallSkillID int64 = 0

// OverallSkillName is the display name of the overall series
const OverallSkillName = "overall"

// JobPosting represents a job posting as fetched from the source
type JobPosting struct {
	ID            int64           `json:"id,omitempty"`
	ExternalID    string          `json:"external_id"`
	Source        string          `json:"source"`
	Company       string          `json:"company"`
	Title         string          `json:"title"`
	LocationRaw   string          `json:"location_raw"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	URL           string          `json:"url"`
	Description   string          `json:"description"`
	SalaryMin     *float64        `json:"salary_min,omitempty"`
	SalaryMax     *float64        `json:"salary_max,omitempty"`
	SalaryText    string          `json:"salary_text,omitempty"`
	SearchRole    string          `json:"search_role,omitempty"`
	SearchCountry string          `json:"search_country,omitempty"`
	RawPayload    json.RawMessage `json:"raw_payload,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
}

// CleanedJob is derived 1:1 from a JobPosting
type CleanedJob struct {
	JobID        int64      `json:"job_id"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	Country      string     `json:"country"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	SalaryMin    *float64   `json:"salary_min,omitempty"` // annualized
	SalaryMax    *float64   `json:"salary_max,omitempty"` // annualized
	SalaryPeriod string     `json:"salary_period,omitempty"`
	Currency     string     `json:"currency,omitempty"`
	Description  string     `json:"-"`
}

// RepresentativeSalary returns salary_min if present, else salary_max, else nil.
func (j CleanedJob) RepresentativeSalary() *float64 {
	if j.SalaryMin != nil {
		return j.SalaryMin
	}
	return j.SalaryMax
}

// Skill is an entry of the fixed skill vocabulary
type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SkillTag links a job to a skill
type SkillTag struct {
	JobID   int64 `json:"job_id"`
	SkillID int64 `json:"skill_id"`
}

// WeeklySkillDemand is one aggregated (week, skill) bucket
type WeeklySkillDemand struct {
	WeekStart    time.Time `json:"week_start"`
	SkillID      int64     `json:"skill_id"`
	SkillName    string    `json:"skill_name,omitempty"`
	Demand       int       `json:"demand"`
	MedianSalary *float64  `json:"median_salary"`
	P25Salary    *float64  `json:"p25_salary"`
	P75Salary    *float64  `json:"p75_salary"`
}

// SkillForecast is one forecast period for a skill (or the overall series)
type SkillForecast struct {
	SkillID   int64     `json:"skill_id"`
	SkillName string    `json:"skill_name,omitempty"`
	DS        time.Time `json:"ds"`
	YHat      float64   `json:"yhat"`
	YHatLower float64   `json:"yhat_lower"`
	YHatUpper float64   `json:"yhat_upper"`
}

// Point is one observation of a demand time series
type Point struct {
	Period time.Time `json:"period"`
	Value  float64   `json:"value"`
}

// CountEntry is a labelled count used by reports and the dashboard
type CountEntry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// SkillDemandRow is a row of the "top skills" view
type SkillDemandRow struct {
	SkillID      int64    `json:"skill_id"`
	SkillName    string   `json:"skill_name"`
	Demand       int      `json:"demand"`
	MedianSalary *float64 `json:"median_salary"`
}
