// Package ingest loads JSONL landing files into the raw job store.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/types"

	"github.com/google/uuid"
)

// DefaultSource is used when a record does not name its source
const DefaultSource = "adzuna"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.v = nil
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if strings.TrimSpace(s) == "" {
		f.v = nil
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("salary %q is not a number", s)
	}
	f.v = &v
	return nil
}

// record is one landing-file line. Both the fetcher's own JobPosting shape and the
// flatter sample shape (location, created, redirect_url) are accepted.
type record struct {
	ID            flexString      `json:"id"`
	ExternalID    flexString      `json:"external_id"`
	Source        string          `json:"source"`
	Company       string          `json:"company"`
	Title         string          `json:"title"`
	LocationRaw   string          `json:"location_raw"`
	Location      string          `json:"location"`
	PostedAt      string          `json:"posted_at"`
	Created       string          `json:"created"`
	URL           string          `json:"url"`
	RedirectURL   string          `json:"redirect_url"`
	Description   string          `json:"description"`
	SalaryMin     flexFloat       `json:"salary_min"`
	SalaryMax     flexFloat       `json:"salary_max"`
	SalaryText    string          `json:"salary_text"`
	Salary        string          `json:"salary"`
	SearchRole    string          `json:"search_role"`
	SearchCountry string          `json:"search_country"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	FetchedAt     string          `json:"fetched_at"`
}

// DecodeLine converts one JSONL line into a JobPosting. The returned problems are
// malformed-record errors for fields that were nulled; err is set when the line
// cannot produce a posting at all.
func DecodeLine(line []byte, defaultSource string) (types.JobPosting, []error, error) {
	var r record
	if err := json.Unmarshal(line, &r); err != nil {
		return types.JobPosting{}, nil, errors.NewMalformedRecordError(errors.ErrCodeBadRecord, "invalid JSON line", err)
	}

	job := types.JobPosting{
		Source:        firstNonEmpty(r.Source, defaultSource),
		Company:       strings.TrimSpace(r.Company),
		Title:         strings.TrimSpace(r.Title),
		LocationRaw:   strings.TrimSpace(firstNonEmpty(r.LocationRaw, r.Location)),
		URL:           strings.TrimSpace(firstNonEmpty(r.URL, r.RedirectURL)),
		Description:   r.Description,
		SalaryMin:     r.SalaryMin.v,
		SalaryMax:     r.SalaryMax.v,
		SalaryText:    strings.TrimSpace(firstNonEmpty(r.SalaryText, r.Salary)),
		SearchRole:    r.SearchRole,
		SearchCountry: strings.ToLower(r.SearchCountry),
	}

	job.ExternalID = strings.TrimSpace(firstNonEmpty(string(r.ExternalID), string(r.ID)))
	if job.ExternalID == "" {
		if job.URL == "" {
			return types.JobPosting{}, nil, errors.NewMalformedRecordError(errors.ErrCodeBadRecord,
				"record has neither an id nor a url", nil)
		}
		job.ExternalID = ExternalIDForURL(job.URL)
	}

	var problems []error
	if raw := strings.TrimSpace(firstNonEmpty(r.PostedAt, r.Created)); raw != "" {
		t, err := ParseDate(raw)
		if err != nil {
			problems = append(problems, errors.NewMalformedRecordError(errors.ErrCodeBadDate, "unparseable posted_at nulled", err).
				WithContext("external_id", job.ExternalID).
				WithContext("value", raw))
		} else {
			job.PostedAt = &t
		}
	}

	if t, err := ParseDate(r.FetchedAt); err == nil {
		job.FetchedAt = t
	}

	if len(r.RawPayload) > 0 && !bytes.Equal(bytes.TrimSpace(r.RawPayload), []byte("null")) {
		job.RawPayload = r.RawPayload
	} else {
		job.RawPayload = json.RawMessage(bytes.Clone(line))
	}
	return job, problems, nil
}

// ExternalIDForURL derives a stable id from a posting URL
func ExternalIDForURL(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// ParseDate accepts RFC3339 and a few common layouts. Dates are returned in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
