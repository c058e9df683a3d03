package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"skillpulse/internal/types"
)

// UpsertRawJobs inserts postings or replaces the stored copy keyed by (source, external_id).
// The database ids are written back into jobs.
func UpsertRawJobs(db DBExecutor, jobs []types.JobPosting) (int, error) {
	query := `INSERT INTO jobs_raw (external_id, source, company, title, location_raw, posted_at, url,
			description, salary_min, salary_max, salary_text, raw_payload, search_role, search_country, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, external_id) DO UPDATE SET
			company = excluded.company,
			title = excluded.title,
			location_raw = excluded.location_raw,
			posted_at = excluded.posted_at,
			url = excluded.url,
			description = excluded.description,
			salary_min = excluded.salary_min,
			salary_max = excluded.salary_max,
			salary_text = excluded.salary_text,
			raw_payload = excluded.raw_payload,
			search_role = excluded.search_role,
			search_country = excluded.search_country,
			fetched_at = excluded.fetched_at
		RETURNING id`

	for i := range jobs {
		j := &jobs[i]
		if strings.TrimSpace(j.ExternalID) == "" || strings.TrimSpace(j.Source) == "" {
			return i, fmt.Errorf("job %d: source and external_id must be non-empty", i)
		}
		fetchedAt := j.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now()
		}
		var payload any
		if len(j.RawPayload) > 0 {
			payload = string(j.RawPayload)
		}
		err := db.QueryRow(query,
			j.ExternalID, j.Source, j.Company, j.Title, j.LocationRaw, nullableTime(j.PostedAt), j.URL,
			j.Description, nullableFloat(j.SalaryMin), nullableFloat(j.SalaryMax), nullableString(j.SalaryText),
			payload, nullableString(j.SearchRole), nullableString(j.SearchCountry),
			fetchedAt.UTC().Format(timeLayout),
		).Scan(&j.ID)
		if err != nil {
			return i, fmt.Errorf("upsert raw job %s/%s: %w", j.Source, j.ExternalID, err)
		}
	}
	return len(jobs), nil
}

// ListRawJobs returns every raw posting ordered by id.
func ListRawJobs(db DBExecutor) ([]types.JobPosting, error) {
	rows, err := db.Query(`SELECT id, external_id, source, company, title, location_raw, posted_at, url,
		description, salary_min, salary_max, salary_text, raw_payload, search_role, search_country, fetched_at
		FROM jobs_raw ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.JobPosting
	for rows.Next() {
		var j types.JobPosting
		var company, title, location, url, description sql.NullString
		var postedAt, salaryText, payload, role, country sql.NullString
		var salaryMin, salaryMax sql.NullFloat64
		var fetchedAt string
		if err := rows.Scan(&j.ID, &j.ExternalID, &j.Source, &company, &title, &location, &postedAt, &url,
			&description, &salaryMin, &salaryMax, &salaryText, &payload, &role, &country, &fetchedAt); err != nil {
			return nil, err
		}
		j.Company = company.String
		j.Title = title.String
		j.LocationRaw = location.String
		j.URL = url.String
		j.Description = description.String
		j.SalaryMin = scanFloat(salaryMin)
		j.SalaryMax = scanFloat(salaryMax)
		j.SalaryText = salaryText.String
		j.SearchRole = role.String
		j.SearchCountry = country.String
		if payload.Valid {
			j.RawPayload = []byte(payload.String)
		}
		if j.PostedAt, err = scanTime(postedAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, fetchedAt); err == nil {
			j.FetchedAt = t
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// ReplaceCleanJobs swaps the entire jobs_clean table for jobs.
func ReplaceCleanJobs(db DBExecutor, jobs []types.CleanedJob) (int, error) {
	if _, err := db.Exec(`DELETE FROM jobs_clean`); err != nil {
		return 0, fmt.Errorf("clear jobs_clean: %w", err)
	}
	for i, j := range jobs {
		if j.SalaryMin != nil && j.SalaryMax != nil && *j.SalaryMin > *j.SalaryMax {
			return i, fmt.Errorf("job %d: salary_min %.2f exceeds salary_max %.2f", j.JobID, *j.SalaryMin, *j.SalaryMax)
		}
		_, err := db.Exec(`INSERT INTO jobs_clean (job_id, title_norm, company, city, state, country, posted_at,
				salary_min, salary_max, salary_period, currency)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.JobID, j.Title, j.Company, j.City, j.State, j.Country, nullableTime(j.PostedAt),
			nullableFloat(j.SalaryMin), nullableFloat(j.SalaryMax), nullableString(j.SalaryPeriod), nullableString(j.Currency))
		if err != nil {
			return i, fmt.Errorf("insert clean job %d: %w", j.JobID, err)
		}
	}
	return len(jobs), nil
}

const cleanJobColumns = `c.job_id, c.title_norm, c.company, c.city, c.state, c.country, c.posted_at,
	c.salary_min, c.salary_max, c.salary_period, c.currency, r.description`

// ListCleanJobs returns cleaned jobs, with the raw description attached for tagging.
func ListCleanJobs(db DBExecutor) ([]types.CleanedJob, error) {
	rows, err := db.Query(`SELECT ` + cleanJobColumns + `
		FROM jobs_clean c JOIN jobs_raw r ON r.id = c.job_id
		ORDER BY c.job_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCleanJobs(rows)
}

// RecentJobs returns the newest cleaned jobs first; undated jobs sort last.
func RecentJobs(db DBExecutor, limit int) ([]types.CleanedJob, error) {
	if limit <= 0 {
		return []types.CleanedJob{}, nil
	}
	rows, err := db.Query(`SELECT `+cleanJobColumns+`
		FROM jobs_clean c JOIN jobs_raw r ON r.id = c.job_id
		ORDER BY c.posted_at IS NULL, c.posted_at DESC, c.job_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCleanJobs(rows)
}

func scanCleanJobs(rows *sql.Rows) ([]types.CleanedJob, error) {
	out := []types.CleanedJob{}
	for rows.Next() {
		var j types.CleanedJob
		var title, company, city, state, country, postedAt, period, currency, description sql.NullString
		var salaryMin, salaryMax sql.NullFloat64
		if err := rows.Scan(&j.JobID, &title, &company, &city, &state, &country, &postedAt,
			&salaryMin, &salaryMax, &period, &currency, &description); err != nil {
			return nil, err
		}
		j.Title = title.String
		j.Company = company.String
		j.City = city.String
		j.State = state.String
		j.Country = country.String
		j.SalaryMin = scanFloat(salaryMin)
		j.SalaryMax = scanFloat(salaryMax)
		j.SalaryPeriod = period.String
		j.Currency = currency.String
		j.Description = description.String
		var err error
		if j.PostedAt, err = scanTime(postedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
