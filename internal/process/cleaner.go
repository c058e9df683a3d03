package process

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// Options control salary normalization
type Options struct {
	ReportingCurrency string
	Convert           bool
	Rates             map[string]float64 // units of reporting currency per unit of the key currency
}

// Clean derives a CleanedJob from a raw posting. Salaries are annualized and, when
// Convert is set, converted to the reporting currency. Values that cannot be trusted
// are nulled and reported as malformed-record errors; the job itself is always kept.
func Clean(job types.JobPosting, opts Options) (types.CleanedJob, []error) {
	loc := SplitLocation(job.LocationRaw)
	if loc.Country == "" && job.SearchCountry != "" {
		loc.Country = strings.ToUpper(job.SearchCountry)
	}

	out := types.CleanedJob{
		JobID:       job.ID,
		Title:       NormalizeTitle(job.Title),
		Company:     strings.TrimSpace(job.Company),
		City:        loc.City,
		State:       loc.State,
		Country:     loc.Country,
		PostedAt:    job.PostedAt,
		Description: job.Description,
	}

	var problems []error
	malformed := func(format string, args ...any) {
		problems = append(problems, errors.NewMalformedRecordError(errors.ErrCodeBadSalary, fmt.Sprintf(format, args...), nil).
			WithContext("job_id", job.ID).
			WithContext("external_id", job.ExternalID))
	}

	period := PeriodYear
	currency := ""
	lo, hi := job.SalaryMin, job.SalaryMax
	if text := strings.TrimSpace(job.SalaryText); text != "" {
		period = DetectPeriod(text)
		if parsed, ok := ParseSalaryText(text); ok {
			currency = parsed.Currency
			if lo == nil && hi == nil {
				lo, hi = parsed.Min, parsed.Max
			}
		}
	}
	if lo == nil && hi == nil {
		return out, nil
	}

	if currency == "" {
		currency = CurrencyForCountry(job.SearchCountry)
	}
	if currency == "" {
		currency = strings.ToUpper(opts.ReportingCurrency)
	}

	lo = usable(lo, "salary_min", malformed)
	hi = usable(hi, "salary_max", malformed)
	if lo != nil && hi != nil && *lo > *hi {
		lo, hi = hi, lo
	}

	lo = annualize(lo, period, malformed)
	hi = annualize(hi, period, malformed)

	if opts.Convert && currency != "" && !strings.EqualFold(currency, opts.ReportingCurrency) {
		rate, ok := opts.Rates[strings.ToUpper(currency)]
		if !ok || rate <= 0 {
			if lo != nil || hi != nil {
				malformed("no conversion rate for currency %s", currency)
			}
			lo, hi = nil, nil
		} else {
			lo = scale(lo, rate)
			hi = scale(hi, rate)
		}
		currency = strings.ToUpper(opts.ReportingCurrency)
	}

	if lo == nil && hi == nil {
		return out, problems
	}
	out.SalaryMin, out.SalaryMax = lo, hi
	out.SalaryPeriod = period
	out.Currency = currency
	return out, problems
}

func usable(v *float64, field string, malformed func(string, ...any)) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		malformed("%s is not a positive amount: %v", field, *v)
		return nil
	}
	return v
}

func annualize(v *float64, period string, malformed func(string, ...any)) *float64 {
	if v == nil {
		return nil
	}
	a, err := Annualize(*v, period)
	if err != nil {
		malformed("%v", err)
		return nil
	}
	return &a
}

func scale(v *float64, rate float64) *float64 {
	if v == nil {
		return nil
	}
	s := *v * rate
	return &s
}

// Result summarizes one processing run
type Result struct {
	Rows      int `json:"rows"`
	WithPay   int `json:"with_salary"`
	Malformed int `json:"malformed"`
}

// Processor rebuilds jobs_clean from jobs_raw
type Processor struct {
	db     *sql.DB
	opts   Options
	logger *errors.Logger
}

// NewProcessor creates a Processor
func NewProcessor(db *sql.DB, opts Options, logger *errors.Logger) *Processor {
	return &Processor{db: db, opts: opts, logger: logger}
}

// Run cleans every raw posting and replaces jobs_clean in one transaction.
// Malformed values are logged and counted, never fatal.
func (p *Processor) Run(ctx context.Context) (Result, error) {
	raw, err := store.ListRawJobs(p.db)
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read raw jobs", err)
	}
	if len(raw) == 0 {
		p.logInfo("No raw jobs to process")
		return Result{}, errors.NewEmptyInputError("no raw jobs to process")
	}

	result := Result{}
	cleaned := make([]types.CleanedJob, 0, len(raw))
	for _, job := range raw {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		c, problems := Clean(job, p.opts)
		if len(problems) > 0 {
			result.Malformed++
			if p.logger != nil {
				for _, prob := range problems {
					p.logger.LogError(prob, "Malformed salary nulled")
				}
			}
		}
		if c.RepresentativeSalary() != nil {
			result.WithPay++
		}
		cleaned = append(cleaned, c)
	}

	err = store.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		n, err := store.ReplaceCleanJobs(tx, cleaned)
		result.Rows = n
		return err
	})
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to replace cleaned jobs", err)
	}

	p.logInfo("Jobs processed",
		"rows", result.Rows,
		"with_salary", result.WithPay,
		"malformed", result.Malformed)
	return result, nil
}

func (p *Processor) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
