package process

import (
	"context"
	"math"
	"testing"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sr. Data-Scientist (ML)!", "sr data-scientist ml"},
		{"  C++ / C# Engineer  ", "c++ / c# engineer"},
		{"DATA\tANALYST", "data analyst"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestSplitLocation(t *testing.T) {
	assert.Equal(t, Location{City: "Bengaluru", State: "Karnataka", Country: "India"}, SplitLocation("Bengaluru, Karnataka|India"))
	assert.Equal(t, Location{City: "London"}, SplitLocation("London"))
	assert.Equal(t, Location{City: "Austin", State: "TX"}, SplitLocation("Austin,, TX"))
	assert.Equal(t, Location{}, SplitLocation("  "))
}

func TestParseSalaryText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		min, max *float64
		currency string
		period   string
	}{
		{"lakh range", "₹8-12 LPA", ptr(800000), ptr(1200000), "INR", PeriodYear},
		{"k single", "$80k/year", ptr(80000), nil, "", PeriodYear},
		{"hourly", "£25 per hour", ptr(25), nil, "GBP", PeriodHour},
		{"crore", "1.5 crore", ptr(15000000), nil, "", PeriodYear},
		{"unit on one side", "80-100k", ptr(80000), ptr(100000), "", PeriodYear},
		{"monthly with commas", "Rs. 50,000 to 70,000 per month", ptr(50000), ptr(70000), "INR", PeriodMonth},
		{"words between", "USD 120000 - 140000 annually", ptr(120000), ptr(140000), "USD", PeriodYear},
		{"lakh per month", "5 lakh per month", ptr(500000), nil, "", PeriodMonth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSalaryText(tt.text)
			require.True(t, ok)
			if tt.min == nil {
				assert.Nil(t, got.Min)
			} else {
				require.NotNil(t, got.Min)
				assert.InDelta(t, *tt.min, *got.Min, 1e-6)
			}
			if tt.max == nil {
				assert.Nil(t, got.Max)
			} else {
				require.NotNil(t, got.Max)
				assert.InDelta(t, *tt.max, *got.Max, 1e-6)
			}
			assert.Equal(t, tt.currency, got.Currency)
			assert.Equal(t, tt.period, got.Period)
		})
	}

	_, ok := ParseSalaryText("competitive")
	assert.False(t, ok)
	_, ok = ParseSalaryText("")
	assert.False(t, ok)
}

func TestDetectPeriod(t *testing.T) {
	assert.Equal(t, PeriodDay, DetectPeriod("£400 per day"))
	assert.Equal(t, PeriodWeek, DetectPeriod("$1500/week"))
	assert.Equal(t, PeriodHour, DetectPeriod("$40 an hour, paid monthly"))
	assert.Equal(t, PeriodYear, DetectPeriod("great workplace"))
	assert.Equal(t, PeriodYear, DetectPeriod("no period"))
	assert.Equal(t, PeriodMonth, DetectPeriod("5 lakh per month"))
	assert.Equal(t, PeriodMonth, DetectPeriod("₹1-2 LPA, paid monthly"))
	assert.Equal(t, PeriodYear, DetectPeriod("₹8-12 LPA"))
	assert.Equal(t, PeriodYear, DetectPeriod("1.5 crore"))
}

func TestAnnualize(t *testing.T) {
	tests := []struct {
		period string
		want   float64
	}{
		{PeriodHour, 2080},
		{PeriodDay, 260},
		{PeriodWeek, 52},
		{PeriodMonth, 12},
		{PeriodYear, 1},
	}
	for _, tt := range tests {
		got, err := Annualize(1, tt.period)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.period)
	}

	_, err := Annualize(1, "fortnight")
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	posted := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	opts := Options{ReportingCurrency: "USD", Convert: true, Rates: map[string]float64{"USD": 1, "INR": 0.012, "GBP": 1.27}}

	t.Run("fields and swap", func(t *testing.T) {
		job := types.JobPosting{ID: 7, Title: "Senior Data Analyst!", Company: " Acme ", LocationRaw: "Austin, TX",
			SearchCountry: "us", PostedAt: &posted, SalaryMin: ptr(120000), SalaryMax: ptr(90000)}
		c, problems := Clean(job, opts)
		assert.Empty(t, problems)
		assert.Equal(t, int64(7), c.JobID)
		assert.Equal(t, "senior data analyst", c.Title)
		assert.Equal(t, "Acme", c.Company)
		assert.Equal(t, "US", c.Country)
		assert.Equal(t, &posted, c.PostedAt)
		require.NotNil(t, c.SalaryMin)
		assert.Equal(t, 90000.0, *c.SalaryMin)
		assert.Equal(t, 120000.0, *c.SalaryMax)
		assert.Equal(t, "USD", c.Currency)
		assert.Equal(t, PeriodYear, c.SalaryPeriod)
	})

	t.Run("text salary converted", func(t *testing.T) {
		job := types.JobPosting{ID: 8, SearchCountry: "in", SalaryText: "₹8-12 LPA"}
		c, problems := Clean(job, opts)
		assert.Empty(t, problems)
		require.NotNil(t, c.SalaryMin)
		assert.InDelta(t, 9600, *c.SalaryMin, 1e-6)
		assert.InDelta(t, 14400, *c.SalaryMax, 1e-6)
		assert.Equal(t, "USD", c.Currency)
	})

	t.Run("hourly annualized without conversion", func(t *testing.T) {
		job := types.JobPosting{ID: 9, SearchCountry: "gb", SalaryText: "£25 per hour"}
		c, problems := Clean(job, Options{ReportingCurrency: "USD"})
		assert.Empty(t, problems)
		require.NotNil(t, c.SalaryMin)
		assert.Equal(t, 52000.0, *c.SalaryMin)
		assert.Nil(t, c.SalaryMax)
		assert.Equal(t, "GBP", c.Currency)
		assert.Equal(t, PeriodHour, c.SalaryPeriod)
	})

	t.Run("non-positive values nulled", func(t *testing.T) {
		job := types.JobPosting{ID: 10, SearchCountry: "us", SalaryMin: ptr(0), SalaryMax: ptr(math.Inf(1))}
		c, problems := Clean(job, opts)
		assert.Len(t, problems, 2)
		assert.True(t, errors.IsType(problems[0], errors.ErrorTypeMalformedRecord))
		assert.Nil(t, c.SalaryMin)
		assert.Nil(t, c.SalaryMax)
		assert.Empty(t, c.Currency)
	})

	t.Run("missing rate nulls salary", func(t *testing.T) {
		job := types.JobPosting{ID: 11, SearchCountry: "au", SalaryMin: ptr(100000)}
		c, problems := Clean(job, opts)
		require.Len(t, problems, 1)
		assert.Nil(t, c.SalaryMin)
	})

	t.Run("no salary at all", func(t *testing.T) {
		c, problems := Clean(types.JobPosting{ID: 12, SalaryText: "competitive"}, opts)
		assert.Empty(t, problems)
		assert.Nil(t, c.RepresentativeSalary())
	})
}

func TestProcessorRun(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	posted := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	raw := []types.JobPosting{
		{ExternalID: "a", Source: "test", Title: "Data Analyst", Description: "SQL", SearchCountry: "us", PostedAt: &posted, SalaryMin: ptr(80000)},
		{ExternalID: "b", Source: "test", Title: "ML Engineer", Description: "Python", SearchCountry: "us", SalaryMin: ptr(-5)},
		{ExternalID: "c", Source: "test", Title: "Analyst", SalaryText: "£30,000"},
	}
	_, err = store.UpsertRawJobs(db, raw)
	require.NoError(t, err)

	p := NewProcessor(db, Options{ReportingCurrency: "USD"}, nil)
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Rows: 3, WithPay: 2, Malformed: 1}, res)

	// rerun replaces rows instead of duplicating them
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	clean, err := store.ListCleanJobs(db)
	require.NoError(t, err)
	require.Len(t, clean, 3)
	assert.Equal(t, "data analyst", clean[0].Title)
	assert.Equal(t, "SQL", clean[0].Description)
}

func TestProcessorRunEmpty(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewProcessor(db, Options{ReportingCurrency: "USD"}, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))
}
