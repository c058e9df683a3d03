package process

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Salary periods
const (
	PeriodHour  = "hour"
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

var annualFactors = map[string]float64{
	PeriodHour:  2080,
	PeriodDay:   260,
	PeriodWeek:  52,
	PeriodMonth: 12,
	PeriodYear:  1,
}

var countryCurrencies = map[string]string{
	"in": "INR",
	"us": "USD",
	"gb": "GBP",
	"ca": "CAD",
	"au": "AUD",
}

const amountPattern = `(₹|\$|£|€|rs\.?|inr|usd|gbp|cad|aud)?\s*(\d[\d,]*(?:\.\d+)?)\s*(k|m|lpa|lakhs?|lacs?|crores?|cr)?\b`

var (
	rangeRe  = regexp.MustCompile(`(?i)` + amountPattern + `\s*(?:-|–|to)\s*` + amountPattern)
	singleRe = regexp.MustCompile(`(?i)` + amountPattern)

	periodPatterns = []struct {
		period string
		re     *regexp.Regexp
	}{
		{PeriodHour, regexp.MustCompile(`(?i)(hour|/\s*hr\b|\bp\.?h\b)`)},
		{PeriodDay, regexp.MustCompile(`(?i)(\bday\b|daily|/\s*d\b|per\s+diem)`)},
		{PeriodWeek, regexp.MustCompile(`(?i)(week|/\s*wk\b|\bp\.?w\b)`)},
		{PeriodMonth, regexp.MustCompile(`(?i)(month|/\s*mo\b|\bp\.?m\b)`)},
		{PeriodYear, regexp.MustCompile(`(?i)(year|annum|annual|\bp\.?a\b)`)},
	}
)

// ParsedSalary is the result of reading a free-text salary
type ParsedSalary struct {
	Min      *float64
	Max      *float64
	Currency string // ISO code, empty when absent or ambiguous ("$")
	Period   string
}

// ParseSalaryText extracts an amount or a range from text. Multipliers (k, m, lakh/LPA, crore)
// written on one side of a range apply to both. ok is false when no amount is found.
func ParseSalaryText(text string) (ParsedSalary, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParsedSalary{}, false
	}

	out := ParsedSalary{Period: DetectPeriod(text)}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		lo, errLo := parseAmount(m[2])
		hi, errHi := parseAmount(m[5])
		if errLo == nil && errHi == nil {
			loUnit, hiUnit := m[3], m[6]
			if loUnit == "" {
				loUnit = hiUnit
			}
			if hiUnit == "" {
				hiUnit = loUnit
			}
			lo *= multiplier(loUnit)
			hi *= multiplier(hiUnit)
			out.Min, out.Max = &lo, &hi
			out.Currency = currencyForSymbol(firstNonEmpty(m[1], m[4]))
			return out, true
		}
	}

	if m := singleRe.FindStringSubmatch(text); m != nil {
		v, err := parseAmount(m[2])
		if err == nil {
			v *= multiplier(m[3])
			out.Min = &v
			out.Currency = currencyForSymbol(m[1])
			return out, true
		}
	}
	return ParsedSalary{}, false
}

// DetectPeriod returns the pay period named earliest in text, defaulting to year.
// Unit words such as lakh, LPA or crore fall back to the yearly default, so
// "5 lakh per month" is monthly.
func DetectPeriod(text string) string {
	best, bestAt := PeriodYear, -1
	for _, p := range periodPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = p.period, loc[0]
		}
	}
	return best
}

// Annualize converts an amount paid per period into a yearly amount.
func Annualize(v float64, period string) (float64, error) {
	factor, ok := annualFactors[period]
	if !ok {
		return 0, fmt.Errorf("unknown salary period %q", period)
	}
	return v * factor, nil
}

// CurrencyForCountry maps a job-source country code to its currency.
func CurrencyForCountry(country string) string {
	return countryCurrencies[strings.ToLower(strings.TrimSpace(country))]
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite amount %q", s)
	}
	return v, nil
}

func multiplier(unit string) float64 {
	switch u := strings.ToLower(unit); {
	case u == "k":
		return 1e3
	case u == "m":
		return 1e6
	case u == "lpa" || strings.HasPrefix(u, "lakh") || strings.HasPrefix(u, "lac"):
		return 1e5
	case u == "cr" || strings.HasPrefix(u, "crore"):
		return 1e7
	default:
		return 1
	}
}

func currencyForSymbol(sym string) string {
	switch s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(sym)), "."); s {
	case "₹", "rs", "inr":
		return "INR"
	case "£", "gbp":
		return "GBP"
	case "€":
		return "EUR"
	case "usd":
		return "USD"
	case "cad":
		return "CAD"
	case "aud":
		return "AUD"
	default:
		return ""
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
