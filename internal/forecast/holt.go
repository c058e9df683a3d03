// Package forecast projects weekly demand series forward with Holt's linear trend method.
package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"skillpulse/internal/aggregate"
	"skillpulse/internal/types"
)

var smoothingGrid = func() []float64 {
	grid := make([]float64, 0, 19)
	for i := 1; i <= 19; i++ {
		grid = append(grid, float64(i)*0.05)
	}
	return grid
}()

// Model is a fitted additive-trend exponential smoothing model
type Model struct {
	Alpha float64
	Beta  float64
	Level float64
	Trend float64
	// Sigma is the RMSE of the one-step-ahead residuals.
	Sigma float64
	Last  time.Time
	N     int
}

// FillGaps returns one point per week from the first to the last observed period.
// Each period is moved to the start of its week, so rows stored under an earlier
// week start land on the current grid. Missing weeks are 0; points sharing a week are summed.
func FillGaps(points []types.Point, weekStart time.Weekday) []types.Point {
	if len(points) == 0 {
		return nil
	}

	byPeriod := make(map[time.Time]float64, len(points))
	for _, p := range points {
		byPeriod[aggregate.WeekStart(p.Period.UTC(), weekStart)] += p.Value
	}
	periods := make([]time.Time, 0, len(byPeriod))
	for period := range byPeriod {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, k int) bool { return periods[i].Before(periods[k]) })

	first, last := periods[0], periods[len(periods)-1]
	out := make([]types.Point, 0, len(periods))
	for period := first; !period.After(last); period = period.AddDate(0, 0, 7) {
		out = append(out, types.Point{Period: period, Value: byPeriod[period]})
	}
	return out
}

// Fit chooses alpha and beta on a grid by minimizing one-step-ahead SSE.
// series must be gap-filled and ordered.
func Fit(series []types.Point) (*Model, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("degenerate series: %d period(s)", len(series))
	}

	allZero := true
	for _, p := range series {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return nil, fmt.Errorf("non-finite observation at %s", p.Period.Format("2006-01-02"))
		}
		if p.Value != 0 {
			allZero = false
		}
	}
	if allZero {
		return nil, fmt.Errorf("all-zero history")
	}

	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Value
	}

	best := Model{}
	bestSSE := math.Inf(1)
	for _, alpha := range smoothingGrid {
		for _, beta := range smoothingGrid {
			level, trend, sse := smooth(y, alpha, beta)
			if sse < bestSSE {
				bestSSE = sse
				best = Model{Alpha: alpha, Beta: beta, Level: level, Trend: trend}
			}
		}
	}

	best.Sigma = math.Sqrt(bestSSE / float64(len(y)-1))
	best.Last = series[len(series)-1].Period
	best.N = len(series)

	if !finite(best.Level, best.Trend, best.Sigma) {
		return nil, fmt.Errorf("non-finite fit (level=%v trend=%v sigma=%v)", best.Level, best.Trend, best.Sigma)
	}
	return &best, nil
}

// smooth runs Holt's recursions and returns the final state with the one-step SSE.
func smooth(y []float64, alpha, beta float64) (level, trend, sse float64) {
	level = y[0]
	trend = y[1] - y[0]
	for t := 1; t < len(y); t++ {
		predicted := level + trend
		residual := y[t] - predicted
		sse += residual * residual

		prevLevel := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return level, trend, sse
}

// Forecast produces exactly horizon weekly rows after the last observed period.
// Counts cannot be negative, so yhat and both bounds are clamped at 0.
func (m *Model) Forecast(horizon int, intervalWidth float64) ([]types.SkillForecast, error) {
	if horizon <= 0 {
		return nil, fmt.Errorf("horizon must be positive, got %d", horizon)
	}
	z, err := ZScore(intervalWidth)
	if err != nil {
		return nil, err
	}

	out := make([]types.SkillForecast, horizon)
	for h := 1; h <= horizon; h++ {
		raw := m.Level + float64(h)*m.Trend
		width := z * m.Sigma * math.Sqrt(float64(h))
		row := types.SkillForecast{
			DS:        m.Last.AddDate(0, 0, 7*h),
			YHat:      math.Max(0, raw),
			YHatLower: math.Max(0, raw-width),
			YHatUpper: math.Max(0, raw+width),
		}
		if !finite(row.YHat, row.YHatLower, row.YHatUpper) {
			return nil, fmt.Errorf("non-finite forecast at step %d", h)
		}
		out[h-1] = row
	}
	return out, nil
}

// ZScore returns the two-sided standard normal quantile for an interval width in (0, 1).
func ZScore(intervalWidth float64) (float64, error) {
	if intervalWidth <= 0 || intervalWidth >= 1 || math.IsNaN(intervalWidth) {
		return 0, fmt.Errorf("interval width must be in (0, 1), got %v", intervalWidth)
	}
	return math.Sqrt2 * math.Erfinv(intervalWidth), nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
