package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// File names written by the file sinks
const (
	WeeklyFile   = "weekly_skill_demand"
	ForecastFile = "skill_forecasts"
)

// CSVSink writes one CSV file per table under dir
type CSVSink struct {
	dir string
}

// NewCSVSink creates a CSV sink
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(_ context.Context, ds Dataset) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	weekly := [][]string{{"week_start", "skill_id", "skill_name", "demand", "median_salary", "p25_salary", "p75_salary"}}
	for _, r := range ds.Weekly {
		weekly = append(weekly, []string{
			r.WeekStart.Format(dateLayout),
			strconv.FormatInt(r.SkillID, 10),
			r.SkillName,
			strconv.Itoa(r.Demand),
			formatFloat(r.MedianSalary),
			formatFloat(r.P25Salary),
			formatFloat(r.P75Salary),
		})
	}
	if err := writeCSV(filepath.Join(s.dir, WeeklyFile+".csv"), weekly); err != nil {
		return err
	}

	forecasts := [][]string{{"skill_id", "skill_name", "ds", "yhat", "yhat_lower", "yhat_upper"}}
	for _, r := range ds.Forecasts {
		forecasts = append(forecasts, []string{
			strconv.FormatInt(r.SkillID, 10),
			r.SkillName,
			r.DS.Format(dateLayout),
			strconv.FormatFloat(r.YHat, 'f', -1, 64),
			strconv.FormatFloat(r.YHatLower, 'f', -1, 64),
			strconv.FormatFloat(r.YHatUpper, 'f', -1, 64),
		})
	}
	return writeCSV(filepath.Join(s.dir, ForecastFile+".csv"), forecasts)
}

func (s *CSVSink) Close() error { return nil }

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: write %q: %w", path, err)
	}
	return f.Close()
}

// JSONSink writes one indented JSON array per table under dir
type JSONSink struct {
	dir string
}

// NewJSONSink creates a JSON sink
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Write(_ context.Context, ds Dataset) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("json: create output dir: %w", err)
	}
	if err := writeJSON(filepath.Join(s.dir, WeeklyFile+".json"), nonNil(ds.Weekly)); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, ForecastFile+".json"), nonNil(ds.Forecasts))
}

func (s *JSONSink) Close() error { return nil }

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode %q: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("json: write %q: %w", path, err)
	}
	return nil
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
