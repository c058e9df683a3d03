package formatters

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"skillpulse/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "Report", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "Report", &ReportMarkdownFormatter{})
	registry.RegisterFormatter("text", "RunSummary", &SummaryTextFormatter{})
	registry.RegisterFormatter("markdown", "RunSummary", &SummaryMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.Report:
		return "Report"
	case types.RunSummary:
		return "RunSummary"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

const dateLayout = "2006-01-02"

func money(v *float64, currency string) string {
	if v == nil {
		return "n/a"
	}
	s := fmt.Sprintf("%.0f", *v)
	if currency != "" {
		s += " " + currency
	}
	return s
}

// ReportTextFormatter handles text formatting for market reports
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	report, ok := data.(types.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== JOB MARKET REPORT ===\n\n")
	output.WriteString(fmt.Sprintf("Generated: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	output.WriteString(fmt.Sprintf("Total jobs: %d\n", report.TotalJobs))
	output.WriteString(fmt.Sprintf("Jobs with salary: %d\n", report.JobsWithSalary))
	output.WriteString(fmt.Sprintf("Average salary: %s\n", money(report.AverageSalary, report.Currency)))
	output.WriteString(fmt.Sprintf("Median salary: %s\n\n", money(report.MedianSalary, report.Currency)))

	writeTextRanking(&output, "TOP SKILLS", report.TopSkills)
	writeTextRanking(&output, "TOP TITLES", report.TopTitles)
	writeTextRanking(&output, "TOP COMPANIES", report.TopCompanies)
	writeTextRanking(&output, "TOP LOCATIONS", report.TopLocations)

	if report.LatestWeek != nil {
		output.WriteString(fmt.Sprintf("=== WEEK OF %s ===\n", report.LatestWeek.Format(dateLayout)))
		for i, row := range report.LatestWeekSkills {
			output.WriteString(fmt.Sprintf("%d. %s: %d (median %s)\n", i+1, row.SkillName, row.Demand, money(row.MedianSalary, report.Currency)))
		}
		output.WriteString("\n")
	}

	output.WriteString("=== OVERALL FORECAST ===\n")
	if f := report.Forecast; f != nil {
		output.WriteString(fmt.Sprintf("%d weeks, %s to %s\n", f.Periods, f.From.Format(dateLayout), f.To.Format(dateLayout)))
		output.WriteString(fmt.Sprintf("Weekly postings: %.1f -> %.1f (%s)\n", f.FirstYHat, f.LastYHat, f.Trend))
		output.WriteString(fmt.Sprintf("Final week interval: %.1f - %.1f\n", f.LastLower, f.LastUpper))
	} else {
		output.WriteString("No forecast available.\n")
	}

	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "Report"
}

func writeTextRanking(output *strings.Builder, title string, entries []types.CountEntry) {
	output.WriteString(fmt.Sprintf("=== %s ===\n", title))
	if len(entries) == 0 {
		output.WriteString("none\n\n")
		return
	}
	for i, e := range entries {
		output.WriteString(fmt.Sprintf("%d. %s (%d)\n", i+1, e.Label, e.Count))
	}
	output.WriteString("\n")
}

// ReportMarkdownFormatter handles markdown formatting for market reports
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, ok := data.(types.Report)
	if !ok {
		return "", fmt.Errorf("expected Report, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Job Market Analytics Report\n\n")
	output.WriteString(fmt.Sprintf("_Generated %s_\n\n", report.GeneratedAt.Format(time.RFC3339)))
	output.WriteString("| Metric | Value |\n|---|---|\n")
	output.WriteString(fmt.Sprintf("| Total jobs | %d |\n", report.TotalJobs))
	output.WriteString(fmt.Sprintf("| Jobs with salary | %d |\n", report.JobsWithSalary))
	output.WriteString(fmt.Sprintf("| Average salary | %s |\n", money(report.AverageSalary, report.Currency)))
	output.WriteString(fmt.Sprintf("| Median salary | %s |\n\n", money(report.MedianSalary, report.Currency)))

	writeMarkdownRanking(&output, "Top 10 Skills in Demand", "Skill", report.TopSkills)
	writeMarkdownRanking(&output, "Top 10 Job Titles", "Title", report.TopTitles)
	writeMarkdownRanking(&output, "Top Companies", "Company", report.TopCompanies)
	writeMarkdownRanking(&output, "Top Locations", "Location", report.TopLocations)

	if report.LatestWeek != nil {
		output.WriteString(fmt.Sprintf("## Week of %s\n\n", report.LatestWeek.Format(dateLayout)))
		output.WriteString("| Skill | Demand | Median salary |\n|---|---|---|\n")
		for _, row := range report.LatestWeekSkills {
			output.WriteString(fmt.Sprintf("| %s | %d | %s |\n", row.SkillName, row.Demand, money(row.MedianSalary, report.Currency)))
		}
		output.WriteString("\n")
	}

	output.WriteString("## Overall Forecast\n\n")
	if f := report.Forecast; f != nil {
		output.WriteString(fmt.Sprintf("**Horizon:** %d weeks (%s to %s)\n\n", f.Periods, f.From.Format(dateLayout), f.To.Format(dateLayout)))
		output.WriteString(fmt.Sprintf("**Weekly postings:** %.1f → %.1f (%s)\n\n", f.FirstYHat, f.LastYHat, f.Trend))
		output.WriteString(fmt.Sprintf("**Final week interval:** %.1f – %.1f\n", f.LastLower, f.LastUpper))
	} else {
		output.WriteString("No forecast available.\n")
	}

	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "Report"
}

func writeMarkdownRanking(output *strings.Builder, title, column string, entries []types.CountEntry) {
	output.WriteString(fmt.Sprintf("## %s\n\n", title))
	if len(entries) == 0 {
		output.WriteString("No data.\n\n")
		return
	}
	output.WriteString(fmt.Sprintf("| # | %s | Postings |\n|---|---|---|\n", column))
	for i, e := range entries {
		output.WriteString(fmt.Sprintf("| %d | %s | %d |\n", i+1, e.Label, e.Count))
	}
	output.WriteString("\n")
}

// SummaryTextFormatter handles text formatting for pipeline run summaries
type SummaryTextFormatter struct{}

func (stf *SummaryTextFormatter) Format(data any) (string, error) {
	summary, ok := data.(types.RunSummary)
	if !ok {
		return "", fmt.Errorf("expected RunSummary, got %T", data)
	}

	var output strings.Builder

	output.WriteString(fmt.Sprintf("=== RUN %s ===\n", summary.RunID))
	for _, st := range summary.Stages {
		output.WriteString(fmt.Sprintf("%-10s %-8s rows=%-6d %s\n", st.Stage, st.Status, st.Rows, st.Duration.Round(time.Millisecond)))
		if st.Error != "" {
			output.WriteString(fmt.Sprintf("           error: %s\n", st.Error))
		}
		for _, sl := range st.Slices {
			output.WriteString(fmt.Sprintf("           - %s: %s\n", sl.Key, sl.Cause))
		}
	}
	if summary.Aborted {
		output.WriteString("Run aborted.\n")
	}
	output.WriteString(fmt.Sprintf("Total: %s\n", summary.Duration.Round(time.Millisecond)))

	return output.String(), nil
}

func (stf *SummaryTextFormatter) SupportedType() string {
	return "RunSummary"
}

// SummaryMarkdownFormatter handles markdown formatting for pipeline run summaries
type SummaryMarkdownFormatter struct{}

func (smf *SummaryMarkdownFormatter) Format(data any) (string, error) {
	summary, ok := data.(types.RunSummary)
	if !ok {
		return "", fmt.Errorf("expected RunSummary, got %T", data)
	}

	var output strings.Builder

	output.WriteString(fmt.Sprintf("# Pipeline Run `%s`\n\n", summary.RunID))
	output.WriteString("| Stage | Status | Rows | Duration | Error |\n|---|---|---|---|---|\n")
	for _, st := range summary.Stages {
		output.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n", st.Stage, st.Status, st.Rows, st.Duration.Round(time.Millisecond), st.Error))
	}
	output.WriteString("\n")

	for _, st := range summary.Stages {
		if len(st.Slices) == 0 {
			continue
		}
		output.WriteString(fmt.Sprintf("## %s failures\n\n", st.Stage))
		for _, sl := range st.Slices {
			output.WriteString(fmt.Sprintf("- **%s**: %s\n", sl.Key, sl.Cause))
		}
		output.WriteString("\n")
	}
	if summary.Aborted {
		output.WriteString("**Run aborted.**\n")
	}

	return output.String(), nil
}

func (smf *SummaryMarkdownFormatter) SupportedType() string {
	return "RunSummary"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
