// Package pipeline runs the fetch to report stages and records what each one did.
package pipeline

import (
	"fmt"
	"strings"
)

// Stage names one pipeline step
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageIngest    Stage = "ingest"
	StageProcess   Stage = "process"
	StageSkills    Stage = "skills"
	StageAggregate Stage = "aggregate"
	StageForecast  Stage = "forecast"
	StageExport    Stage = "export"
	StageReport    Stage = "report"
	StageDashboard Stage = "dashboard"
	StageAll       Stage = "all"
)

// allSequence is the order `all` runs in. The dashboard is long-running and started on its own.
var allSequence = []Stage{
	StageFetch, StageIngest, StageProcess, StageSkills,
	StageAggregate, StageForecast, StageExport, StageReport,
}

// Stages lists every accepted stage name
func Stages() []Stage {
	return append(append([]Stage(nil), allSequence...), StageDashboard, StageAll)
}

// ParseStage converts a name into a Stage and rejects anything unknown
func ParseStage(name string) (Stage, error) {
	s := Stage(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Stages() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

// Sequence returns the stages a run of s executes
func (s Stage) Sequence() []Stage {
	if s == StageAll {
		return append([]Stage(nil), allSequence...)
	}
	return []Stage{s}
}

func (s Stage) String() string { return string(s) }
