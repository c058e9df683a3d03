package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"fetch", StageFetch, false},
		{" Aggregate ", StageAggregate, false},
		{"dashboard", StageDashboard, false},
		{"all", StageAll, false},
		{"train", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStage(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSequence(t *testing.T) {
	assert.Equal(t, []Stage{StageForecast}, StageForecast.Sequence())

	all := StageAll.Sequence()
	assert.Equal(t, []Stage{StageFetch, StageIngest, StageProcess, StageSkills, StageAggregate, StageForecast, StageExport, StageReport}, all)
	assert.NotContains(t, all, StageDashboard)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StageEvent
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e StageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func okHandler(rows int) Handler {
	return func(context.Context) (Outcome, error) { return Outcome{Rows: rows}, nil }
}

func allHandlers(override map[Stage]Handler) map[Stage]Handler {
	h := make(map[Stage]Handler)
	for _, s := range StageAll.Sequence() {
		h[s] = okHandler(1)
	}
	for s, fn := range override {
		h[s] = fn
	}
	return h
}

func TestRunnerRunAll(t *testing.T) {
	db := setupStore(t)
	pub := &recordingPublisher{}

	handlers := allHandlers(map[Stage]Handler{
		StageAggregate: func(context.Context) (Outcome, error) {
			return Outcome{}, errors.NewEmptyInputError("no cleaned jobs or skill tags to aggregate")
		},
		StageForecast: func(context.Context) (Outcome, error) {
			return Outcome{
				Rows:   26,
				Slices: []types.SliceFailure{{Key: "skill 3 (Scala)", Cause: "degenerate series"}},
			}, nil
		},
		StageExport: func(context.Context) (Outcome, error) {
			return Outcome{}, errors.NewIOError(errors.ErrCodeExportFailed, "every export sink failed", nil)
		},
	})
	r := NewRunner(db, handlers, nil, WithPublisher(pub))
	r.newRunID = func() string { return "run-1" }

	summary, err := r.Run(context.Background(), StageAll)
	require.NoError(t, err)

	require.Len(t, summary.Stages, 8)
	assert.Equal(t, "run-1", summary.RunID)
	assert.False(t, summary.Aborted)
	assert.True(t, summary.Failed())

	byStage := make(map[string]types.StageResult)
	for _, st := range summary.Stages {
		byStage[st.Stage] = st
	}
	assert.Equal(t, types.StatusOK, byStage["fetch"].Status)
	assert.Equal(t, types.StatusEmpty, byStage["aggregate"].Status)
	assert.Equal(t, types.StatusOK, byStage["forecast"].Status)
	assert.Len(t, byStage["forecast"].Slices, 1)
	assert.Equal(t, types.StatusFailed, byStage["export"].Status)
	assert.Equal(t, types.StatusOK, byStage["report"].Status, "stages after a failure still run")

	records, err := store.ListStageRecords(db, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, "fetch", records[0].Stage)
	assert.Equal(t, "failed", records[6].Status)
	assert.Contains(t, records[5].Detail, "degenerate series")

	assert.Len(t, pub.events, 8)
	assert.Equal(t, "run-1", pub.events[0].RunID)
	require.NoError(t, r.Close())
	assert.True(t, pub.closed)
}

func TestRunnerMissingCredentialsAbortsAll(t *testing.T) {
	db := setupStore(t)
	ingestCalled := false
	handlers := allHandlers(map[Stage]Handler{
		StageFetch: func(context.Context) (Outcome, error) {
			return Outcome{}, errors.NewMissingCredentialsError("missing Adzuna credentials")
		},
		StageIngest: func(context.Context) (Outcome, error) {
			ingestCalled = true
			return Outcome{}, nil
		},
	})

	summary, err := NewRunner(db, handlers, nil).Run(context.Background(), StageAll)
	require.NoError(t, err)

	assert.True(t, summary.Aborted)
	assert.False(t, ingestCalled)
	require.Len(t, summary.Stages, 8)
	assert.Equal(t, types.StatusFailed, summary.Stages[0].Status)
	for _, st := range summary.Stages[1:] {
		assert.Equal(t, types.StatusSkipped, st.Status, st.Stage)
	}
}

func TestRunnerSingleStage(t *testing.T) {
	db := setupStore(t)
	summary, err := NewRunner(db, allHandlers(nil), nil).Run(context.Background(), StageIngest)
	require.NoError(t, err)
	require.Len(t, summary.Stages, 1)
	assert.Equal(t, "ingest", summary.Stages[0].Stage)
	assert.Equal(t, 1, summary.Stages[0].Rows)
}

func TestRunnerRejectsDashboardAndMissingHandlers(t *testing.T) {
	r := NewRunner(nil, map[Stage]Handler{StageFetch: okHandler(0)}, nil)

	_, err := r.Run(context.Background(), StageDashboard)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = r.Run(context.Background(), StageAll)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunnerCancelledContextSkipsStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handlers := allHandlers(map[Stage]Handler{
		StageFetch: func(context.Context) (Outcome, error) {
			cancel()
			return Outcome{}, nil
		},
	})

	summary, err := NewRunner(nil, handlers, nil).Run(ctx, StageAll)
	require.NoError(t, err)
	assert.True(t, summary.Aborted)
	assert.Equal(t, types.StatusOK, summary.Stages[0].Status)
	assert.Equal(t, types.StatusSkipped, summary.Stages[1].Status)
}

func TestNewNATSPublisherDisabled(t *testing.T) {
	p, err := NewNATSPublisher(config.NATSConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

// The default wiring runs end to end on landing files without touching the network.
func TestDefaultHandlersOfflinePipeline(t *testing.T) {
	db := setupStore(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.DataDir = dir
	cfg.Export.Dir = filepath.Join(dir, "export")
	cfg.Forecast.MinHistory = 2
	cfg.Forecast.Horizon = 4

	landing := LandingDir(cfg)
	require.NoError(t, os.MkdirAll(landing, 0750))
	var lines string
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		posted := start.AddDate(0, 0, 7*(i/3)).Format(time.RFC3339)
		lines += fmt.Sprintf(`{"id":"j%d","title":"Data Analyst","company":"Acme","location":"Bengaluru, Karnataka","created":%q,"salary_min":800000,"salary_max":1200000,"description":"Python and SQL with Excel","redirect_url":"https://example.com/%d","search_country":"in"}`+"\n", i, posted, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(landing, "jobs_1.jsonl"), []byte(lines), 0600))

	handlers, err := DefaultHandlers(Deps{Config: cfg, DB: db})
	require.NoError(t, err)

	for _, s := range []Stage{StageIngest, StageProcess, StageSkills, StageAggregate, StageForecast, StageExport, StageReport} {
		summary, err := NewRunner(db, handlers, nil).Run(context.Background(), s)
		require.NoError(t, err)
		require.Len(t, summary.Stages, 1)
		assert.Equal(t, types.StatusOK, summary.Stages[0].Status, "%s: %s", s, summary.Stages[0].Error)
	}

	counts, err := store.Counts(db)
	require.NoError(t, err)
	assert.Equal(t, 12, counts.RawJobs)
	assert.Equal(t, 12, counts.CleanJobs)
	assert.Positive(t, counts.Weekly)
	assert.Positive(t, counts.Forecasts)

	assert.FileExists(t, filepath.Join(cfg.Export.Dir, "weekly_skill_demand.csv"))
	assert.FileExists(t, DefaultReportOutput(cfg).OutputFile)
}
