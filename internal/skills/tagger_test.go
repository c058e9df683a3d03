package skills

import (
	"context"
	"testing"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	vocab := []string{"Python", "SQL", "Power BI", "C++", "Java", "python"}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"case insensitive", "We use PYTHON and sql daily", []string{"Python", "SQL"}},
		{"multi word", "Dashboards in power bi", []string{"Power BI"}},
		{"symbols", "Modern C++ experience", []string{"C++"}},
		{"substring semantics", "JavaScript developer", []string{"Java"}},
		{"duplicates collapse", "python python Python", []string{"Python"}},
		{"empty text", "   ", nil},
		{"no match", "forklift operator", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tag(tt.text, vocab))
		})
	}
}

func TestTagDefaultVocabulary(t *testing.T) {
	got := Tag("Data Analysis with Python, Tableau and AWS", config.DefaultSkillVocabulary)
	assert.Subset(t, got, []string{"Python", "Data Analysis", "Tableau", "AWS"})
}

func TestTaggerRun(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	posted := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	raw := []types.JobPosting{
		{ExternalID: "a", Source: "test", Description: "Python and SQL", PostedAt: &posted},
		{ExternalID: "b", Source: "test", Description: "Excel only", PostedAt: &posted},
		{ExternalID: "c", Source: "test", Description: "", PostedAt: &posted},
	}
	_, err = store.UpsertRawJobs(db, raw)
	require.NoError(t, err)
	_, err = store.ReplaceCleanJobs(db, []types.CleanedJob{{JobID: raw[0].ID}, {JobID: raw[1].ID}, {JobID: raw[2].ID}})
	require.NoError(t, err)

	tagger := NewTagger(db, []string{"Python", "SQL", "Excel", "Docker"}, nil)
	res, err := tagger.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Jobs: 3, TaggedJobs: 2, Tags: 3, Skills: 4}, res)

	// rerun replaces instead of appending
	_, err = tagger.Run(context.Background())
	require.NoError(t, err)
	tags, err := store.ListJobSkills(db)
	require.NoError(t, err)
	assert.Len(t, tags, 3)
}

func TestTaggerRunEmpty(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewTagger(db, []string{"Python"}, nil).Run(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))
}
