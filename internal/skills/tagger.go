// Package skills matches job descriptions against a fixed skill vocabulary.
package skills

import (
	"context"
	"database/sql"
	"strings"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// Tag returns the vocabulary entries found in text as case-insensitive substrings,
// in vocabulary order and without duplicates.
func Tag(text string, vocabulary []string) []string {
	textLower := strings.ToLower(text)
	if strings.TrimSpace(textLower) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, skill := range vocabulary {
		needle := strings.ToLower(strings.TrimSpace(skill))
		if needle == "" || seen[needle] {
			continue
		}
		if strings.Contains(textLower, needle) {
			seen[needle] = true
			result = append(result, strings.TrimSpace(skill))
		}
	}
	return result
}

// Result summarizes one tagging run
type Result struct {
	Jobs       int `json:"jobs"`
	TaggedJobs int `json:"tagged_jobs"`
	Tags       int `json:"tags"`
	Skills     int `json:"skills"`
}

// Tagger rebuilds the job to skill association from cleaned jobs
type Tagger struct {
	db         *sql.DB
	vocabulary []string
	logger     *errors.Logger
}

// NewTagger creates a Tagger for the given vocabulary
func NewTagger(db *sql.DB, vocabulary []string, logger *errors.Logger) *Tagger {
	return &Tagger{db: db, vocabulary: vocabulary, logger: logger}
}

// Run ensures every vocabulary skill exists, tags every cleaned job's
// description and replaces job_skills in one transaction.
func (t *Tagger) Run(ctx context.Context) (Result, error) {
	jobs, err := store.ListCleanJobs(t.db)
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read cleaned jobs", err)
	}
	if len(jobs) == 0 {
		t.logInfo("No cleaned jobs to tag")
		return Result{}, errors.NewEmptyInputError("no cleaned jobs to tag")
	}

	result := Result{Jobs: len(jobs)}
	err = store.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		vocab, err := store.EnsureSkills(tx, t.vocabulary)
		if err != nil {
			return err
		}
		result.Skills = len(vocab)

		ids := make(map[string]int64, len(vocab))
		names := make([]string, len(vocab))
		for i, s := range vocab {
			ids[s.Name] = s.ID
			names[i] = s.Name
		}

		var tags []types.SkillTag
		for _, job := range jobs {
			found := Tag(job.Description, names)
			if len(found) > 0 {
				result.TaggedJobs++
			}
			for _, name := range found {
				tags = append(tags, types.SkillTag{JobID: job.JobID, SkillID: ids[name]})
			}
		}

		result.Tags, err = store.ReplaceJobSkills(tx, tags)
		return err
	})
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to replace job skills", err)
	}

	t.logInfo("Skills tagged",
		"jobs", result.Jobs,
		"tagged_jobs", result.TaggedJobs,
		"tags", result.Tags,
		"vocabulary", result.Skills)
	return result, nil
}

func (t *Tagger) logInfo(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Info(msg, args...)
	}
}
