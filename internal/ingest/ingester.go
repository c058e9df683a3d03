package ingest

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
	"skillpulse/internal/utils"
)

const maxLineSize = 16 << 20

// Options select the landing files to read
type Options struct {
	Path          string // a .jsonl file or a directory of them
	DefaultSource string
	MaxFileSize   int64 // 0 disables the check
}

// Result summarizes one ingest run
type Result struct {
	Files     int `json:"files"`
	Lines     int `json:"lines"`
	Rows      int `json:"rows"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// Ingester upserts landing-file records into jobs_raw
type Ingester struct {
	db     *sql.DB
	opts   Options
	logger *errors.Logger
}

// NewIngester creates an Ingester
func NewIngester(db *sql.DB, opts Options, logger *errors.Logger) *Ingester {
	if opts.DefaultSource == "" {
		opts.DefaultSource = DefaultSource
	}
	return &Ingester{db: db, opts: opts, logger: logger}
}

// Run reads every landing file and upserts the postings in one transaction.
// A missing directory or files without records yield an empty_input error.
func (in *Ingester) Run(ctx context.Context) (Result, error) {
	files, err := LandingFiles(in.opts.Path)
	if err != nil {
		return Result{}, err
	}

	result := Result{Files: len(files)}
	var jobs []types.JobPosting
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fileJobs, stats, err := in.readFile(f)
		if err != nil {
			return result, err
		}
		result.Lines += stats.Lines
		result.Skipped += stats.Skipped
		result.Malformed += stats.Malformed
		jobs = append(jobs, fileJobs...)
	}

	if len(jobs) == 0 {
		in.logInfo("No records to ingest", "path", in.opts.Path, "files", result.Files)
		return result, errors.NewEmptyInputError("no job records to ingest").WithContext("path", in.opts.Path)
	}

	err = store.WithTx(ctx, in.db, func(tx *sql.Tx) error {
		n, err := store.UpsertRawJobs(tx, jobs)
		result.Rows = n
		return err
	})
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to upsert raw jobs", err)
	}

	in.logInfo("Raw postings ingested",
		"files", result.Files,
		"lines", result.Lines,
		"rows", result.Rows,
		"skipped", result.Skipped,
		"malformed", result.Malformed)
	return result, nil
}

type fileStats struct {
	Lines, Skipped, Malformed int
}

func (in *Ingester) readFile(path string) ([]types.JobPosting, fileStats, error) {
	var stats fileStats

	if info, err := os.Stat(path); err == nil {
		if in.opts.MaxFileSize > 0 && info.Size() > in.opts.MaxFileSize {
			return nil, stats, errors.NewValidationError("FILE_TOO_LARGE",
				fmt.Sprintf("Landing file %s is %s, limit is %s", path,
					utils.FormatFileSize(info.Size()), utils.FormatFileSize(in.opts.MaxFileSize)), nil)
		}
		in.logDebug("Reading landing file", "file", path, "size", utils.FormatFileSize(info.Size()))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, stats, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Cannot read file: %s", path), err)
	}
	defer func() {
		if err := f.Close(); err != nil && in.logger != nil {
			in.logger.Warn("Failed to close file", "filename", path, "error", err)
		}
	}()

	var jobs []types.JobPosting
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 || isBlank(line) {
			continue
		}
		stats.Lines++

		job, problems, err := DecodeLine(line, in.opts.DefaultSource)
		if err != nil {
			stats.Skipped++
			in.logError(err, "Skipping landing record", "file", path, "line", lineNo)
			continue
		}
		if len(problems) > 0 {
			stats.Malformed++
			for _, p := range problems {
				in.logError(p, "Malformed field nulled", "file", path, "line", lineNo)
			}
		}
		jobs = append(jobs, job)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Failed to read file content: %s", path), err)
	}
	return jobs, stats, nil
}

// LandingFiles resolves path to the JSONL files to ingest, in name order.
func LandingFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewEmptyInputError(fmt.Sprintf("landing path does not exist: %s", path))
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("cannot access %s", path), err)
	}

	if !info.IsDir() {
		if err := utils.ValidateInputFile(path); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE", fmt.Sprintf("Invalid file %s", path), err)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("cannot list %s", path), err)
	}
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && utils.IsJSONLFile(e.Name()) {
			matches = append(matches, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(matches)
	return matches, nil
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}

func (in *Ingester) logInfo(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Info(msg, args...)
	}
}

func (in *Ingester) logDebug(msg string, args ...any) {
	if in.logger != nil {
		in.logger.Debug(msg, args...)
	}
}

func (in *Ingester) logError(err error, msg string, args ...any) {
	if in.logger != nil {
		in.logger.LogError(err, msg, args...)
	}
}
