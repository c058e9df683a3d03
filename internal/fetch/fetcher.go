package fetch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/types"
)

// Options select what a fetch run requests and where it lands
type Options struct {
	OutputDir   string
	Roles       []string
	Countries   []string
	Pages       int
	Concurrency int
}

// PageFailure records one skipped page
type PageFailure struct {
	Role    string `json:"role"`
	Country string `json:"country"`
	Page    int    `json:"page"`
	Error   string `json:"error"`
	Err     error  `json:"-"`
}

// Result summarizes one fetch run
type Result struct {
	Requests   int           `json:"requests"`
	Pages      int           `json:"pages"`
	Jobs       int           `json:"jobs"`
	Duplicates int           `json:"duplicates"`
	File       string        `json:"file,omitempty"`
	Failures   []PageFailure `json:"failures,omitempty"`
}

// Fetcher runs the role x country x page sweep and writes one landing file
type Fetcher struct {
	client *Client
	opts   Options
	logger *errors.Logger
	now    func() time.Time
}

// NewFetcher creates a Fetcher
func NewFetcher(client *Client, opts Options, logger *errors.Logger) *Fetcher {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Fetcher{client: client, opts: opts, logger: logger, now: time.Now}
}

type pageTask struct {
	role    string
	country string
	page    int
}

type pageResult struct {
	jobs []types.JobPosting
	err  error
}

// Run fetches every configured page. Failed pages are logged and skipped.
// Missing credentials abort the run before any request is made.
func (f *Fetcher) Run(ctx context.Context) (Result, error) {
	if !f.client.HasCredentials() {
		return Result{}, errors.NewMissingCredentialsError("missing Adzuna credentials: set ADZUNA_APP_ID and ADZUNA_APP_KEY")
	}

	var tasks []pageTask
	for _, role := range f.opts.Roles {
		for _, country := range f.opts.Countries {
			for page := 1; page <= f.opts.Pages; page++ {
				tasks = append(tasks, pageTask{role: role, country: country, page: page})
			}
		}
	}
	if len(tasks) == 0 {
		return Result{}, errors.NewEmptyInputError("no roles or countries configured")
	}

	results := f.runTasks(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{Requests: len(tasks)}
	seen := make(map[string]bool)
	var jobs []types.JobPosting
	for i, r := range results {
		t := tasks[i]
		if r.err != nil {
			result.Failures = append(result.Failures, PageFailure{Role: t.role, Country: t.country, Page: t.page, Error: r.err.Error(), Err: r.err})
			f.logError(r.err, "Skipping search page", "role", t.role, "country", t.country, "page", t.page)
			continue
		}
		result.Pages++
		for _, j := range r.jobs {
			key := j.Source + "/" + j.ExternalID
			if seen[key] {
				result.Duplicates++
				continue
			}
			seen[key] = true
			jobs = append(jobs, j)
		}
	}

	if len(jobs) == 0 {
		if result.Pages == 0 {
			return result, errors.NewSourceUnavailableError(errors.ErrCodeSourceRequest, "every search page failed", nil).
				WithContext("requests", result.Requests)
		}
		f.logInfo("Job source returned no postings", "requests", result.Requests)
		return result, errors.NewEmptyInputError("job source returned no postings")
	}

	path, err := f.writeLanding(jobs)
	if err != nil {
		return result, err
	}
	result.File = path
	result.Jobs = len(jobs)

	f.logInfo("Postings fetched",
		"requests", result.Requests,
		"pages", result.Pages,
		"failed_pages", len(result.Failures),
		"jobs", result.Jobs,
		"file", result.File)
	return result, nil
}

func (f *Fetcher) runTasks(ctx context.Context, tasks []pageTask) []pageResult {
	results := make([]pageResult, len(tasks))

	if f.opts.Concurrency == 1 {
		for i, t := range tasks {
			if ctx.Err() != nil {
				break
			}
			jobs, err := f.client.SearchPage(ctx, t.role, t.country, t.page)
			results[i] = pageResult{jobs: jobs, err: err}
		}
		return results
	}

	pool := NewWorkerPool(f.opts.Concurrency, len(tasks))
	pool.Start(ctx)
	var mu sync.Mutex
	for i, t := range tasks {
		_ = pool.Submit(func(ctx context.Context) {
			jobs, err := f.client.SearchPage(ctx, t.role, t.country, t.page)
			mu.Lock()
			results[i] = pageResult{jobs: jobs, err: err}
			mu.Unlock()
		})
	}
	pool.Close()
	return results
}

func (f *Fetcher) writeLanding(jobs []types.JobPosting) (string, error) {
	if err := os.MkdirAll(f.opts.OutputDir, 0750); err != nil {
		return "", errors.NewIOError("DIRECTORY_CREATE_FAILED", fmt.Sprintf("Cannot create directory: %s", f.opts.OutputDir), err)
	}

	name := fmt.Sprintf("jobs_%s.jsonl", f.now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(f.opts.OutputDir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot write file: %s", path), err)
	}

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, j := range jobs {
		if err := enc.Encode(j); err != nil {
			_ = file.Close()
			return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot encode posting %s", j.ExternalID), err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot write file: %s", path), err)
	}
	if err := file.Close(); err != nil {
		return "", errors.NewIOError("FILE_WRITE_FAILED", fmt.Sprintf("Cannot close file: %s", path), err)
	}
	return path, nil
}

func (f *Fetcher) logInfo(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}

func (f *Fetcher) logError(err error, msg string, args ...any) {
	if f.logger != nil {
		f.logger.LogError(err, msg, args...)
	}
}
