// Package ingest turns a repository into a persisted knowledge graph.
//
// The pipeline: acquire source (git clone or local directory), walk the
// tree selecting parseable files, parse them concurrently, build the
// graph repository-wide, and upsert it into the store. Every step is
// idempotent; ingesting the same revision twice leaves the graph
// unchanged.
package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/graph"
)

// JobState is the lifecycle phase of an ingestion job.
type JobState string

const (
	// JobStatePending means the job is created but not yet running.
	JobStatePending JobState = "pending"

	// JobStateCloning means the repository is being fetched.
	JobStateCloning JobState = "cloning"

	// JobStateParsing means source files are being parsed.
	JobStateParsing JobState = "parsing"

	// JobStatePersisting means the graph is being written to the store.
	JobStatePersisting JobState = "persisting"

	// JobStateCompleted means the job finished successfully.
	JobStateCompleted JobState = "completed"

	// JobStateFailed means the job stopped on an error. See Job.Error.
	JobStateFailed JobState = "failed"
)

// Job tracks one ingestion run.
type Job struct {
	// ID is the job's unique identifier.
	ID string `json:"id"`

	// RepoURL is the repository URL or local path being ingested.
	RepoURL string `json:"repo_url"`

	// State is the current lifecycle phase.
	State JobState `json:"state"`

	// Error is the failure message when State is failed.
	Error string `json:"error,omitempty"`

	// FilesParsed is the number of files successfully parsed.
	FilesParsed int `json:"files_parsed"`

	// FilesSkipped is the number of candidate files that failed to
	// read or parse and were left out of the graph.
	FilesSkipped int `json:"files_skipped"`

	// Stats summarizes the built graph. Zero until persisting begins.
	Stats graph.BuildStats `json:"stats"`

	// StartedAtMilli is the Unix timestamp in milliseconds when the job started.
	StartedAtMilli int64 `json:"started_at_milli"`

	// FinishedAtMilli is the Unix timestamp in milliseconds when the
	// job reached a terminal state. Zero while running.
	FinishedAtMilli int64 `json:"finished_at_milli,omitempty"`
}

// jobTracker is a thread-safe registry of jobs, queried by the status API.
type jobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func newJobTracker() *jobTracker {
	return &jobTracker{
		jobs: make(map[string]*Job),
	}
}

// create registers a new pending job and returns its ID.
func (t *jobTracker) create(repoURL string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.jobs[id] = &Job{
		ID:             id,
		RepoURL:        repoURL,
		State:          JobStatePending,
		StartedAtMilli: time.Now().UnixMilli(),
	}
	return id
}

// get returns a copy of the job, so callers never see mid-update state.
func (t *jobTracker) get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// update applies fn to the job under the write lock.
func (t *jobTracker) update(id string, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if job, ok := t.jobs[id]; ok {
		fn(job)
	}
}

// finish moves the job to a terminal state.
func (t *jobTracker) finish(id string, state JobState, errMsg string) {
	t.update(id, func(job *Job) {
		job.State = state
		job.Error = errMsg
		job.FinishedAtMilli = time.Now().UnixMilli()
	})
}
