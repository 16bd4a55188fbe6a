package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/archaeology-ai/archaeologist/services/archaeologist/ast"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/graph"
	"github.com/archaeology-ai/archaeologist/services/archaeologist/store"
)

var tracer = otel.Tracer("archaeologist.ingest")

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithWorkers sets the number of concurrent file parsers.
// Defaults to runtime.NumCPU().
func WithWorkers(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithWorkDir sets the directory clones are checked out under.
// Defaults to the OS temp directory.
func WithWorkDir(dir string) ServiceOption {
	return func(s *Service) {
		if dir != "" {
			s.workDir = dir
		}
	}
}

// WithCloneTimeout bounds how long a clone may run.
func WithCloneTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.cloneTimeout = d
		}
	}
}

// Service runs ingestion jobs: acquire source, parse, build, persist.
//
// Description:
//
//	Service owns the full pipeline from repository URL (or local
//	directory) to persisted graph. Files parse concurrently under a
//	bounded worker pool; the graph build and persist steps run after
//	all parses complete, because CALLS resolution needs repository-wide
//	visibility. Jobs are tracked in memory and queryable by ID.
//
// Thread Safety:
//
//	Service is safe for concurrent use; multiple jobs may run at once
//	against the same store thanks to idempotent upserts.
type Service struct {
	registry *ast.Registry
	builder  *graph.Builder
	st       store.GraphStore
	jobs     *jobTracker

	workers      int
	workDir      string
	cloneTimeout time.Duration
}

// NewService creates an ingestion service over the given store.
func NewService(st store.GraphStore, opts ...ServiceOption) *Service {
	s := &Service{
		registry:     ast.DefaultRegistry(),
		builder:      graph.NewBuilder(),
		st:           st,
		jobs:         newJobTracker(),
		workers:      runtime.NumCPU(),
		workDir:      os.TempDir(),
		cloneTimeout: DefaultCloneTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Job returns a snapshot of the job with the given ID.
func (s *Service) Job(id string) (Job, bool) {
	return s.jobs.get(id)
}

// StartIngestion validates the URL, registers a job, and runs the
// ingestion in the background. Returns the job ID for status polling.
//
// The background run is detached from the caller's context: an HTTP
// request finishing must not cancel a half-done ingestion.
func (s *Service) StartIngestion(repoURL string) (string, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		return "", err
	}

	jobID := s.jobs.create(repoURL)

	go func() {
		if err := s.runClone(context.Background(), jobID, repoURL); err != nil {
			slog.Error("ingestion failed",
				slog.String("job_id", jobID),
				slog.String("repo_url", repoURL),
				slog.Any("error", err))
			s.jobs.finish(jobID, JobStateFailed, err.Error())
		}
	}()

	return jobID, nil
}

// IngestRepository clones and ingests a repository synchronously.
// Returns the finished job snapshot.
func (s *Service) IngestRepository(ctx context.Context, repoURL string) (Job, error) {
	jobID := s.jobs.create(repoURL)

	if err := s.runClone(ctx, jobID, repoURL); err != nil {
		s.jobs.finish(jobID, JobStateFailed, err.Error())
		job, _ := s.jobs.get(jobID)
		return job, err
	}

	job, _ := s.jobs.get(jobID)
	return job, nil
}

// IngestDirectory ingests an already-checked-out tree synchronously.
// Returns the finished job snapshot.
func (s *Service) IngestDirectory(ctx context.Context, root string) (Job, error) {
	jobID := s.jobs.create(root)

	if err := s.runDirectory(ctx, jobID, root); err != nil {
		s.jobs.finish(jobID, JobStateFailed, err.Error())
		job, _ := s.jobs.get(jobID)
		return job, err
	}

	job, _ := s.jobs.get(jobID)
	return job, nil
}

// runClone fetches the repository, ingests the checkout, and cleans up.
func (s *Service) runClone(ctx context.Context, jobID, repoURL string) error {
	s.jobs.update(jobID, func(j *Job) { j.State = JobStateCloning })

	dir, err := cloneRepository(ctx, s.workDir, repoURL, s.cloneTimeout)
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	return s.runDirectory(ctx, jobID, dir)
}

// runDirectory executes parse, build, and persist for a checked-out tree.
func (s *Service) runDirectory(ctx context.Context, jobID, root string) error {
	ctx, span := tracer.Start(ctx, "ingest.Run",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	start := time.Now()

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	s.jobs.update(jobID, func(j *Job) { j.State = JobStateParsing })

	paths, err := collectFiles(root, s.registry)
	if err != nil {
		return err
	}

	results, skipped, err := s.parseAll(ctx, root, paths)
	if err != nil {
		return err
	}

	s.jobs.update(jobID, func(j *Job) {
		j.FilesParsed = len(results)
		j.FilesSkipped = skipped
	})

	// Completion order is nondeterministic under the worker pool;
	// sort so graph output is reproducible.
	graph.SortResults(results)

	built, err := s.builder.Build(ctx, results)
	if err != nil {
		return err
	}

	s.jobs.update(jobID, func(j *Job) {
		j.State = JobStatePersisting
		j.Stats = built.Stats
	})

	if err := s.persist(ctx, built); err != nil {
		return err
	}

	s.jobs.finish(jobID, JobStateCompleted, "")

	slog.Info("ingestion complete",
		slog.String("job_id", jobID),
		slog.Int("files_parsed", len(results)),
		slog.Int("files_skipped", skipped),
		slog.Int("entities", len(built.Entities)),
		slog.Int("relationships", len(built.Relationships)),
		slog.Duration("elapsed", time.Since(start)))

	return nil
}

// parseAll parses files concurrently under a bounded worker pool.
//
// A file that fails to read or parse is logged and skipped rather than
// failing the job: one unreadable file should not cost the other ten
// thousand their graph. Context cancellation does abort the job.
func (s *Service) parseAll(ctx context.Context, root string, paths []string) ([]*ast.FileResult, int, error) {
	var (
		mu      sync.Mutex
		results = make([]*ast.FileResult, 0, len(paths))
		skipped int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			parser, ok := s.registry.GetByExtension(filepath.Ext(rel))
			if !ok {
				return nil
			}

			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				slog.Warn("skipping unreadable file",
					slog.String("file", rel),
					slog.Any("error", err))
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			result, err := parser.Parse(ctx, content, rel)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				slog.Warn("skipping unparseable file",
					slog.String("file", rel),
					slog.Any("error", err))
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}

			if result.HasErrors() {
				slog.Debug("partial parse",
					slog.String("file", rel),
					slog.Any("errors", result.Errors))
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("parse files: %w", err)
	}

	return results, skipped, nil
}

// persist writes the built graph to the store: schema, then nodes,
// then edges. Edge upserts assume their endpoints exist, so order matters.
func (s *Service) persist(ctx context.Context, built *graph.BuildResult) error {
	if err := s.st.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := s.st.UpsertEntities(ctx, built.Entities); err != nil {
		return err
	}

	if err := s.st.UpsertRelationships(ctx, built.Relationships); err != nil {
		return err
	}

	return nil
}
