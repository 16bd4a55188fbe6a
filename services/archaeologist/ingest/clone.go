package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
)

// DefaultCloneTimeout bounds how long a clone may run.
const DefaultCloneTimeout = 5 * time.Minute

// ValidateRepoURL checks that a repository URL uses a supported scheme.
//
// Accepted forms: https://, http://, git@, and ssh://. Local paths go
// through IngestDirectory instead, which keeps the API surface from
// reading arbitrary filesystem locations by URL.
func ValidateRepoURL(repoURL string) error {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return fmt.Errorf("repository URL must not be empty")
	}

	for _, prefix := range []string{"https://", "http://", "git@", "ssh://"} {
		if strings.HasPrefix(repoURL, prefix) {
			return nil
		}
	}

	return fmt.Errorf("unsupported repository URL %q: expected https://, http://, git@, or ssh://", repoURL)
}

// cloneRepository shallow-clones the repository into a fresh directory
// under workDir and returns the checkout path.
//
// The clone is depth-1: ingestion only reads the working tree, never
// history. The caller owns cleanup of the returned directory.
func cloneRepository(ctx context.Context, workDir, repoURL string, timeout time.Duration) (string, error) {
	if err := ValidateRepoURL(repoURL); err != nil {
		return "", err
	}

	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp(workDir, "clone-*")
	if err != nil {
		return "", fmt.Errorf("create clone directory: %w", err)
	}

	slog.Info("cloning repository",
		slog.String("url", repoURL),
		slog.String("dir", dir))

	start := time.Now()
	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: 1,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("clone %s: %w", repoURL, err)
	}

	slog.Info("clone complete",
		slog.String("url", repoURL),
		slog.Duration("elapsed", time.Since(start)))

	return filepath.Clean(dir), nil
}
