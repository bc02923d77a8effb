package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"codesift.app/codesift/common/logger"
)

// FetchError reports that no usable snapshot could be produced: the source
// was unreachable, the revision does not exist, or nothing survived
// filtering. Callers map it to a client error rather than a server fault.
type FetchError struct {
	RepoPath string
	Revision string
	Reason   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s@%s: %s: %v", e.RepoPath, e.Revision, e.Reason, e.Err)
	}
	return fmt.Sprintf("fetching %s@%s: %s", e.RepoPath, e.Revision, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Collector produces a Snapshot of a repository at a revision. Each Fetch
// works in its own temporary directory, so concurrent calls with different
// repositories never interfere.
type Collector struct {
	runner CommandRunner
}

func NewCollector(runner CommandRunner) *Collector {
	if runner == nil {
		runner = ExecCommandRunner{}
	}
	return &Collector{runner: runner}
}

// Fetch materializes repoRef at revision into a disposable working copy and
// reads every recognized source file into a Snapshot. A revision of "" or
// "HEAD" means the current state. The working copy is removed on every exit
// path, success or failure.
func (c *Collector) Fetch(ctx context.Context, repoRef, revision string) (Snapshot, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RepoPath:  logger.Ptr(repoRef),
		Component: "codesift.snapshot.collector",
	})

	slog.InfoContext(ctx, "fetching repository", "revision", revision)

	tempDir, err := os.MkdirTemp("", "codesift-checkout-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := c.materialize(ctx, repoRef, tempDir); err != nil {
		return nil, err
	}

	if revision != "" && revision != "HEAD" {
		out, err := c.runner.Run(ctx, Command{
			Name: "git",
			Args: []string{"checkout", revision},
			Dir:  tempDir,
		})
		if err != nil {
			return nil, &FetchError{
				RepoPath: repoRef,
				Revision: revision,
				Reason:   fmt.Sprintf("checkout failed: %s", strings.TrimSpace(string(out))),
				Err:      err,
			}
		}
	}

	snap, err := c.collectFiles(ctx, tempDir)
	if err != nil {
		return nil, err
	}

	if len(snap) == 0 {
		return nil, &FetchError{
			RepoPath: repoRef,
			Revision: revision,
			Reason:   "no source files found after filtering",
		}
	}

	slog.InfoContext(ctx, "fetched repository snapshot", "files", len(snap))
	return snap, nil
}

func isRemoteRef(repoRef string) bool {
	return strings.HasPrefix(repoRef, "http://") ||
		strings.HasPrefix(repoRef, "https://") ||
		strings.HasPrefix(repoRef, "git@")
}

func (c *Collector) materialize(ctx context.Context, repoRef, dest string) error {
	if isRemoteRef(repoRef) {
		out, err := c.runner.Run(ctx, Command{
			Name: "git",
			Args: []string{"clone", "--depth", "1", repoRef, dest},
		})
		if err != nil {
			return &FetchError{
				RepoPath: repoRef,
				Reason:   fmt.Sprintf("clone failed: %s", strings.TrimSpace(string(out))),
				Err:      err,
			}
		}
		return nil
	}

	info, err := os.Stat(repoRef)
	if err != nil || !info.IsDir() {
		return &FetchError{
			RepoPath: repoRef,
			Reason:   "local path does not exist or is not a directory",
			Err:      err,
		}
	}
	if err := copyTree(repoRef, dest); err != nil {
		return &FetchError{
			RepoPath: repoRef,
			Reason:   "copying local repository",
			Err:      err,
		}
	}
	return nil
}

// collectFiles walks the working copy and reads recognized source files.
// Per-file read errors are warnings, not failures: a single unreadable file
// must not sink the whole run.
func (c *Collector) collectFiles(ctx context.Context, root string) (Snapshot, error) {
	snap := Snapshot{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && isSkippedDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}

		if !isSourceFile(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			slog.WarnContext(ctx, "could not read file", "path", rel, "error", err)
			return nil
		}

		if strings.TrimSpace(string(content)) == "" {
			return nil
		}

		snap[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking working copy: %w", err)
	}

	return snap, nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			// Mirror the walk policy: skip what we cannot read.
			return nil
		}
		return os.WriteFile(target, data, 0o644)
	})
}
