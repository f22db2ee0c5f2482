package engine

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/franksops/grabsync/provider"
)

// Walker traverses a content tree iteratively to push TransferJobs to a channel.
// It avoids deep recursion to prevent stack overflows on very deep trees.
type Walker struct {
	source   provider.Provider
	jobChan  JobChannel
	excludes []string
	after    time.Time
}

// WalkerOption configures a Walker.
type WalkerOption func(*Walker)

// WithExcludes skips the given paths and everything below them.
func WithExcludes(paths ...string) WalkerOption {
	return func(w *Walker) {
		for _, p := range paths {
			w.excludes = append(w.excludes, path.Clean(p))
		}
	}
}

// WithModifiedAfter only emits files modified strictly after t.
// Directories are always descended.
func WithModifiedAfter(t time.Time) WalkerOption {
	return func(w *Walker) {
		w.after = t
	}
}

// NewWalker creates a new iterative content walker.
func NewWalker(src provider.Provider, jobChan JobChannel, opts ...WalkerOption) *Walker {
	w := &Walker{
		source:  src,
		jobChan: jobChan,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk emits one job per file below root and returns the number emitted.
func (w *Walker) Walk(ctx context.Context, root string, executionID int64) (int, error) {
	root = path.Clean(root)
	if w.excluded(root) {
		return 0, nil
	}

	stat, err := w.source.Stat(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("failed to stat source %s: %w", root, err)
	}

	if !stat.IsDir() {
		if !w.changed(stat) {
			return 0, nil
		}
		return 1, w.emit(ctx, root, stat, executionID)
	}

	emitted := 0
	stack := []string{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := w.source.List(ctx, dir)
		if err != nil {
			return emitted, fmt.Errorf("failed to list directory %s: %w", dir, err)
		}

		for _, entry := range entries {
			p := path.Join(dir, entry.Name())
			if w.excluded(p) {
				continue
			}
			if entry.IsDir() {
				stack = append(stack, p)
				continue
			}
			if !w.changed(entry) {
				continue
			}
			if err := w.emit(ctx, p, entry, executionID); err != nil {
				return emitted, err
			}
			emitted++
		}
	}

	return emitted, nil
}

func (w *Walker) emit(ctx context.Context, p string, info provider.FileInfo, executionID int64) error {
	job := TransferJob{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		Path:        p,
		FileInfo:    info,
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case w.jobChan <- job:
		return nil
	}
}

func (w *Walker) excluded(p string) bool {
	for _, ex := range w.excludes {
		if p == ex || strings.HasPrefix(p, ex+"/") {
			return true
		}
	}
	return false
}

// changed reports whether info passes the delta cutoff. Files without a
// modification time are always transferred.
func (w *Walker) changed(info provider.FileInfo) bool {
	if w.after.IsZero() || info.ModTime().IsZero() {
		return true
	}
	return info.ModTime().After(w.after)
}
