package vcs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a revision or a file at a revision is absent.
// Callers treat it as a normal outcome.
var ErrNotFound = errors.New("not found")

// Repository is read-only access to a version-controlled source tree.
type Repository interface {
	// Fetch returns the content of path at rev.
	Fetch(ctx context.Context, rev, path string) (string, error)
	// CommitTime returns the committer timestamp of rev.
	CommitTime(ctx context.Context, rev string) (time.Time, error)
	// ListTags returns all tag names.
	ListTags(ctx context.Context) ([]string, error)
}
