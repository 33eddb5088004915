package vcs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Git reads revisions from a local git repository.
type Git struct {
	mu   sync.Mutex
	repo *git.Repository
}

// Open opens the repository containing path.
func Open(path string) (*Git, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Git{repo: repo}, nil
}

func (g *Git) Fetch(ctx context.Context, rev, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	commit, err := g.commit(rev)
	if err != nil {
		return "", err
	}
	file, err := commit.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", fmt.Errorf("%s:%s: %w", rev, path, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s:%s: %w", rev, path, err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s:%s: %w", rev, path, err)
	}
	return content, nil
}

func (g *Git) CommitTime(ctx context.Context, rev string) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	commit, err := g.commit(rev)
	if err != nil {
		return time.Time{}, err
	}
	return commit.Committer.When, nil
}

func (g *Git) ListTags(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	iter, err := g.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	sort.Strings(tags)
	return tags, nil
}

// commit resolves rev to a commit, peeling annotated tags.
func (g *Git) commit(rev string) (*object.Commit, error) {
	hash, err := g.repo.ResolveRevision(plumbing.Revision(rev))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("revision %s: %w", rev, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	commit, err := g.repo.CommitObject(*hash)
	if err == nil {
		return commit, nil
	}
	tag, tagErr := g.repo.TagObject(*hash)
	if tagErr != nil {
		return nil, fmt.Errorf("commit %s: %w", rev, err)
	}
	commit, err = tag.Commit()
	if err != nil {
		return nil, fmt.Errorf("peel tag %s: %w", rev, err)
	}
	return commit, nil
}
