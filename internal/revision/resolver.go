package revision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/efebarandurmaz/lineage/internal/vcs"
)

// DefaultRevision is used when no other source yields a revision.
const DefaultRevision = "HEAD"

// Options selects where revisions come from. All sources are combined in the
// order changelog, versions file, explicit list.
type Options struct {
	Explicit     []string
	VersionsFile string
	Changelog    string
	Minors       int
	Channel      Channel
	Announcement string
	TagPattern   string
}

// Resolver turns Options into a chronological revision list.
type Resolver struct {
	Repo   vcs.Repository
	Logger *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve collects candidate revisions, drops duplicates keeping the first
// occurrence, falls back to HEAD when nothing is left, and sorts the result
// by commit time.
func (r *Resolver) Resolve(ctx context.Context, opts Options) ([]string, error) {
	var candidates []string

	if opts.Changelog != "" {
		fromLog, err := r.fromChangelogFile(ctx, opts)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, fromLog...)
	}
	if opts.VersionsFile != "" {
		lines, err := readLines(opts.VersionsFile)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, lines...)
	}
	candidates = append(candidates, opts.Explicit...)

	revs := Dedup(candidates)
	if len(revs) == 0 {
		revs = []string{DefaultRevision}
	}
	return r.Sort(ctx, revs), nil
}

func (r *Resolver) fromChangelogFile(ctx context.Context, opts Options) ([]string, error) {
	data, err := os.ReadFile(opts.Changelog)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger().Warn("changelog not found, skipping", "path", opts.Changelog)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read changelog: %w", err)
	}
	return r.FromChangelog(ctx, string(data), opts)
}

// FromChangelog maps each release announcement in text to its latest tag.
// Minors without a matching tag are skipped.
func (r *Resolver) FromChangelog(ctx context.Context, text string, opts Options) ([]string, error) {
	pattern := opts.Announcement
	if pattern == "" {
		pattern = DefaultAnnouncement
	}
	announcement, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("announcement pattern: %w", err)
	}
	matcher, err := NewTagMatcher(opts.TagPattern)
	if err != nil {
		return nil, err
	}
	channel := opts.Channel
	if channel == "" {
		channel = ChannelBoth
	}

	minors := FilterMinors(ParseChangelog(text, announcement), channel, opts.Minors)
	if len(minors) == 0 {
		return nil, nil
	}
	tags, err := r.Repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	var revs []string
	for _, m := range minors {
		tag, ok := matcher.Latest(tags, m)
		if !ok {
			r.logger().Debug("no tag for release", "minor", m.Label, "channel", m.Channel)
			continue
		}
		revs = append(revs, tag)
	}
	return revs, nil
}

// Sort orders revs by commit time, oldest first. Ties keep their input order.
// A revision whose time cannot be read sorts as the epoch.
func (r *Resolver) Sort(ctx context.Context, revs []string) []string {
	type dated struct {
		rev string
		ts  int64
	}
	items := make([]dated, len(revs))
	for i, rev := range revs {
		items[i].rev = rev
		when, err := r.Repo.CommitTime(ctx, rev)
		if err != nil {
			r.logger().Warn("commit time unavailable", "revision", rev, "error", err)
			continue
		}
		items[i].ts = when.Unix()
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ts < items[j].ts })

	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.rev
	}
	return out
}

// Dedup removes blank and repeated revisions, keeping first occurrences.
func Dedup(revs []string) []string {
	seen := make(map[string]bool, len(revs))
	var out []string
	for _, rev := range revs {
		rev = strings.TrimSpace(rev)
		if rev == "" || seen[rev] {
			continue
		}
		seen[rev] = true
		out = append(out, rev)
	}
	return out
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open versions file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read versions file: %w", err)
	}
	return lines, nil
}
