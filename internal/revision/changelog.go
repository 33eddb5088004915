package revision

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Channel is a release line.
type Channel string

const (
	ChannelStable Channel = "stable"
	ChannelLTS    Channel = "lts"
	ChannelBoth   Channel = "both"
)

// ParseChannel validates a channel filter. The empty string means both.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(s)) {
	case "", ChannelBoth:
		return ChannelBoth, nil
	case ChannelStable:
		return ChannelStable, nil
	case ChannelLTS:
		return ChannelLTS, nil
	}
	return "", fmt.Errorf("unknown channel %q (want stable, lts or both)", s)
}

// Defaults for reading release announcements and matching tags. In the tag
// pattern {minor} and {channel} are replaced by the quoted minor label and
// channel; the two capture groups are compared numerically.
const (
	DefaultAnnouncement = `ClickHouse release\s+v(\d+\.\d+)(?:\s+LTS)?`
	DefaultTagPattern   = `^{minor}\.(\d+)\.(\d+)-({channel})$`
)

var ltsMarker = regexp.MustCompile(`\bLTS\b`)

// Minor is one release announcement: a minor version label such as "v25.8"
// and the channel it was released on.
type Minor struct {
	Label   string
	Channel Channel
}

// ParseChangelog scans text for release announcements in document order. The
// first capture group of announcement is the version number. A line
// containing the word LTS marks the release as long-term support.
func ParseChangelog(text string, announcement *regexp.Regexp) []Minor {
	var minors []Minor
	for _, m := range announcement.FindAllStringSubmatchIndex(text, -1) {
		if len(m) < 4 || m[2] < 0 {
			continue
		}
		lineStart := strings.LastIndexByte(text[:m[0]], '\n') + 1
		lineEnd := strings.IndexByte(text[m[1]:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += m[1]
		}
		channel := ChannelStable
		if ltsMarker.MatchString(text[lineStart:lineEnd]) {
			channel = ChannelLTS
		}
		minors = append(minors, Minor{Label: "v" + text[m[2]:m[3]], Channel: channel})
	}
	return minors
}

// FilterMinors keeps minors on channel, then at most limit of them from the
// top of the changelog. A limit of zero or less keeps all.
func FilterMinors(minors []Minor, channel Channel, limit int) []Minor {
	var out []Minor
	for _, m := range minors {
		if channel == ChannelBoth || m.Channel == channel {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TagMatcher selects release tags for a minor version.
type TagMatcher struct {
	pattern string
}

// NewTagMatcher validates pattern. An empty pattern selects DefaultTagPattern.
func NewTagMatcher(pattern string) (*TagMatcher, error) {
	if pattern == "" {
		pattern = DefaultTagPattern
	}
	probe := expand(pattern, Minor{Label: "v1.1", Channel: ChannelStable})
	re, err := regexp.Compile(probe)
	if err != nil {
		return nil, fmt.Errorf("tag pattern: %w", err)
	}
	if re.NumSubexp() < 2 {
		return nil, fmt.Errorf("tag pattern %q: need two numeric capture groups", pattern)
	}
	return &TagMatcher{pattern: pattern}, nil
}

func expand(pattern string, m Minor) string {
	return strings.NewReplacer(
		"{minor}", regexp.QuoteMeta(m.Label),
		"{channel}", regexp.QuoteMeta(string(m.Channel)),
	).Replace(pattern)
}

// Latest returns the tag for m with the highest numeric patch pair.
func (tm *TagMatcher) Latest(tags []string, m Minor) (string, bool) {
	re, err := regexp.Compile(expand(tm.pattern, m))
	if err != nil {
		return "", false
	}
	type candidate struct {
		a, b int
		tag  string
	}
	var cands []candidate
	for _, tag := range tags {
		sub := re.FindStringSubmatch(tag)
		if sub == nil {
			continue
		}
		a, errA := strconv.Atoi(sub[1])
		b, errB := strconv.Atoi(sub[2])
		if errA != nil || errB != nil {
			continue
		}
		cands = append(cands, candidate{a, b, tag})
	}
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].a != cands[j].a {
			return cands[i].a < cands[j].a
		}
		if cands[i].b != cands[j].b {
			return cands[i].b < cands[j].b
		}
		return cands[i].tag < cands[j].tag
	})
	return cands[len(cands)-1].tag, true
}
