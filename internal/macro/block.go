package macro

import (
	"regexp"
	"sync"
)

// DefaultTerminator is the macro whose definition closes a settings block.
const DefaultTerminator = "OBSOLETE_SETTINGS"

var (
	nextDefine = regexp.MustCompile(`(?m)^#define\s+\w+`)

	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

// LocateBlock returns the body of the macro definition named name: the text
// after its signature line (which must end in a line continuation) up to the
// terminator's definition or the next #define, whichever comes first. The
// second result is false when the macro is not defined in source.
func LocateBlock(source, name, terminator string) (string, bool) {
	sig := cached(`(?m)^#define\s+` + regexp.QuoteMeta(name) + `\s*\(.*?\)\s*\\\s*$`)
	loc := sig.FindStringIndex(source)
	if loc == nil {
		return "", false
	}
	rest := source[loc[1]:]

	end := len(rest)
	if m := nextDefine.FindStringIndex(rest); m != nil {
		end = m[0]
	}
	if terminator != "" {
		term := cached(`(?m)^#define\s+` + regexp.QuoteMeta(terminator) + `\b`)
		if m := term.FindStringIndex(rest); m != nil && m[0] < end {
			end = m[0]
		}
	}
	return rest[:end], true
}

func cached(expr string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	re, ok := patterns[expr]
	if !ok {
		re = regexp.MustCompile(expr)
		patterns[expr] = re
	}
	return re
}
