package macro

import (
	"strings"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// Call shapes recognized inside a settings block. The alias form is matched
// first since it shares a prefix with the plain form.
const (
	KeywordAlias = "DECLARE_WITH_ALIAS"
	KeywordPlain = "DECLARE"
)

var shapes = []struct {
	keyword string
	minArgs int
	alias   bool
}{
	{KeywordAlias, 6, true},
	{KeywordPlain, 5, false},
}

// Parsed is the result of walking one block.
type Parsed struct {
	// Declarations in source order. Duplicate names are preserved.
	Declarations []ir.Declaration
	// Skipped counts recognized calls with too few arguments.
	Skipped int
}

// ParseDeclarations walks block left to right and returns one declaration per
// recognized call. Comments and unrecognized text between calls are skipped.
// A structural error aborts the whole block.
func ParseDeclarations(block string) (Parsed, error) {
	var out Parsed
	i := 0
	for i < len(block) {
		next, ok, err := skipComment(block, i)
		if err != nil {
			return Parsed{}, err
		}
		if ok {
			i = next
			continue
		}

		matched := false
		for _, sh := range shapes {
			open, ok := callAt(block, i, sh.keyword)
			if !ok {
				continue
			}
			matched = true
			call, end, err := Balanced(block, open)
			if err != nil {
				return Parsed{}, err
			}
			args := Split(call)
			if len(args) < sh.minArgs {
				out.Skipped++
			} else {
				out.Declarations = append(out.Declarations, declaration(args, sh.alias))
			}
			i = end
			break
		}
		if !matched {
			i++
		}
	}
	return out, nil
}

func declaration(args []string, alias bool) ir.Declaration {
	d := ir.Declaration{
		Type:    args[0],
		Name:    args[1],
		Default: args[2],
	}
	if alias {
		n := len(args)
		d.Description = Unquote(args[n-3])
		d.Flags = args[n-2]
		d.Alias = args[n-1]
		return d
	}
	d.Description = Unquote(args[3])
	d.Flags = args[4]
	return d
}

// callAt reports whether keyword starts a call at i and returns the offset of
// its opening parenthesis. The keyword must stand alone as an identifier.
func callAt(block string, i int, keyword string) (int, bool) {
	if !strings.HasPrefix(block[i:], keyword) {
		return 0, false
	}
	if i > 0 && isIdent(block[i-1]) {
		return 0, false
	}
	j := i + len(keyword)
	if j < len(block) && isIdent(block[j]) {
		return 0, false
	}
	for j < len(block) && isSpace(block[j]) {
		j++
	}
	if j >= len(block) || block[j] != '(' {
		return 0, false
	}
	return j, true
}

// skipComment returns the offset past a comment starting at i. A block
// comment without its closer is a structural error, since every later
// declaration would be lost with it.
func skipComment(text string, i int) (int, bool, error) {
	end, closed, ok := commentAt(text, i)
	if !ok {
		return 0, false, nil
	}
	if !closed {
		return 0, false, &UnterminatedError{Offset: i, Literal: "block comment"}
	}
	return end, true, nil
}
