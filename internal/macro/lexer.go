package macro

import (
	"fmt"
	"strings"
)

// Raw string tags are limited to 16 characters, and a character literal
// holds at most one escape sequence.
const (
	maxRawTag      = 16
	maxCharLiteral = 12
)

type state uint8

const (
	stateNormal state = iota
	stateString
	stateRawString
)

// token is one lexical unit: a whole literal, a whole comment, or a single
// byte of code.
type token struct {
	start, end int
	literal    bool
	comment    bool
}

// opaque reports whether delimiters inside the token must be ignored.
func (t token) opaque() bool { return t.literal || t.comment }

// lexer walks text treating string, raw string and character literals and
// comments as opaque tokens. A strict lexer fails on unterminated literals and
// block comments; a lenient one folds the rest of the text into the token.
type lexer struct {
	text   string
	pos    int
	strict bool
}

func (lx *lexer) more() bool { return lx.pos < len(lx.text) }

func (lx *lexer) next() (token, error) {
	start := lx.pos
	st := stateNormal
	var term string
	for {
		switch st {
		case stateNormal:
			if t, n, ok := rawStringAt(lx.text, lx.pos); ok {
				term = t
				lx.pos += n
				st = stateRawString
				continue
			}
			if end, ok := charLiteralEnd(lx.text, lx.pos); ok {
				lx.pos = end
				return token{start: start, end: end, literal: true}, nil
			}
			if end, closed, ok := commentAt(lx.text, lx.pos); ok {
				if !closed {
					return lx.unterminated(start, "block comment")
				}
				lx.pos = end
				return token{start: start, end: end, comment: true}, nil
			}
			if lx.text[lx.pos] == '"' {
				lx.pos++
				st = stateString
				continue
			}
			lx.pos++
			return token{start: start, end: lx.pos}, nil

		case stateString:
			if lx.pos >= len(lx.text) {
				return lx.unterminated(start, "string literal")
			}
			switch lx.text[lx.pos] {
			case '\\':
				lx.pos = min(lx.pos+2, len(lx.text))
			case '"':
				lx.pos++
				return token{start: start, end: lx.pos, literal: true}, nil
			default:
				lx.pos++
			}

		case stateRawString:
			k := strings.Index(lx.text[lx.pos:], term)
			if k < 0 {
				return lx.unterminated(start, "raw string literal")
			}
			lx.pos += k + len(term)
			return token{start: start, end: lx.pos, literal: true}, nil
		}
	}
}

func (lx *lexer) unterminated(start int, kind string) (token, error) {
	if lx.strict {
		return token{}, &UnterminatedError{Offset: start, Literal: kind}
	}
	lx.pos = len(lx.text)
	return token{start: start, end: lx.pos, literal: kind != "block comment", comment: kind == "block comment"}, nil
}

// Balanced returns the span of text from the opening delimiter at open through
// its matching closer, and the offset just past the closer. Only delimiters of
// the opener's kind are counted; literals never count.
func Balanced(text string, open int) (string, int, error) {
	if open < 0 || open >= len(text) || closerOf(text[open]) == 0 {
		return "", open, fmt.Errorf("offset %d: not an opening delimiter", open)
	}
	opener, closer := text[open], closerOf(text[open])

	lx := lexer{text: text, pos: open, strict: true}
	depth := 0
	for lx.more() {
		tok, err := lx.next()
		if err != nil {
			return "", open, err
		}
		if tok.opaque() {
			continue
		}
		switch text[tok.start] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return text[open:tok.end], tok.end, nil
			}
		}
	}
	return "", open, &UnbalancedError{Offset: open, Delim: opener}
}

func closerOf(c byte) byte {
	switch c {
	case '(':
		return ')'
	case '{':
		return '}'
	case '[':
		return ']'
	}
	return 0
}

// rawStringAt recognizes the opening of a raw string literal at i, optionally
// after an encoding prefix. It returns the terminator to search for and the
// length of the opening sequence.
func rawStringAt(text string, i int) (string, int, bool) {
	if i+1 >= len(text) || text[i] != 'R' || text[i+1] != '"' {
		return "", 0, false
	}
	if i > 0 && isIdent(text[i-1]) && !encodingPrefixBefore(text, i) {
		return "", 0, false
	}
	for j := i + 2; j < len(text) && j <= i+2+maxRawTag; j++ {
		switch c := text[j]; {
		case c == '(':
			return ")" + text[i+2:j] + `"`, j + 1 - i, true
		case c == ')' || c == '\\' || c == '"' || isSpace(c):
			return "", 0, false
		}
	}
	return "", 0, false
}

func encodingPrefixBefore(text string, i int) bool {
	for _, p := range [...]string{"u8", "u", "U", "L"} {
		start := i - len(p)
		if start >= 0 && text[start:i] == p && (start == 0 || !isIdent(text[start-1])) {
			return true
		}
	}
	return false
}

// commentAt recognizes a comment starting at i and returns its end. A line
// comment stops before its newline. closed is false for a block comment
// without its "*/".
func commentAt(text string, i int) (end int, closed, ok bool) {
	if i+1 >= len(text) || text[i] != '/' {
		return 0, false, false
	}
	switch text[i+1] {
	case '*':
		k := strings.Index(text[i+2:], "*/")
		if k < 0 {
			return len(text), false, true
		}
		return i + 2 + k + 2, true, true
	case '/':
		k := strings.IndexByte(text[i:], '\n')
		if k < 0 {
			return len(text), true, true
		}
		return i + k, true, true
	}
	return 0, false, false
}

// charLiteralEnd returns the end of a character literal such as ',' or '\''
// starting at i. An apostrophe after a digit or letter is a digit separator
// or part of an identifier, not a literal.
func charLiteralEnd(text string, i int) (int, bool) {
	if text[i] != '\'' || (i > 0 && isIdent(text[i-1])) {
		return 0, false
	}
	for j := i + 1; j < len(text) && j <= i+maxCharLiteral; j++ {
		switch text[j] {
		case '\\':
			j++
		case '\'':
			if j == i+1 {
				return 0, false
			}
			return j + 1, true
		case '\n':
			return 0, false
		}
	}
	return 0, false
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
