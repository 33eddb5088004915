package macro

import (
	"strings"
	"unicode/utf8"
)

// Unquote decodes a literal argument. A quoted string has its escapes
// resolved; a raw string has only its delimiters removed. Adjacent literals
// separated by whitespace, comments or line continuations are concatenated.
// Anything else is returned trimmed and unchanged.
func Unquote(arg string) string {
	s := strings.TrimSpace(arg)
	if s == "" {
		return s
	}

	var b strings.Builder
	lx := lexer{text: s}
	for lx.more() {
		tok, _ := lx.next()
		lit := s[tok.start:tok.end]
		switch {
		case tok.comment:
			continue
		case !tok.literal && isSpace(lit[0]):
			continue
		case !tok.literal && lit[0] == '\\' && lineBreakAt(s, tok.end):
			continue
		case !tok.literal:
			// An encoding prefix belongs to the literal that follows it.
			if isPrefixByte(lit[0]) && prefixOfLiteral(s, tok.start) {
				continue
			}
			return s
		}
		body, ok := literalBody(lit)
		if !ok {
			return s
		}
		b.WriteString(body)
	}
	return b.String()
}

func lineBreakAt(s string, i int) bool {
	return strings.HasPrefix(s[i:], "\n") || strings.HasPrefix(s[i:], "\r\n")
}

func isPrefixByte(c byte) bool { return c == 'u' || c == 'U' || c == 'L' || c == '8' }

// prefixOfLiteral reports whether the byte at i is part of an encoding prefix
// immediately followed by a quote.
func prefixOfLiteral(s string, i int) bool {
	j := i
	for j < len(s) && isPrefixByte(s[j]) {
		j++
	}
	return j < len(s) && (s[j] == '"' || (s[j] == 'R' && j+1 < len(s) && s[j+1] == '"'))
}

func literalBody(lit string) (string, bool) {
	if strings.HasPrefix(lit, `R"`) {
		open := strings.IndexByte(lit, '(')
		if open < 0 {
			return "", false
		}
		tag := lit[2:open]
		term := ")" + tag + `"`
		if !strings.HasSuffix(lit, term) || len(lit) < open+1+len(term) {
			return "", false
		}
		return lit[open+1 : len(lit)-len(term)], true
	}
	if len(lit) >= 2 && lit[0] == '"' && lit[len(lit)-1] == '"' {
		return Unescape(lit[1 : len(lit)-1]), true
	}
	return "", false
}

// Unescape resolves C escape sequences and removes backslash-newline splices.
// Unknown escapes keep their backslash.
func Unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '"', '\'', '?':
			b.WriteByte(e)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v, n := 0, 0
			for n < 3 && i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '7' {
				v = v*8 + int(s[i+n]-'0')
				n++
			}
			b.WriteByte(byte(v))
			i += n - 1
		case 'x':
			v, n := 0, 0
			for i+1+n < len(s) && isHex(s[i+1+n]) {
				v = v*16 + hexVal(s[i+1+n])
				n++
			}
			if n == 0 {
				b.WriteString(`\x`)
				continue
			}
			b.WriteByte(byte(v))
			i += n
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if r, ok := hexRune(s, i+1, width); ok {
				b.WriteRune(r)
				i += width
				continue
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}

func hexRune(s string, from, width int) (rune, bool) {
	if from+width > len(s) {
		return 0, false
	}
	var r rune
	for _, c := range []byte(s[from : from+width]) {
		if !isHex(c) {
			return 0, false
		}
		r = r*16 + rune(hexVal(c))
	}
	return r, utf8.ValidRune(r)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	}
	return int(c-'A') + 10
}
