package macro

import "strings"

// Split returns the top-level comma separated arguments of a call body. If the
// body is wrapped in a matching delimiter pair, the pair is stripped first.
// Each argument is trimmed. Depth is tracked separately for (), {} and [],
// and a stray closer never takes depth below zero. Literals and comments are
// opaque. Split never fails: an unterminated literal swallows the rest of the
// body.
func Split(call string) []string {
	body := call
	if len(body) >= 2 && closerOf(body[0]) != 0 && closerOf(body[0]) == body[len(body)-1] {
		body = body[1 : len(body)-1]
	}

	var (
		args  []string
		depth [3]int
		from  int
	)
	lx := lexer{text: body}
	for lx.more() {
		tok, _ := lx.next()
		if tok.opaque() {
			continue
		}
		switch c := body[tok.start]; c {
		case '(', '{', '[':
			depth[bracketIndex(c)]++
		case ')', '}', ']':
			if k := bracketIndex(c); depth[k] > 0 {
				depth[k]--
			}
		case ',':
			if depth == [3]int{} {
				args = append(args, strings.TrimSpace(body[from:tok.start]))
				from = tok.end
			}
		}
	}
	if from < len(body) {
		args = append(args, strings.TrimSpace(body[from:]))
	}
	return args
}

func bracketIndex(c byte) int {
	switch c {
	case '(', ')':
		return 0
	case '{', '}':
		return 1
	}
	return 2
}
