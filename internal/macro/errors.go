package macro

import (
	"errors"
	"fmt"
)

// ErrStructural is the class of errors raised when a block cannot be scanned
// safely. Test with errors.Is.
var ErrStructural = errors.New("structural parse error")

// UnbalancedError reports an opening delimiter with no matching closer.
type UnbalancedError struct {
	Offset int
	Delim  byte
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("unbalanced %q starting at offset %d", e.Delim, e.Offset)
}

func (e *UnbalancedError) Is(target error) bool { return target == ErrStructural }

// UnterminatedError reports a literal or block comment that runs to the end of
// the text.
type UnterminatedError struct {
	Offset  int
	Literal string
}

func (e *UnterminatedError) Error() string {
	return fmt.Sprintf("unterminated %s starting at offset %d", e.Literal, e.Offset)
}

func (e *UnterminatedError) Is(target error) bool { return target == ErrStructural }
