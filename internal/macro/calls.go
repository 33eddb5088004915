package macro

// Call is one invocation of a keyword with its top-level arguments.
type Call struct {
	Offset int
	Args   []string
}

// Calls returns every invocation of keyword in text in source order.
// Comments are skipped. A structural error in any call aborts the scan.
func Calls(text, keyword string) ([]Call, error) {
	var calls []Call
	i := 0
	for i < len(text) {
		next, ok, err := skipComment(text, i)
		if err != nil {
			return nil, err
		}
		if ok {
			i = next
			continue
		}
		open, ok := callAt(text, i, keyword)
		if !ok {
			i++
			continue
		}
		call, end, err := Balanced(text, open)
		if err != nil {
			return nil, err
		}
		calls = append(calls, Call{Offset: i, Args: Split(call)})
		i = end
	}
	return calls, nil
}
