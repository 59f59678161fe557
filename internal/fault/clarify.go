package fault

import "strings"

// ClarificationError signals that the request lacked required parameters.
// It is a normal outcome of intake, not a run failure.
type ClarificationError struct {
	Missing []string
}

func (e *ClarificationError) Error() string {
	return "clarification needed: missing " + strings.Join(e.Missing, ", ")
}

// NeedsClarification returns a ClarificationError naming the missing fields.
func NeedsClarification(missing ...string) *ClarificationError {
	return &ClarificationError{Missing: missing}
}
