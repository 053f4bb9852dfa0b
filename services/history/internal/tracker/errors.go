package tracker

import (
	"sort"
	"strings"
)

// ValidationError reports invalid input, detected before any storage access.
// Violations maps field names to human-readable reasons.
type ValidationError struct {
	Violations map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid progress input: " + strings.Join(fields, ", ")
}
