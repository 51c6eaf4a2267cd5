package nutrition

import (
	"errors"
	"fmt"
)

// ErrMalformedState reports a contract violation between pipeline stages.
var ErrMalformedState = errors.New("malformed nutrition state")

// FieldNotFoundError reports a target field whose label did not match.
type FieldNotFoundError struct {
	Field Field
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s: not found", e.Field)
}

// NumericParseError reports a field that matched textually but whose value
// could not be turned into a usable number.
type NumericParseError struct {
	Field  Field
	Raw    string
	Reason string
}

func (e *NumericParseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: value %q %s", e.Field, e.Raw, e.Reason)
	}
	return fmt.Sprintf("%s: value %q is not numeric", e.Field, e.Raw)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedState, fmt.Sprintf(format, args...))
}
