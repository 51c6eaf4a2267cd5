package preprocess

import "fmt"

// InvalidImageError reports an input image that is nil, empty or cannot be
// decoded. It aborts processing before OCR is attempted.
type InvalidImageError struct {
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *InvalidImageError) Unwrap() error { return e.Err }
