package classifier

import (
	"fmt"
	"time"
)

// PredictionError means the model failed or returned an unusable output.
type PredictionError struct {
	Reason string
	Err    error
}

func (e *PredictionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model prediction failed: %s: %v", e.Reason, e.Err)
	}
	return "model prediction failed: " + e.Reason
}

func (e *PredictionError) Unwrap() error { return e.Err }

// TimeoutError means the model did not answer in time.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model prediction timed out after %s", e.After)
}
