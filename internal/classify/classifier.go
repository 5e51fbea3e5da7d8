// Package classify wraps the hosted image-classification collaborator.
package classify

import (
	"context"
	"fmt"
)

// Prediction is a single classification result.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier turns one encoded still image into a prediction. Implementations
// hold no per-session state and are safe for concurrent use.
type Classifier interface {
	Predict(ctx context.Context, image []byte) (Prediction, error)
}

// InferenceError indicates a single frame could not be decoded or classified.
// It is scoped to that frame; the caller keeps the session alive.
type InferenceError struct {
	Reason string
	Err    error
}

func (e *InferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("inference failed: %s", e.Reason)
}

func (e *InferenceError) Unwrap() error { return e.Err }
