// Package transform maps payloads between the gateway's canonical shape
// and each integration's wire shape. Transformers are registered by name
// at startup; optional capabilities are discovered by interface assertion.
package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when no transformer is registered under a name.
var ErrNotFound = errors.New("transformer not found")

// ErrNoReverse is returned when a transformer cannot map responses back.
var ErrNoReverse = errors.New("transformer has no reverse mapping")

// Payload is the unit of transformation. Values are whatever encoding/json
// produced; transformers must not assume deeper structure than they check.
type Payload = map[string]any

// Transformer maps a canonical payload to an integration's request shape.
// Every transformer must implement the forward direction.
type Transformer interface {
	Name() string
	Forward(ctx context.Context, in Payload) (Payload, error)
}

// ReverseTransformer optionally maps an integration response back to the
// canonical shape.
type ReverseTransformer interface {
	Reverse(ctx context.Context, in Payload) (Payload, error)
}

// Validator optionally checks a canonical payload before Forward runs.
// A non-nil error aborts the transformation.
type Validator interface {
	Validate(ctx context.Context, in Payload) error
}

// ValidationError marks a payload rejected by a transformer's Validator,
// so callers can map it to a client error rather than a server one.
type ValidationError struct {
	Transformer string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transformer %s: %s", e.Transformer, e.Reason)
}

// NewValidationError wraps a validation failure reason.
func NewValidationError(transformer, reason string) *ValidationError {
	return &ValidationError{Transformer: transformer, Reason: reason}
}

// fieldNames returns the sorted top-level keys of a payload. Payload values
// may hold credentials or PII, so logs only ever carry the keys.
func fieldNames(p Payload) []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
