package transform

import (
	"context"
	"fmt"

	"github.com/lockbridge/gateway/pkg/slogx"
)

// Registry holds named transformers. Registration happens during startup
// wiring; lookups afterwards are read-only, so no lock is needed.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry returns an empty transformer registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// Register adds a transformer under its own name. Registering the same
// name again replaces the previous transformer and logs the replacement.
func (r *Registry) Register(ctx context.Context, t Transformer) {
	name := t.Name()
	if _, exists := r.transformers[name]; exists {
		slogx.FromContext(ctx).Warn("replacing transformer", "name", name)
	}
	r.transformers[name] = t
}

// Resolve returns the transformer registered under name.
func (r *Registry) Resolve(name string) (Transformer, bool) {
	t, ok := r.transformers[name]
	return t, ok
}

// Execute validates (when the transformer can) and forward-maps the
// payload. Log lines carry only field names, never values.
func (r *Registry) Execute(ctx context.Context, name string, in Payload) (Payload, error) {
	t, ok := r.transformers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	log := slogx.FromContext(ctx)

	if v, ok := t.(Validator); ok {
		if err := v.Validate(ctx, in); err != nil {
			log.Info("payload rejected", "transformer", name, "fields", fieldNames(in))
			return nil, err
		}
	}

	out, err := t.Forward(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: forward: %w", name, err)
	}

	log.Debug("payload transformed",
		"transformer", name,
		"in_fields", fieldNames(in),
		"out_fields", fieldNames(out),
	)
	return out, nil
}

// ExecuteReverse maps an integration response back to the canonical shape.
// Transformers without a reverse mapping yield ErrNoReverse.
func (r *Registry) ExecuteReverse(ctx context.Context, name string, in Payload) (Payload, error) {
	t, ok := r.transformers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	rev, ok := t.(ReverseTransformer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoReverse, name)
	}

	out, err := rev.Reverse(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("transformer %s: reverse: %w", name, err)
	}

	slogx.FromContext(ctx).Debug("response transformed",
		"transformer", name,
		"in_fields", fieldNames(in),
		"out_fields", fieldNames(out),
	)
	return out, nil
}
