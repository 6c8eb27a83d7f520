// Package filter implements the field-level security pipeline that decides,
// for every stored data value, whether the caller sees it in plaintext,
// masked, decorated with metadata, or not at all.
package filter

import (
	"context"

	"github.com/formflow/formflow/model"
)

// DataFilter transforms the stored values of a single field. A filter never
// sees other fields' values; cross-field decisions belong to the Builder,
// which selects the filter chain per field set.
type DataFilter interface {
	Filter(ctx context.Context, fieldName string, values []model.Value) []model.Value
}

// Pipeline is an ordered chain of filters applied key by key. A nil result
// from any filter removes the field from the output entirely.
type Pipeline []DataFilter

// Apply runs the pipeline over every field of the data map and returns a new
// map; the input is never mutated. Fields whose final value list is nil are
// omitted from the result. An empty non-nil list is not a drop: it stays in
// the chain so later filters can substitute defaults.
func (p Pipeline) Apply(ctx context.Context, data map[string][]model.Value) map[string][]model.Value {
	out := make(map[string][]model.Value, len(data))
	for name, values := range data {
		filtered := make([]model.Value, 0, len(values))
		filtered = append(filtered, values...)
		for _, f := range p {
			filtered = f.Filter(ctx, name, filtered)
			if filtered == nil {
				break
			}
		}
		if filtered != nil {
			out[name] = filtered
		}
	}
	return out
}

// NoOp is the identity filter, used when the caller is trusted to receive the
// complete unfiltered map. It keeps composition code uniform.
type NoOp struct{}

// Filter returns the values unchanged.
func (NoOp) Filter(_ context.Context, _ string, values []model.Value) []model.Value {
	return values
}
