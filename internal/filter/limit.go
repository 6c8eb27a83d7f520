package filter

import (
	"context"

	"github.com/formflow/formflow/model"
)

// LimitFields restricts the key set to the fields supplied by the caller,
// normally the fields on the screen being rendered. When IncludeRestricted is
// false, fields flagged restricted are dropped as well, regardless of
// membership.
type LimitFields struct {
	fields            map[string]model.Field
	includeRestricted bool
}

// NewLimitFields builds a LimitFields filter over the given field set.
func NewLimitFields(fields []model.Field, includeRestricted bool) *LimitFields {
	byName := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	return &LimitFields{fields: byName, includeRestricted: includeRestricted}
}

// Filter drops the whole field when it is not part of the allowed set.
func (l *LimitFields) Filter(_ context.Context, fieldName string, values []model.Value) []model.Value {
	f, ok := l.fields[fieldName]
	if !ok {
		return nil
	}
	if f.Restricted && !l.includeRestricted {
		return nil
	}
	return values
}
