package filter

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/formflow/formflow/model"
)

// Default-value macro tokens, matched verbatim and case-sensitively.
const (
	MacroCurrentUser        = "{{CurrentUser}}"
	MacroCurrentDate        = "{{CurrentDate}}"
	MacroConfirmationNumber = "{{ConfirmationNumber}}"
)

// DecorateValues substitutes default-value expressions for empty fields and
// rewrites file values with a resolvable retrieval link. It is the last
// filter of every pipeline.
type DecorateValues struct {
	fields    map[string]model.Field
	instance  *model.ProcessInstance
	principal *model.Entity
	task      *model.Task
	linkBase  string
	now       func() time.Time
}

// NewDecorateValues builds the decoration filter. linkBase is the API prefix
// file links are resolved under; now is the clock used for the
// {{CurrentDate}} macro (nil means time.Now).
func NewDecorateValues(fields []model.Field, instance *model.ProcessInstance, principal *model.Entity, task *model.Task, linkBase string, now func() time.Time) *DecorateValues {
	byName := make(map[string]model.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	if now == nil {
		now = time.Now
	}
	return &DecorateValues{
		fields:    byName,
		instance:  instance,
		principal: principal,
		task:      task,
		linkBase:  linkBase,
		now:       now,
	}
}

// Filter decorates the field's values. Empty results receive the field's
// default-value expression; non-empty file values get their retrieval link.
func (d *DecorateValues) Filter(_ context.Context, fieldName string, values []model.Value) []model.Value {
	if allEmpty(values) {
		return d.defaultValues(fieldName)
	}

	out := make([]model.Value, 0, len(values))
	for _, v := range values {
		if v.IsFile() {
			file := *v.File
			file.Link = d.fileLink(&file)
			v.File = &file
		}
		out = append(out, v)
	}
	return out
}

// defaultValues resolves the field's default-value expression. Literals pass
// through verbatim; macros substitute the principal, the current timestamp,
// or the owning process instance's identifier.
func (d *DecorateValues) defaultValues(fieldName string) []model.Value {
	f, ok := d.fields[fieldName]
	if !ok || f.DefaultValue == "" {
		return []model.Value{}
	}

	switch {
	case f.DefaultValue == MacroCurrentUser:
		// The principal's identity only belongs in the form when the task is
		// unassigned territory or the caller is its active assignee.
		if d.principal.IsAnonymous() {
			return []model.Value{}
		}
		if d.task != nil && !d.principal.IsActiveAssignee(d.task) {
			return []model.Value{}
		}
		return []model.Value{model.PlainValue(d.principal.ID)}

	case f.DefaultValue == MacroCurrentDate:
		return []model.Value{model.PlainValue(d.now().UTC().Format(time.RFC3339))}

	case strings.Contains(f.DefaultValue, MacroConfirmationNumber):
		return []model.Value{model.PlainValue(
			strings.ReplaceAll(f.DefaultValue, MacroConfirmationNumber, instanceID(d.instance)))}

	default:
		return []model.Value{model.PlainValue(f.DefaultValue)}
	}
}

func (d *DecorateValues) fileLink(file *model.FileRef) string {
	if d.linkBase == "" {
		return file.Link
	}
	return d.linkBase + "/attachment/" + url.PathEscape(instanceID(d.instance)) + "/" + url.PathEscape(file.Name)
}

func allEmpty(values []model.Value) bool {
	for _, v := range values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}
