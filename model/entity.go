package model

import "context"

// EntityType distinguishes the kinds of caller principal.
type EntityType string

// Supported entity types.
const (
	EntityUser      EntityType = "user"
	EntitySystem    EntityType = "system"
	EntityAnonymous EntityType = "anonymous"
)

// Entity is the caller principal: an authenticated user, the system
// principal, or anonymous. It is immutable after construction and safe for
// concurrent reads.
type Entity struct {
	ID          string
	Type        EntityType
	DisplayName string
	Roles       []string
}

// IsAnonymous reports whether the entity is absent or explicitly anonymous.
func (e *Entity) IsAnonymous() bool {
	return e == nil || e.Type == EntityAnonymous || e.ID == ""
}

// HasRole returns true if the entity carries the given role.
func (e *Entity) HasRole(role string) bool {
	if e == nil {
		return false
	}
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsActiveAssignee reports whether this entity is the assignee of the given
// task and the task is still open. This is the authorization gate for
// releasing decrypted restricted values.
func (e *Entity) IsActiveAssignee(t *Task) bool {
	if e == nil || t == nil {
		return false
	}
	return t.Active && t.AssigneeID != "" && t.AssigneeID == e.ID
}

// Task is a workflow task associated with a process instance. Only the
// assignee identity and the active flag are consulted by this core; task
// lifecycle belongs to the process engine.
type Task struct {
	ID                string
	TaskDefinitionKey string
	ProcessInstanceID string
	AssigneeID        string
	Active            bool
}

type principalKey struct{}

// WithPrincipal attaches the caller principal to the given context.
func WithPrincipal(ctx context.Context, e *Entity) context.Context {
	return context.WithValue(ctx, principalKey{}, e)
}

// PrincipalFrom extracts the caller principal from the context, or returns
// nil if not present (anonymous caller).
func PrincipalFrom(ctx context.Context) *Entity {
	e, _ := ctx.Value(principalKey{}).(*Entity)
	return e
}
