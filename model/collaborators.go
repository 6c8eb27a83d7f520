package model

import (
	"context"
	"time"
)

// EncryptionService encrypts and decrypts restricted field values. Key
// material is read-only from this system's perspective; rotation is an
// external concern.
type EncryptionService interface {
	// Encrypt produces a Secret wrapping the plaintext.
	Encrypt(ctx context.Context, plaintext string) (*Secret, error)

	// Decrypt recovers the plaintext of a Secret. Failures are reported as
	// DECRYPTION_FAILED envelopes by callers; the service itself returns the
	// underlying error.
	Decrypt(ctx context.Context, secret *Secret) (string, error)
}

// AccessEvent records one release of a restricted value in plaintext.
type AccessEvent struct {
	ProcessInstanceID string
	SecretID          string
	FieldName         string
	Reason            string
	Principal         *Entity
	At                time.Time
}

// AccessTracker records restricted-value access events for audit purposes.
// Track is fire-and-forget: implementations log their own failures and never
// block the rendering path.
type AccessTracker interface {
	Track(ctx context.Context, event AccessEvent)
}

// ProcessDefinitionSource resolves the interactions attached to a process
// definition. Implemented by the definition registry.
type ProcessDefinitionSource interface {
	// Interactions returns the ordered interactions of the process
	// definition, or NOT_FOUND if the definition key is unknown.
	Interactions(processDefinitionKey string) ([]Interaction, error)
}

// ProcessEngine is the adapter to the business-process engine. Its state
// machine semantics (assignment, completion, escalation) are entirely the
// engine's concern; this system only starts, looks up, completes, and
// cancels.
type ProcessEngine interface {
	StartInstance(ctx context.Context, processDefinitionKey string, data map[string][]Value) (*ProcessInstance, error)
	FindTask(ctx context.Context, taskID string) (*Task, error)
	CompleteTask(ctx context.Context, taskID string, action ActionType, data map[string][]Value) error
	CancelInstance(ctx context.Context, processInstanceID, reason string) error
}

// InstanceRepository loads and saves process instances. Submission handling
// owns all writes; this core only reads.
type InstanceRepository interface {
	FindInstance(ctx context.Context, processInstanceID string) (*ProcessInstance, error)
	SaveInstance(ctx context.Context, instance *ProcessInstance) error
}
