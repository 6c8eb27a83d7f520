package model

import "time"

// SubmissionType marks whether the screen a ticket points at is an
// intermediate page of a multi-screen flow or the final one.
type SubmissionType string

// Submission types.
const (
	SubmissionInterim SubmissionType = "INTERIM"
	SubmissionFinal   SubmissionType = "FINAL"
)

// Fingerprint captures the identifying attributes of the remote caller a
// ticket was issued to. All fields are optional; absence of a field on both
// sides is not a mismatch.
type Fingerprint struct {
	RemoteAddr  string `json:"remote_addr,omitempty"`
	RemoteHost  string `json:"remote_host,omitempty"`
	RemotePort  string `json:"remote_port,omitempty"`
	RemoteUser  string `json:"remote_user,omitempty"`
	CertIssuer  string `json:"cert_issuer,omitempty"`
	CertSubject string `json:"cert_subject,omitempty"`
}

// HasCertificate reports whether a client certificate was recorded.
func (f Fingerprint) HasCertificate() bool {
	return f.CertIssuer != "" || f.CertSubject != ""
}

// FormRequest is an ephemeral ticket binding a screen-navigation position to
// the caller it was issued to. Tickets are immutable once minted; advancing a
// flow mints a new ticket with a fresh request id rather than mutating the
// old one, so a stale ticket replayed concurrently is a no-op instead of a
// double-advance.
type FormRequest struct {
	RequestID            string         `json:"request_id"`
	ProcessDefinitionKey string         `json:"process_definition_key"`
	ProcessInstanceID    string         `json:"process_instance_id,omitempty"`
	TaskID               string         `json:"task_id,omitempty"`
	InteractionLabel     string         `json:"interaction_label"`
	ScreenOrdinal        int            `json:"screen_ordinal"`
	SubmissionType       SubmissionType `json:"submission_type"`
	Fingerprint          Fingerprint    `json:"fingerprint"`
	CreatedAt            time.Time      `json:"created_at"`
}
