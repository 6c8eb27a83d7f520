package model

// Secret is an opaque reference to an encrypted field value. The ciphertext
// format belongs to the EncryptionService that produced it; nothing else in
// the system interprets it.
type Secret struct {
	ID         string `json:"id"`
	Ciphertext []byte `json:"-"`
}

// FileRef describes an uploaded file value. Location is the storage reference
// understood by the attachment store; Link is the caller-resolvable retrieval
// URL populated by the filter pipeline before rendering.
type FileRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Location    string `json:"-"`
	Link        string `json:"link,omitempty"`
}

// Value is a single stored datum for a field. Exactly one of Text, Secret, or
// File is meaningful. Secret values are never serialized; the filter pipeline
// must replace them with plaintext (Decrypt) or a mask (Mask) before a value
// map reaches a caller.
type Value struct {
	Text   string   `json:"text,omitempty"`
	Secret *Secret  `json:"-"`
	File   *FileRef `json:"file,omitempty"`
}

// PlainValue returns a plaintext Value.
func PlainValue(text string) Value {
	return Value{Text: text}
}

// SecretValue returns a Value wrapping an encrypted datum.
func SecretValue(s *Secret) Value {
	return Value{Secret: s}
}

// IsSecret reports whether the value is still an undecrypted secret.
func (v Value) IsSecret() bool {
	return v.Secret != nil
}

// IsFile reports whether the value is a file reference.
func (v Value) IsFile() bool {
	return v.File != nil
}

// IsEmpty reports whether the value carries no datum at all.
func (v Value) IsEmpty() bool {
	return v.Text == "" && v.Secret == nil && v.File == nil
}

// ProcessInstance is a running instance of a process definition together with
// its submitted data. The data map is owned by submission handling; this core
// reads it and never mutates it in place.
type ProcessInstance struct {
	ID                   string             `json:"id"`
	ProcessDefinitionKey string             `json:"process_definition_key"`
	Label                string             `json:"label,omitempty"`
	Data                 map[string][]Value `json:"data,omitempty"`
}

// Snapshot flattens the instance data to field name → plaintext strings for
// constraint evaluation. Secret and file values contribute no entries; a
// constraint over a restricted field sees it as absent.
func (p *ProcessInstance) Snapshot() map[string][]string {
	if p == nil || p.Data == nil {
		return map[string][]string{}
	}
	snap := make(map[string][]string, len(p.Data))
	for name, values := range p.Data {
		for _, v := range values {
			if v.Text != "" && !v.IsSecret() {
				snap[name] = append(snap[name], v.Text)
			}
		}
	}
	return snap
}
