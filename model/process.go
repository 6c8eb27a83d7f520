package model

// ActionType identifies the action a caller is performing when a screen is
// rendered or a submission is made. Display constraints are evaluated against
// the action in flight.
type ActionType string

// Supported action types.
const (
	ActionCreate   ActionType = "CREATE"
	ActionComplete ActionType = "COMPLETE"
	ActionReject   ActionType = "REJECT"
	ActionValidate ActionType = "VALIDATE"
	ActionAttach   ActionType = "ATTACH"
)

// FieldType identifies the input control a field renders as.
type FieldType string

// Supported field types.
const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldNumber   FieldType = "number"
	FieldEmail    FieldType = "email"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldSelect   FieldType = "select"
	FieldDate     FieldType = "date"
	FieldFile     FieldType = "file"
	FieldPerson   FieldType = "person"
)

// ConstraintType identifies the evaluation rule of a declarative constraint.
type ConstraintType string

// Supported constraint types. Unknown types are treated as vacuously
// satisfied by the display-constraint evaluator.
const (
	ConstraintAnd                ConstraintType = "AND"
	ConstraintOr                 ConstraintType = "OR"
	ConstraintRequiredWhen       ConstraintType = "IS_ONLY_REQUIRED_WHEN"
	ConstraintVisibleWhen        ConstraintType = "IS_ONLY_VISIBLE_WHEN"
	ConstraintNumeric            ConstraintType = "IS_NUMERIC"
	ConstraintEmailAddress       ConstraintType = "IS_EMAIL_ADDRESS"
	ConstraintConfirmationNumber ConstraintType = "IS_CONFIRMATION_NUMBER"
	ConstraintLimitedTo          ConstraintType = "IS_LIMITED_TO"
	ConstraintAllValuesMatch     ConstraintType = "IS_ALL_VALUES_MATCH"
	ConstraintScreenAction       ConstraintType = "SCREEN_IS_DISPLAYED_WHEN_ACTION_TYPE"
)

// Constraint is a declarative rule attached to a field or a screen.
// Name/Value describe a named-field comparison (Value may be a regular
// expression); ActionType is consulted only by SCREEN_IS_DISPLAYED_WHEN_ACTION_TYPE;
// Options enumerates the allowed values for IS_LIMITED_TO; Subconstraints hold
// the children of AND/OR compositions.
type Constraint struct {
	Type           ConstraintType `yaml:"type"           json:"type"`
	Name           string         `yaml:"name"           json:"name,omitempty"`
	Value          string         `yaml:"value"          json:"value,omitempty"`
	ActionType     ActionType     `yaml:"action_type"    json:"action_type,omitempty"`
	Options        []string       `yaml:"options"        json:"options,omitempty"`
	Subconstraints []Constraint   `yaml:"constraints"    json:"constraints,omitempty"`
}

// Option is a label/value pair for select, radio, and checkbox fields.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// Field is a named input definition within a section. DefaultValue may be a
// literal or one of the macro tokens {{CurrentUser}}, {{CurrentDate}}, and
// {{ConfirmationNumber}} (matched verbatim, case-sensitive). Restricted fields
// have their values stored as Secrets and never leave the filter pipeline
// undecrypted-or-unmasked.
type Field struct {
	Name          string       `yaml:"name"            json:"name"`
	Label         string       `yaml:"label"           json:"label,omitempty"`
	Type          FieldType    `yaml:"type"            json:"type"`
	DefaultValue  string       `yaml:"default_value"   json:"default_value,omitempty"`
	Restricted    bool         `yaml:"restricted"      json:"restricted,omitempty"`
	Required      bool         `yaml:"required"        json:"required,omitempty"`
	MaxValueCount int          `yaml:"max_value_count" json:"max_value_count,omitempty"`
	Options       []Option     `yaml:"options"         json:"options,omitempty"`
	Constraints   []Constraint `yaml:"constraints"     json:"constraints,omitempty"`
}

// Section groups fields within a screen.
type Section struct {
	Title   string  `yaml:"title"   json:"title,omitempty"`
	Ordinal int     `yaml:"ordinal" json:"ordinal"`
	Fields  []Field `yaml:"fields"  json:"fields"`
}

// Screen is one page of a multi-step interaction. Screens are immutable
// configuration; per-submission state lives on the ticket and the process
// instance. Constraints here are display constraints consulted by the
// navigation resolver.
type Screen struct {
	Title             string       `yaml:"title"              json:"title"`
	Ordinal           int          `yaml:"ordinal"            json:"ordinal"`
	AttachmentAllowed bool         `yaml:"attachment_allowed" json:"attachment_allowed,omitempty"`
	Sections          []Section    `yaml:"sections"           json:"sections"`
	Constraints       []Constraint `yaml:"constraints"        json:"constraints,omitempty"`
}

// Fields returns all fields of the screen across sections, in section and
// declaration order.
func (s *Screen) Fields() []Field {
	var fields []Field
	for _, sec := range s.Sections {
		fields = append(fields, sec.Fields...)
	}
	return fields
}

// Interaction is a named, ordered sequence of screens attached to a process
// definition, optionally bound to specific workflow tasks by definition key.
type Interaction struct {
	Label              string   `yaml:"label"                json:"label"`
	TaskDefinitionKeys []string `yaml:"task_definition_keys" json:"task_definition_keys,omitempty"`
	Screens            []Screen `yaml:"screens"              json:"screens"`
}

// MatchesTask reports whether the interaction is bound to the given task
// definition key.
func (i *Interaction) MatchesTask(taskDefinitionKey string) bool {
	for _, key := range i.TaskDefinitionKeys {
		if key == taskDefinitionKey {
			return true
		}
	}
	return false
}

// ScreenByOrdinal returns the screen with the given ordinal, or nil.
func (i *Interaction) ScreenByOrdinal(ordinal int) *Screen {
	for idx := range i.Screens {
		if i.Screens[idx].Ordinal == ordinal {
			return &i.Screens[idx]
		}
	}
	return nil
}

// Process is the root of a definition file: a process definition key and its
// interactions.
type Process struct {
	DefinitionKey string        `yaml:"definition_key" json:"definition_key"`
	Label         string        `yaml:"label"          json:"label"`
	Interactions  []Interaction `yaml:"interactions"   json:"interactions"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path.
	SourceFile string `yaml:"-" json:"-"`
}
