package definition

import (
	"fmt"

	"github.com/formflow/formflow/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates process definitions structurally and referentially. A
// definition that passes cannot produce a misconfigured-process condition at
// interaction start.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all process definitions.
func (v *Validator) Validate(processes []model.Process) []VError {
	var errs []VError
	keys := make(map[string]bool)

	for i, p := range processes {
		prefix := fmt.Sprintf("processes[%d]", i)
		if p.DefinitionKey != "" && keys[p.DefinitionKey] {
			errs = append(errs, VError{
				Path:    prefix + ".definition_key",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("definition key %q is declared more than once", p.DefinitionKey),
			})
		}
		keys[p.DefinitionKey] = true
		errs = append(errs, v.validateProcess(prefix, p)...)
	}
	return errs
}

func (v *Validator) validateProcess(prefix string, p model.Process) []VError {
	var errs []VError

	if p.DefinitionKey == "" {
		errs = append(errs, VError{Path: prefix + ".definition_key", Code: "REQUIRED", Message: "definition_key is required"})
	}
	if len(p.Interactions) == 0 {
		errs = append(errs, VError{Path: prefix + ".interactions", Code: "REQUIRED", Message: "at least one interaction is required"})
	}

	labels := make(map[string]bool)
	for i, interaction := range p.Interactions {
		ip := fmt.Sprintf("%s.interactions[%d]", prefix, i)
		if interaction.Label == "" {
			errs = append(errs, VError{Path: ip + ".label", Code: "REQUIRED", Message: "label is required"})
		} else if labels[interaction.Label] {
			errs = append(errs, VError{
				Path:    ip + ".label",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("interaction label %q is declared more than once", interaction.Label),
			})
		}
		labels[interaction.Label] = true
		errs = append(errs, v.validateInteraction(ip, interaction)...)
	}

	return errs
}

func (v *Validator) validateInteraction(prefix string, interaction model.Interaction) []VError {
	var errs []VError

	if len(interaction.Screens) == 0 {
		errs = append(errs, VError{Path: prefix + ".screens", Code: "REQUIRED", Message: "at least one screen is required"})
	}

	ordinals := make(map[int]bool)
	for i, screen := range interaction.Screens {
		sp := fmt.Sprintf("%s.screens[%d]", prefix, i)
		if screen.Ordinal <= 0 {
			errs = append(errs, VError{Path: sp + ".ordinal", Code: "RANGE", Message: "ordinal must be positive"})
		} else if ordinals[screen.Ordinal] {
			errs = append(errs, VError{
				Path:    sp + ".ordinal",
				Code:    "DUPLICATE",
				Message: fmt.Sprintf("ordinal %d is declared more than once", screen.Ordinal),
			})
		}
		ordinals[screen.Ordinal] = true
		errs = append(errs, v.validateScreen(sp, screen)...)
	}

	return errs
}

func (v *Validator) validateScreen(prefix string, screen model.Screen) []VError {
	var errs []VError

	names := make(map[string]bool)
	for i, sec := range screen.Sections {
		for j, f := range sec.Fields {
			fp := fmt.Sprintf("%s.sections[%d].fields[%d]", prefix, i, j)
			if f.Name == "" {
				errs = append(errs, VError{Path: fp + ".name", Code: "REQUIRED", Message: "name is required"})
			} else if names[f.Name] {
				errs = append(errs, VError{
					Path:    fp + ".name",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("field %q is declared more than once on the screen", f.Name),
				})
			}
			names[f.Name] = true
			errs = append(errs, v.validateField(fp, f)...)
		}
	}

	for i, c := range screen.Constraints {
		cp := fmt.Sprintf("%s.constraints[%d]", prefix, i)
		errs = append(errs, v.validateConstraint(cp, c)...)
	}

	return errs
}

var validFieldTypes = map[model.FieldType]bool{
	model.FieldText: true, model.FieldTextarea: true, model.FieldNumber: true,
	model.FieldEmail: true, model.FieldCheckbox: true, model.FieldRadio: true,
	model.FieldSelect: true, model.FieldDate: true, model.FieldFile: true,
	model.FieldPerson: true,
}

// choiceFieldTypes render an enumerated set of options.
var choiceFieldTypes = map[model.FieldType]bool{
	model.FieldCheckbox: true, model.FieldRadio: true, model.FieldSelect: true,
}

func (v *Validator) validateField(prefix string, f model.Field) []VError {
	var errs []VError

	if f.Type == "" {
		errs = append(errs, VError{Path: prefix + ".type", Code: "REQUIRED", Message: "type is required"})
	} else if !validFieldTypes[f.Type] {
		errs = append(errs, VError{Path: prefix + ".type", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid field type %q", f.Type)})
	}

	if choiceFieldTypes[f.Type] && len(f.Options) == 0 {
		errs = append(errs, VError{Path: prefix + ".options", Code: "REQUIRED", Message: fmt.Sprintf("options are required for %s fields", f.Type)})
	}

	if f.MaxValueCount < 0 {
		errs = append(errs, VError{Path: prefix + ".max_value_count", Code: "RANGE", Message: "max_value_count must not be negative"})
	}

	for i, c := range f.Constraints {
		cp := fmt.Sprintf("%s.constraints[%d]", prefix, i)
		errs = append(errs, v.validateConstraint(cp, c)...)
	}

	return errs
}

var validConstraintTypes = map[model.ConstraintType]bool{
	model.ConstraintAnd: true, model.ConstraintOr: true,
	model.ConstraintRequiredWhen: true, model.ConstraintVisibleWhen: true,
	model.ConstraintNumeric: true, model.ConstraintEmailAddress: true,
	model.ConstraintConfirmationNumber: true, model.ConstraintLimitedTo: true,
	model.ConstraintAllValuesMatch: true, model.ConstraintScreenAction: true,
}

var validActionTypes = map[model.ActionType]bool{
	model.ActionCreate: true, model.ActionComplete: true, model.ActionReject: true,
	model.ActionValidate: true, model.ActionAttach: true,
}

func (v *Validator) validateConstraint(prefix string, c model.Constraint) []VError {
	var errs []VError

	if c.Type == "" {
		errs = append(errs, VError{Path: prefix + ".type", Code: "REQUIRED", Message: "type is required"})
	} else if !validConstraintTypes[c.Type] {
		errs = append(errs, VError{Path: prefix + ".type", Code: "INVALID_ENUM", Message: fmt.Sprintf("unknown constraint type %q", c.Type)})
	}

	switch c.Type {
	case model.ConstraintScreenAction:
		if c.ActionType == "" {
			errs = append(errs, VError{Path: prefix + ".action_type", Code: "REQUIRED", Message: "action_type is required"})
		} else if !validActionTypes[c.ActionType] {
			errs = append(errs, VError{Path: prefix + ".action_type", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid action type %q", c.ActionType)})
		}
	case model.ConstraintLimitedTo:
		if len(c.Options) == 0 && c.Value == "" {
			errs = append(errs, VError{Path: prefix + ".options", Code: "REQUIRED", Message: "options or value is required"})
		}
	case model.ConstraintAnd, model.ConstraintOr:
		for i, sub := range c.Subconstraints {
			sp := fmt.Sprintf("%s.constraints[%d]", prefix, i)
			errs = append(errs, v.validateConstraint(sp, sub)...)
		}
	}

	return errs
}
