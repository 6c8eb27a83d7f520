package definition

import (
	"strings"
	"testing"

	"github.com/formflow/formflow/model"
)

func validProcess() model.Process {
	return model.Process{
		DefinitionKey: "onboarding",
		Interactions: []model.Interaction{
			{
				Label: "applicant",
				Screens: []model.Screen{
					{
						Ordinal: 1,
						Sections: []model.Section{
							{Ordinal: 1, Fields: []model.Field{
								{Name: "full_name", Type: model.FieldText},
								{Name: "level", Type: model.FieldSelect, Options: []model.Option{{Label: "One", Value: "1"}}},
							}},
						},
					},
				},
			},
		},
	}
}

func findError(errs []VError, code, pathFragment string) bool {
	for _, e := range errs {
		if e.Code == code && strings.Contains(e.Path, pathFragment) {
			return true
		}
	}
	return false
}

func TestValidator_ValidProcess(t *testing.T) {
	v := NewValidator()
	if errs := v.Validate([]model.Process{validProcess()}); len(errs) != 0 {
		t.Errorf("Validate() = %v, want no errors", errs)
	}
}

func TestValidator_Structural(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*model.Process)
		wantCode     string
		wantFragment string
	}{
		{
			name:         "missing definition key",
			mutate:       func(p *model.Process) { p.DefinitionKey = "" },
			wantCode:     "REQUIRED",
			wantFragment: "definition_key",
		},
		{
			name:         "no interactions",
			mutate:       func(p *model.Process) { p.Interactions = nil },
			wantCode:     "REQUIRED",
			wantFragment: "interactions",
		},
		{
			name:         "interaction without screens",
			mutate:       func(p *model.Process) { p.Interactions[0].Screens = nil },
			wantCode:     "REQUIRED",
			wantFragment: "screens",
		},
		{
			name:         "missing interaction label",
			mutate:       func(p *model.Process) { p.Interactions[0].Label = "" },
			wantCode:     "REQUIRED",
			wantFragment: "label",
		},
		{
			name: "duplicate screen ordinal",
			mutate: func(p *model.Process) {
				p.Interactions[0].Screens = append(p.Interactions[0].Screens, model.Screen{Ordinal: 1})
			},
			wantCode:     "DUPLICATE",
			wantFragment: "ordinal",
		},
		{
			name: "non-positive ordinal",
			mutate: func(p *model.Process) {
				p.Interactions[0].Screens[0].Ordinal = 0
			},
			wantCode:     "RANGE",
			wantFragment: "ordinal",
		},
		{
			name: "duplicate field name on screen",
			mutate: func(p *model.Process) {
				fields := &p.Interactions[0].Screens[0].Sections[0].Fields
				*fields = append(*fields, model.Field{Name: "full_name", Type: model.FieldText})
			},
			wantCode:     "DUPLICATE",
			wantFragment: "name",
		},
		{
			name: "unknown field type",
			mutate: func(p *model.Process) {
				p.Interactions[0].Screens[0].Sections[0].Fields[0].Type = "slider"
			},
			wantCode:     "INVALID_ENUM",
			wantFragment: "type",
		},
		{
			name: "select without options",
			mutate: func(p *model.Process) {
				p.Interactions[0].Screens[0].Sections[0].Fields[1].Options = nil
			},
			wantCode:     "REQUIRED",
			wantFragment: "options",
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProcess()
			tt.mutate(&p)
			errs := v.Validate([]model.Process{p})
			if !findError(errs, tt.wantCode, tt.wantFragment) {
				t.Errorf("Validate() = %v, want %s error at %s", errs, tt.wantCode, tt.wantFragment)
			}
		})
	}
}

func TestValidator_DuplicateDefinitionKey(t *testing.T) {
	v := NewValidator()
	errs := v.Validate([]model.Process{validProcess(), validProcess()})
	if !findError(errs, "DUPLICATE", "definition_key") {
		t.Errorf("Validate() = %v, want DUPLICATE definition_key", errs)
	}
}

func TestValidator_Constraints(t *testing.T) {
	v := NewValidator()

	p := validProcess()
	p.Interactions[0].Screens[0].Constraints = []model.Constraint{
		{Type: model.ConstraintScreenAction},
		{Type: "IS_UNKNOWN"},
		{Type: model.ConstraintAnd, Subconstraints: []model.Constraint{
			{Type: model.ConstraintLimitedTo},
		}},
	}

	errs := v.Validate([]model.Process{p})
	if !findError(errs, "REQUIRED", "action_type") {
		t.Errorf("missing action_type not reported: %v", errs)
	}
	if !findError(errs, "INVALID_ENUM", "type") {
		t.Errorf("unknown constraint type not reported: %v", errs)
	}
	if !findError(errs, "REQUIRED", "options") {
		t.Errorf("empty IS_LIMITED_TO not reported, including nested: %v", errs)
	}
}
