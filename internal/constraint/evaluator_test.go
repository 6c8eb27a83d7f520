package constraint

import (
	"testing"

	"github.com/formflow/formflow/model"
)

func TestSatisfiedNamedFieldComparison(t *testing.T) {
	snapshot := map[string][]string{
		"channel": {"email"},
		"state":   {"NY", "CA"},
	}

	tests := []struct {
		name string
		c    model.Constraint
		want bool
	}{
		{
			name: "visible when exact match",
			c:    model.Constraint{Type: model.ConstraintVisibleWhen, Name: "channel", Value: "email"},
			want: true,
		},
		{
			name: "visible when no match",
			c:    model.Constraint{Type: model.ConstraintVisibleWhen, Name: "channel", Value: "sms"},
			want: false,
		},
		{
			name: "required when any value matches",
			c:    model.Constraint{Type: model.ConstraintRequiredWhen, Name: "state", Value: "CA"},
			want: true,
		},
		{
			name: "regular expression value",
			c:    model.Constraint{Type: model.ConstraintVisibleWhen, Name: "state", Value: "NY|NJ"},
			want: true,
		},
		{
			name: "absent field never matches",
			c:    model.Constraint{Type: model.ConstraintVisibleWhen, Name: "missing", Value: ".*"},
			want: false,
		},
		{
			name: "invalid regexp degrades to exact match",
			c:    model.Constraint{Type: model.ConstraintVisibleWhen, Name: "channel", Value: "("},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Satisfied(tc.c, snapshot, Context{}); got != tc.want {
				t.Errorf("Satisfied() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSatisfiedValueFormats(t *testing.T) {
	snapshot := map[string][]string{
		"amount":       {"42", "3.14"},
		"mixed":        {"42", "forty-two"},
		"contact":      {"a@example.com"},
		"bad_contact":  {"not-an-address"},
		"confirmation": {"A1B2C3"},
		"lowercase":    {"a1b2c3"},
		"color":        {"red", "blue"},
		"password":     {"hunter2", "hunter2"},
		"mismatch":     {"hunter2", "hunter3"},
	}

	tests := []struct {
		name string
		c    model.Constraint
		want bool
	}{
		{"numeric ok", model.Constraint{Type: model.ConstraintNumeric, Name: "amount"}, true},
		{"numeric rejects words", model.Constraint{Type: model.ConstraintNumeric, Name: "mixed"}, false},
		{"numeric vacuous on absent field", model.Constraint{Type: model.ConstraintNumeric, Name: "missing"}, true},
		{"email ok", model.Constraint{Type: model.ConstraintEmailAddress, Name: "contact"}, true},
		{"email rejects bare text", model.Constraint{Type: model.ConstraintEmailAddress, Name: "bad_contact"}, false},
		{"confirmation number ok", model.Constraint{Type: model.ConstraintConfirmationNumber, Name: "confirmation"}, true},
		{"confirmation number rejects lowercase", model.Constraint{Type: model.ConstraintConfirmationNumber, Name: "lowercase"}, false},
		{"limited to ok", model.Constraint{Type: model.ConstraintLimitedTo, Name: "color", Options: []string{"red", "blue", "green"}}, true},
		{"limited to rejects stranger", model.Constraint{Type: model.ConstraintLimitedTo, Name: "color", Options: []string{"red"}}, false},
		{"all values match", model.Constraint{Type: model.ConstraintAllValuesMatch, Name: "password"}, true},
		{"all values match rejects divergence", model.Constraint{Type: model.ConstraintAllValuesMatch, Name: "mismatch"}, false},
		{"all values match vacuous on absent field", model.Constraint{Type: model.ConstraintAllValuesMatch, Name: "missing"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Satisfied(tc.c, snapshot, Context{}); got != tc.want {
				t.Errorf("Satisfied() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSatisfiedComposition(t *testing.T) {
	snapshot := map[string][]string{"a": {"1"}, "b": {"2"}}

	and := model.Constraint{
		Type: model.ConstraintAnd,
		Subconstraints: []model.Constraint{
			{Type: model.ConstraintVisibleWhen, Name: "a", Value: "1"},
			{Type: model.ConstraintVisibleWhen, Name: "b", Value: "2"},
		},
	}
	if !Satisfied(and, snapshot, Context{}) {
		t.Error("AND of two satisfied children should hold")
	}

	and.Subconstraints[1].Value = "wrong"
	if Satisfied(and, snapshot, Context{}) {
		t.Error("AND with one failing child should not hold")
	}

	or := model.Constraint{
		Type: model.ConstraintOr,
		Subconstraints: []model.Constraint{
			{Type: model.ConstraintVisibleWhen, Name: "a", Value: "wrong"},
			{Type: model.ConstraintVisibleWhen, Name: "b", Value: "2"},
		},
	}
	if !Satisfied(or, snapshot, Context{}) {
		t.Error("OR with one satisfied child should hold")
	}

	or.Subconstraints[1].Value = "also wrong"
	if Satisfied(or, snapshot, Context{}) {
		t.Error("OR with no satisfied children should not hold")
	}

	if !Satisfied(model.Constraint{Type: model.ConstraintAnd}, nil, Context{}) {
		t.Error("empty AND should hold")
	}
	if !Satisfied(model.Constraint{Type: model.ConstraintOr}, nil, Context{}) {
		t.Error("empty OR should hold")
	}
}

func TestSatisfiedScreenAction(t *testing.T) {
	c := model.Constraint{Type: model.ConstraintScreenAction, ActionType: model.ActionComplete}

	if !Satisfied(c, nil, Context{Action: model.ActionComplete}) {
		t.Error("screen action constraint should hold for matching action")
	}
	if Satisfied(c, nil, Context{Action: model.ActionCreate}) {
		t.Error("screen action constraint should not hold for a different action")
	}
}

func TestSatisfiedUnknownTypeFailsOpen(t *testing.T) {
	c := model.Constraint{Type: model.ConstraintType("SOME_FUTURE_RULE"), Name: "a", Value: "zzz"}
	if !Satisfied(c, map[string][]string{"a": {"1"}}, Context{}) {
		t.Error("unknown constraint type should be vacuously satisfied")
	}
}

func TestSatisfiedAll(t *testing.T) {
	snapshot := map[string][]string{"a": {"1"}}
	cs := []model.Constraint{
		{Type: model.ConstraintVisibleWhen, Name: "a", Value: "1"},
		{Type: model.ConstraintNumeric, Name: "a"},
	}
	if !SatisfiedAll(cs, snapshot, Context{}) {
		t.Error("all satisfied constraints should hold together")
	}

	cs = append(cs, model.Constraint{Type: model.ConstraintVisibleWhen, Name: "a", Value: "9"})
	if SatisfiedAll(cs, snapshot, Context{}) {
		t.Error("one failing constraint should fail the set")
	}
}
