// Package constraint evaluates declarative field and screen constraints
// against a snapshot of instance data. Evaluation is a pure function of the
// constraint, the snapshot, and the evaluation context; no I/O, no state.
package constraint

import (
	"regexp"
	"strconv"

	"github.com/formflow/formflow/model"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Confirmation numbers are the upper-case alphanumeric identifiers minted for
// process instances.
var confirmationPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Context carries the request-scoped inputs a constraint may consult beyond
// the field snapshot.
type Context struct {
	Action model.ActionType
}

// Satisfied reports whether the constraint holds against the snapshot.
// Unknown constraint types are vacuously satisfied: display constraints fail
// open, and the validation layer (which fails closed) has its own evaluator.
func Satisfied(c model.Constraint, snapshot map[string][]string, ectx Context) bool {
	switch c.Type {
	case model.ConstraintAnd:
		for _, sub := range c.Subconstraints {
			if !Satisfied(sub, snapshot, ectx) {
				return false
			}
		}
		return true

	case model.ConstraintOr:
		if len(c.Subconstraints) == 0 {
			return true
		}
		for _, sub := range c.Subconstraints {
			if Satisfied(sub, snapshot, ectx) {
				return true
			}
		}
		return false

	case model.ConstraintRequiredWhen, model.ConstraintVisibleWhen:
		return namedFieldMatches(c, snapshot)

	case model.ConstraintNumeric:
		return allValuesSatisfy(snapshot[c.Name], func(v string) bool {
			_, err := strconv.ParseFloat(v, 64)
			return err == nil
		})

	case model.ConstraintEmailAddress:
		return allValuesSatisfy(snapshot[c.Name], emailPattern.MatchString)

	case model.ConstraintConfirmationNumber:
		return allValuesSatisfy(snapshot[c.Name], confirmationPattern.MatchString)

	case model.ConstraintLimitedTo:
		allowed := make(map[string]bool, len(c.Options))
		for _, opt := range c.Options {
			allowed[opt] = true
		}
		return allValuesSatisfy(snapshot[c.Name], func(v string) bool {
			return allowed[v]
		})

	case model.ConstraintAllValuesMatch:
		values := snapshot[c.Name]
		for i := 1; i < len(values); i++ {
			if values[i] != values[0] {
				return false
			}
		}
		return true

	case model.ConstraintScreenAction:
		return c.ActionType == ectx.Action

	default:
		return true
	}
}

// SatisfiedAll reports whether every constraint in the list holds.
func SatisfiedAll(cs []model.Constraint, snapshot map[string][]string, ectx Context) bool {
	for _, c := range cs {
		if !Satisfied(c, snapshot, ectx) {
			return false
		}
	}
	return true
}

// namedFieldMatches evaluates an IS_ONLY_*_WHEN constraint: the named field
// must have at least one value equal to the expected value, or matching it
// when the expected value is a regular expression. An absent field never
// matches.
func namedFieldMatches(c model.Constraint, snapshot map[string][]string) bool {
	values := snapshot[c.Name]
	if len(values) == 0 {
		return false
	}

	for _, v := range values {
		if v == c.Value {
			return true
		}
	}

	// Fall back to treating the expected value as an anchored regular
	// expression. A non-compiling expression is an exact-match-only rule.
	re, err := regexp.Compile("^(?:" + c.Value + ")$")
	if err != nil {
		return false
	}
	for _, v := range values {
		if re.MatchString(v) {
			return true
		}
	}
	return false
}

// allValuesSatisfy reports whether every value passes the predicate. An empty
// value list is vacuously satisfied; requiredness is a separate rule.
func allValuesSatisfy(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}
