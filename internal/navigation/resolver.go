// Package navigation resolves which screen of a multi-step interaction to
// present. Resolution is a pure function of the process definition, the
// current position, the instance data snapshot, and the action being
// performed; it holds no state and performs no I/O.
package navigation

import (
	"sort"

	"github.com/formflow/formflow/internal/constraint"
	"github.com/formflow/formflow/model"
)

// FirstInteraction returns the process's first interaction, or a
// MISCONFIGURED_PROCESS error when the process has none.
func FirstInteraction(p *model.Process) (*model.Interaction, error) {
	if p == nil || len(p.Interactions) == 0 {
		return nil, model.NewMisconfiguredProcessError("process has no interactions")
	}
	return &p.Interactions[0], nil
}

// InteractionForTask locates the interaction whose task-definition-key set
// contains the task's definition key.
func InteractionForTask(p *model.Process, t *model.Task) (*model.Interaction, error) {
	if p == nil || len(p.Interactions) == 0 {
		return nil, model.NewMisconfiguredProcessError("process has no interactions")
	}
	if t == nil {
		return &p.Interactions[0], nil
	}
	for i := range p.Interactions {
		if p.Interactions[i].MatchesTask(t.TaskDefinitionKey) {
			return &p.Interactions[i], nil
		}
	}
	return nil, model.NewMisconfiguredProcessError(
		"no interaction matches task definition key " + t.TaskDefinitionKey)
}

// CurrentScreen returns the screen to present when entering an interaction.
// With a task, the interaction is located through the task's definition key;
// without one, the process's first interaction is used. The result is always
// the interaction's first screen by ordinal.
func CurrentScreen(p *model.Process, t *model.Task) (*model.Interaction, *model.Screen, error) {
	var (
		interaction *model.Interaction
		err         error
	)
	if t != nil {
		interaction, err = InteractionForTask(p, t)
	} else {
		interaction, err = FirstInteraction(p)
	}
	if err != nil {
		return nil, nil, err
	}

	screen, err := firstScreen(interaction)
	if err != nil {
		return nil, nil, err
	}
	return interaction, screen, nil
}

// NextScreen walks the interaction's screens in ordinal order starting just
// after current (or from the first screen when current is nil) and returns
// the first screen whose display constraints are satisfied against the
// snapshot for the given action. A screen with no display constraints is
// always eligible. Returns nil when no later screen qualifies; the caller
// interprets nil as "interaction complete".
func NextScreen(interaction *model.Interaction, current *model.Screen, snapshot map[string][]string, action model.ActionType) *model.Screen {
	if interaction == nil {
		return nil
	}

	screens := orderedScreens(interaction)
	start := 0
	if current != nil {
		for i, s := range screens {
			if s.Ordinal == current.Ordinal {
				start = i + 1
				break
			}
		}
	}

	ectx := constraint.Context{Action: action}
	for _, s := range screens[min(start, len(screens)):] {
		if constraint.SatisfiedAll(s.Constraints, snapshot, ectx) {
			return s
		}
	}
	return nil
}

// HasNextScreen reports whether any screen would follow current for the
// given snapshot and action. Used to decide between interim and final
// submission markers.
func HasNextScreen(interaction *model.Interaction, current *model.Screen, snapshot map[string][]string, action model.ActionType) bool {
	return NextScreen(interaction, current, snapshot, action) != nil
}

func firstScreen(interaction *model.Interaction) (*model.Screen, error) {
	screens := orderedScreens(interaction)
	if len(screens) == 0 {
		return nil, model.NewMisconfiguredProcessError(
			"interaction " + interaction.Label + " has no screens")
	}
	return screens[0], nil
}

// orderedScreens returns pointers to the interaction's screens sorted by
// ordinal. The definition loader normally guarantees order; sorting here
// keeps resolution correct for hand-built definitions too.
func orderedScreens(interaction *model.Interaction) []*model.Screen {
	screens := make([]*model.Screen, len(interaction.Screens))
	for i := range interaction.Screens {
		screens[i] = &interaction.Screens[i]
	}
	sort.SliceStable(screens, func(i, j int) bool {
		return screens[i].Ordinal < screens[j].Ordinal
	})
	return screens
}
