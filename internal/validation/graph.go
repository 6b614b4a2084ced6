package validation

import (
	"github.com/convohq/playbook/pkg/schema"
)

// ValidateGraph checks that every edge in a playbook's step set points at an
// existing step or is empty. Cycles are allowed; dangling references are not,
// since the interpreter would only discover them mid-conversation.
func ValidateGraph(steps []*schema.PlaybookStep) error {
	ids := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		if _, dup := ids[step.ID]; dup {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate step id %q", step.ID)
		}
		ids[step.ID] = struct{}{}
	}

	exists := func(id string) bool {
		if id == "" {
			return true
		}
		_, ok := ids[id]
		return ok
	}

	for _, step := range steps {
		if !exists(step.NextStepID) {
			return danglingEdge(step.ID, step.NextStepID)
		}

		switch step.Type {
		case schema.StepTypeOptions:
			cfg, err := step.OptionsConfig()
			if err != nil {
				return err
			}
			for _, opt := range cfg.Options {
				if !exists(opt.NextStepID) {
					return danglingEdge(step.ID, opt.NextStepID)
				}
			}
		case schema.StepTypeCondition:
			cfg, err := step.ConditionConfig()
			if err != nil {
				return err
			}
			for _, cond := range cfg.Conditions {
				if !exists(cond.NextStepID) {
					return danglingEdge(step.ID, cond.NextStepID)
				}
			}
			if !exists(cfg.DefaultNextStepID) {
				return danglingEdge(step.ID, cfg.DefaultNextStepID)
			}
		}
	}
	return nil
}

func danglingEdge(stepID, target string) error {
	return schema.NewErrorf(schema.ErrCodeValidation,
		"edge references unknown step %q", target).WithStep(stepID)
}
