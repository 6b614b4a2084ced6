// Package validation checks playbooks and steps at write time, so the
// interpreter can decode step configs without re-checking shape at every turn.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/convohq/playbook/pkg/schema"
)

// Per-step-type config schemas, embedded as constants to avoid filesystem
// dependencies. Unknown step types validate against no schema at all, which
// keeps old engines forward compatible with new step kinds.
var stepConfigSchemas = map[schema.StepType]string{
	schema.StepTypeMessage: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["message"],
	  "properties": {
	    "message": { "type": "string", "minLength": 1 }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeQuestion: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["question", "variable_name"],
	  "properties": {
	    "question": { "type": "string", "minLength": 1 },
	    "variable_name": { "type": "string", "minLength": 1 },
	    "validation": { "type": "string", "enum": ["email", "phone", "number", "text"] }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeOptions: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["question", "options"],
	  "properties": {
	    "question": { "type": "string", "minLength": 1 },
	    "variable_name": { "type": "string" },
	    "options": {
	      "type": "array",
	      "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["label", "value"],
	        "properties": {
	          "label": { "type": "string", "minLength": 1 },
	          "value": { "type": "string", "minLength": 1 },
	          "next_step_id": { "type": "string" }
	        },
	        "additionalProperties": false
	      }
	    }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeCondition: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["conditions"],
	  "properties": {
	    "conditions": {
	      "type": "array",
	      "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["operator"],
	        "properties": {
	          "variable": { "type": "string" },
	          "operator": { "type": "string", "enum": ["equals", "contains", "startsWith", "regex", "expression"] },
	          "value": { "type": "string" },
	          "next_step_id": { "type": "string" }
	        },
	        "additionalProperties": false
	      }
	    },
	    "default_next_step_id": { "type": "string" }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeAction: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "required": ["action_type"],
	  "properties": {
	    "action_type": { "type": "string", "enum": ["capture_contact", "add_tag", "set_score", "webhook"] },
	    "action_params": { "type": "object" }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeHandoff: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "properties": {
	    "message": { "type": "string" },
	    "department": { "type": "string" },
	    "priority": { "type": "integer", "minimum": 0 }
	  },
	  "additionalProperties": false
	}`,
	schema.StepTypeStop: `{
	  "$schema": "https://json-schema.org/draft/2020-12/schema",
	  "type": "object",
	  "additionalProperties": false
	}`,
}

// StepValidator validates step configs against per-type JSON Schemas.
// Safe for concurrent use; schemas are compiled once at construction.
type StepValidator struct {
	schemas map[schema.StepType]*jsonschema.Schema
}

// NewStepValidator compiles all step config schemas.
func NewStepValidator() (*StepValidator, error) {
	compiled := make(map[schema.StepType]*jsonschema.Schema, len(stepConfigSchemas))
	for stepType, raw := range stepConfigSchemas {
		c := jsonschema.NewCompiler()
		c.AssertFormat()

		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", stepType, err)
		}
		url := fmt.Sprintf("playbook://schemas/step-%s.json", stepType)
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", stepType, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", stepType, err)
		}
		compiled[stepType] = s
	}
	return &StepValidator{schemas: compiled}, nil
}

// ValidateStep checks a step's config payload against its type's schema, plus
// the structural rules JSON Schema cannot express.
func (v *StepValidator) ValidateStep(step *schema.PlaybookStep) error {
	if step == nil {
		return schema.NewError(schema.ErrCodeValidation, "step is nil")
	}

	compiled, ok := v.schemas[step.Type]
	if !ok {
		// Unknown step types pass through; the interpreter degrades them to
		// an empty message at runtime.
		return nil
	}

	raw := step.Config
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "step config is not valid JSON").
			WithStep(step.ID).WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toEngineError(err).WithStep(step.ID)
	}

	return v.checkStructure(step)
}

// checkStructure enforces cross-field rules per step type.
func (v *StepValidator) checkStructure(step *schema.PlaybookStep) error {
	switch step.Type {
	case schema.StepTypeCondition:
		cfg, err := step.ConditionConfig()
		if err != nil {
			return err
		}
		for i, cond := range cfg.Conditions {
			if cond.Operator == schema.OperatorExpression {
				if cond.Value == "" {
					return schema.NewErrorf(schema.ErrCodeValidation,
						"condition %d: expression operator requires a value", i).WithStep(step.ID)
				}
				continue
			}
			if cond.Variable == "" {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"condition %d: missing variable", i).WithStep(step.ID)
			}
		}
	case schema.StepTypeOptions:
		cfg, err := step.OptionsConfig()
		if err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(cfg.Options))
		for _, opt := range cfg.Options {
			if _, dup := seen[opt.Value]; dup {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"duplicate option value %q", opt.Value).WithStep(step.ID)
			}
			seen[opt.Value] = struct{}{}
		}
	}
	return nil
}

// toEngineError converts a jsonschema.ValidationError into an EngineError with
// one message per leaf violation.
func toEngineError(err error) *schema.EngineError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	return schema.NewErrorf(schema.ErrCodeValidation, "step config failed with %d errors", len(violations)).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
