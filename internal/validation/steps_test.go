package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convohq/playbook/pkg/schema"
)

func newValidator(t *testing.T) *StepValidator {
	t.Helper()
	v, err := NewStepValidator()
	require.NoError(t, err)
	return v
}

func step(stepType schema.StepType, config string) *schema.PlaybookStep {
	return &schema.PlaybookStep{
		ID:     "s1",
		Type:   stepType,
		Config: json.RawMessage(config),
	}
}

func TestValidateStep(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		step    *schema.PlaybookStep
		wantErr bool
	}{
		{
			name: "valid message",
			step: step(schema.StepTypeMessage, `{"message": "Hello!"}`),
		},
		{
			name:    "message without text",
			step:    step(schema.StepTypeMessage, `{}`),
			wantErr: true,
		},
		{
			name:    "message with empty text",
			step:    step(schema.StepTypeMessage, `{"message": ""}`),
			wantErr: true,
		},
		{
			name: "valid question",
			step: step(schema.StepTypeQuestion, `{"question": "Email?", "variable_name": "email", "validation": "email"}`),
		},
		{
			name:    "question without variable name",
			step:    step(schema.StepTypeQuestion, `{"question": "Email?"}`),
			wantErr: true,
		},
		{
			name:    "question with bad validation kind",
			step:    step(schema.StepTypeQuestion, `{"question": "Zip?", "variable_name": "zip", "validation": "zipcode"}`),
			wantErr: true,
		},
		{
			name: "valid options",
			step: step(schema.StepTypeOptions, `{"question": "Plan?", "options": [{"label": "Pro", "value": "pro"}]}`),
		},
		{
			name:    "options with empty list",
			step:    step(schema.StepTypeOptions, `{"question": "Plan?", "options": []}`),
			wantErr: true,
		},
		{
			name:    "options with duplicate values",
			step:    step(schema.StepTypeOptions, `{"question": "Plan?", "options": [{"label": "A", "value": "x"}, {"label": "B", "value": "x"}]}`),
			wantErr: true,
		},
		{
			name: "valid condition",
			step: step(schema.StepTypeCondition, `{"conditions": [{"variable": "plan", "operator": "equals", "value": "pro"}]}`),
		},
		{
			name:    "condition with unknown operator",
			step:    step(schema.StepTypeCondition, `{"conditions": [{"variable": "plan", "operator": "endsWith", "value": "o"}]}`),
			wantErr: true,
		},
		{
			name:    "condition branch without variable",
			step:    step(schema.StepTypeCondition, `{"conditions": [{"operator": "equals", "value": "pro"}]}`),
			wantErr: true,
		},
		{
			name: "expression branch needs no variable",
			step: step(schema.StepTypeCondition, `{"conditions": [{"operator": "expression", "value": "score > 50"}]}`),
		},
		{
			name:    "expression branch without value",
			step:    step(schema.StepTypeCondition, `{"conditions": [{"operator": "expression"}]}`),
			wantErr: true,
		},
		{
			name: "valid action",
			step: step(schema.StepTypeAction, `{"action_type": "add_tag", "action_params": {"tag": "vip"}}`),
		},
		{
			name:    "action with unknown type",
			step:    step(schema.StepTypeAction, `{"action_type": "launch_rocket"}`),
			wantErr: true,
		},
		{
			name: "valid handoff",
			step: step(schema.StepTypeHandoff, `{"department": "sales", "priority": 2}`),
		},
		{
			name: "handoff with empty config",
			step: step(schema.StepTypeHandoff, `{}`),
		},
		{
			name:    "handoff with negative priority",
			step:    step(schema.StepTypeHandoff, `{"priority": -1}`),
			wantErr: true,
		},
		{
			name: "stop with no config",
			step: &schema.PlaybookStep{ID: "s1", Type: schema.StepTypeStop},
		},
		{
			name:    "stop rejects stray fields",
			step:    step(schema.StepTypeStop, `{"anything": true}`),
			wantErr: true,
		},
		{
			name: "unknown step type passes through",
			step: step(schema.StepType("carousel"), `{"whatever": 1}`),
		},
		{
			name:    "malformed json",
			step:    step(schema.StepTypeMessage, `{"message":`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStep(tt.step)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
