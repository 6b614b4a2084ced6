package schema

import (
	"encoding/json"
	"time"
)

// PlaybookStatus is the lifecycle state of a playbook.
type PlaybookStatus string

const (
	PlaybookStatusDraft  PlaybookStatus = "draft"
	PlaybookStatusActive PlaybookStatus = "active"
	PlaybookStatusPaused PlaybookStatus = "paused"
)

// TriggerType determines how a playbook is started for a conversation.
type TriggerType string

const (
	TriggerKeyword      TriggerType = "keyword"
	TriggerIntent       TriggerType = "intent"
	TriggerURL          TriggerType = "url"
	TriggerManual       TriggerType = "manual"
	TriggerFirstMessage TriggerType = "first_message"
)

// TriggerConfig holds the trigger-type-specific matching inputs.
// Only the slice relevant to the playbook's TriggerType is consulted.
type TriggerConfig struct {
	Keywords    []string `json:"keywords,omitempty"`
	Intents     []string `json:"intents,omitempty"`
	URLPatterns []string `json:"url_patterns,omitempty"`
}

// Playbook is an operator-authored, triggerable conversation flow.
type Playbook struct {
	ID            string         `json:"id"`
	BusinessID    string         `json:"business_id"`
	BotID         string         `json:"bot_id,omitempty"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	TriggerType   TriggerType    `json:"trigger_type"`
	TriggerConfig TriggerConfig  `json:"trigger_config"`
	Priority      int            `json:"priority"`
	Status        PlaybookStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StepType enumerates the kinds of steps in a playbook graph.
type StepType string

const (
	StepTypeMessage   StepType = "message"
	StepTypeQuestion  StepType = "question"
	StepTypeOptions   StepType = "options"
	StepTypeCondition StepType = "condition"
	StepTypeAction    StepType = "action"
	StepTypeHandoff   StepType = "handoff"
	StepTypeStop      StepType = "stop"
)

// Interactive reports whether the step type waits for user input before advancing.
// Non-interactive steps (condition, action) are chained through within a single turn.
func (t StepType) Interactive() bool {
	return t != StepTypeCondition && t != StepTypeAction
}

// PlaybookStep is one node in a playbook's directed graph. Config is the raw
// type-specific payload; decode it with the typed accessors below. Steps may
// form cycles (e.g. a condition routing back to an earlier question).
type PlaybookStep struct {
	ID         string          `json:"id"`
	PlaybookID string          `json:"playbook_id"`
	Type       StepType        `json:"type"`
	Name       string          `json:"name,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Position   int             `json:"position"`
	NextStepID string          `json:"next_step_id,omitempty"`
	X          float64         `json:"x,omitempty"`
	Y          float64         `json:"y,omitempty"`
}

// Validation enumerates the question-step input validators.
type Validation string

const (
	ValidationEmail  Validation = "email"
	ValidationPhone  Validation = "phone"
	ValidationNumber Validation = "number"
	ValidationText   Validation = "text"
)

// MessageConfig is the payload of a message step.
type MessageConfig struct {
	Message string `json:"message"`
}

// QuestionConfig is the payload of a question step.
type QuestionConfig struct {
	Question     string     `json:"question"`
	VariableName string     `json:"variable_name"`
	Validation   Validation `json:"validation,omitempty"`
}

// Option is one selectable choice of an options step.
type Option struct {
	Label      string `json:"label"`
	Value      string `json:"value"`
	NextStepID string `json:"next_step_id,omitempty"`
}

// OptionsConfig is the payload of an options step.
type OptionsConfig struct {
	Question     string   `json:"question"`
	VariableName string   `json:"variable_name,omitempty"`
	Options      []Option `json:"options"`
}

// ConditionOperator enumerates the comparison operators of a condition branch.
type ConditionOperator string

const (
	OperatorEquals     ConditionOperator = "equals"
	OperatorContains   ConditionOperator = "contains"
	OperatorStartsWith ConditionOperator = "startsWith"
	OperatorRegex      ConditionOperator = "regex"
	// OperatorExpression evaluates an expr-lang program against the variable
	// map; a compile or runtime failure is treated as a non-match.
	OperatorExpression ConditionOperator = "expression"
)

// Condition is one branch of a condition step, evaluated in array order.
type Condition struct {
	Variable   string            `json:"variable"`
	Operator   ConditionOperator `json:"operator"`
	Value      string            `json:"value"`
	NextStepID string            `json:"next_step_id,omitempty"`
}

// ConditionConfig is the payload of a condition step.
type ConditionConfig struct {
	Conditions        []Condition `json:"conditions"`
	DefaultNextStepID string      `json:"default_next_step_id,omitempty"`
}

// ActionType enumerates the side effects an action step can perform.
type ActionType string

const (
	ActionCaptureContact ActionType = "capture_contact"
	ActionAddTag         ActionType = "add_tag"
	ActionSetScore       ActionType = "set_score"
	ActionWebhook        ActionType = "webhook"
)

// ActionConfig is the payload of an action step. ActionParams carries the
// action-type-specific parameters (tag, score, url, payload_filter).
type ActionConfig struct {
	ActionType   ActionType     `json:"action_type"`
	ActionParams map[string]any `json:"action_params,omitempty"`
}

// HandoffConfig is the payload of a handoff step.
type HandoffConfig struct {
	Message    string `json:"message,omitempty"`
	Department string `json:"department,omitempty"`
	Priority   int    `json:"priority,omitempty"`
}

// --- Typed config accessors ---

func decodeConfig[T any](raw json.RawMessage) (*T, error) {
	cfg := new(T)
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, NewError(ErrCodeValidation, "malformed step config").WithCause(err)
	}
	return cfg, nil
}

// MessageConfig decodes the step's config as a message payload.
func (s *PlaybookStep) MessageConfig() (*MessageConfig, error) {
	return decodeConfig[MessageConfig](s.Config)
}

// QuestionConfig decodes the step's config as a question payload.
func (s *PlaybookStep) QuestionConfig() (*QuestionConfig, error) {
	return decodeConfig[QuestionConfig](s.Config)
}

// OptionsConfig decodes the step's config as an options payload.
func (s *PlaybookStep) OptionsConfig() (*OptionsConfig, error) {
	return decodeConfig[OptionsConfig](s.Config)
}

// ConditionConfig decodes the step's config as a condition payload.
func (s *PlaybookStep) ConditionConfig() (*ConditionConfig, error) {
	return decodeConfig[ConditionConfig](s.Config)
}

// ActionConfig decodes the step's config as an action payload.
func (s *PlaybookStep) ActionConfig() (*ActionConfig, error) {
	return decodeConfig[ActionConfig](s.Config)
}

// HandoffConfig decodes the step's config as a handoff payload.
func (s *PlaybookStep) HandoffConfig() (*HandoffConfig, error) {
	return decodeConfig[HandoffConfig](s.Config)
}
