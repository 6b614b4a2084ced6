package schema

import "time"

// ExecutionStatus is the lifecycle state of a playbook execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusAbandoned ExecutionStatus = "abandoned"
	ExecutionStatusHandedOff ExecutionStatus = "handed_off"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s != ExecutionStatusActive
}

// ValidExecutionTransitions defines the allowed execution state transitions.
// Terminal states are immutable except for historical queries.
var ValidExecutionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionStatusActive: {
		ExecutionStatusCompleted,
		ExecutionStatusAbandoned,
		ExecutionStatusHandedOff,
	},
	ExecutionStatusCompleted: {},
	ExecutionStatusAbandoned: {},
	ExecutionStatusHandedOff: {},
}

// CanTransition reports whether the execution may move from one status to another.
func CanTransition(from, to ExecutionStatus) bool {
	for _, allowed := range ValidExecutionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ExecutionState is the engine-facing snapshot of a playbook execution,
// returned by StartPlaybook.
type ExecutionState struct {
	ExecutionID    string            `json:"execution_id"`
	PlaybookID     string            `json:"playbook_id"`
	ConversationID string            `json:"conversation_id"`
	CurrentStepID  string            `json:"current_step_id,omitempty"`
	Variables      map[string]string `json:"variables"`
	Status         ExecutionStatus   `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
}
