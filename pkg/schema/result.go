package schema

// ResultType classifies what a ProcessStep call produced.
type ResultType string

const (
	ResultMessage  ResultType = "message"
	ResultQuestion ResultType = "question"
	ResultOptions  ResultType = "options"
	ResultHandoff  ResultType = "handoff"
	ResultComplete ResultType = "complete"
	ResultError    ResultType = "error"
)

// StepResult is the outcome of one inbound-message turn. A single turn may
// have chained through several non-interactive steps before producing it.
type StepResult struct {
	Type         ResultType   `json:"type"`
	Content      string       `json:"content,omitempty"`
	Options      []Option     `json:"options,omitempty"`
	VariableName string       `json:"variable_name,omitempty"`
	Validation   Validation   `json:"validation,omitempty"`
	NextStepID   string       `json:"next_step_id,omitempty"`
	Err          *EngineError `json:"error,omitempty"`
}

// ErrorResult builds an error StepResult from an EngineError.
func ErrorResult(err *EngineError) *StepResult {
	return &StepResult{Type: ResultError, Err: err}
}
