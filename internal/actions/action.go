package actions

import (
	"context"
	"encoding/json"
)

// Action is a named side effect invoked by an action step. Execute must not
// fail the enclosing step chain for recoverable conditions (missing contact
// link, delivery failure); those are logged and swallowed by the action itself
// or reported as errors only when the chain genuinely cannot continue.
type Action interface {
	Name() string
	Execute(ctx context.Context, input ActionInput) error
	Validate(params map[string]any) error
}

// ActionRegistry manages the lifecycle and lookup of available actions.
type ActionRegistry interface {
	Register(action Action) error
	Get(name string) (Action, error)
	List() []string
}

// ActionInput is the execution context provided to an action.
type ActionInput struct {
	BusinessID     string            `json:"business_id"`
	ConversationID string            `json:"conversation_id"`
	Variables      map[string]string `json:"variables"`
	Params         map[string]any    `json:"params,omitempty"`
}

// Param helpers used by all action files.

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func intParam(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return defaultVal
		}
		return int(i)
	default:
		return defaultVal
	}
}
