package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

// TriggerContext carries the conversation-side inputs of trigger evaluation.
type TriggerContext struct {
	BusinessID     string
	BotID          string
	ConversationID string
	IsFirstMessage bool
	CurrentURL     string
}

// CheckTriggers returns the highest-priority active playbook whose trigger
// matches the inbound message, or nil when none match. Playbooks are evaluated
// in priority-descending order and the first match wins; ties fall back to
// storage order.
func (e *Engine) CheckTriggers(ctx context.Context, message string, tc TriggerContext) (*schema.Playbook, error) {
	status := schema.PlaybookStatusActive
	playbooks, err := e.playbooks.ListPlaybooks(ctx, store.PlaybookFilter{
		BusinessID: tc.BusinessID,
		BotID:      tc.BotID,
		Status:     &status,
	})
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(message)
	for _, pb := range playbooks {
		if e.triggerMatches(ctx, pb, lowered, tc) {
			e.logger.InfoContext(ctx, "trigger matched",
				slog.String("playbook_id", pb.ID),
				slog.String("trigger_type", string(pb.TriggerType)),
				slog.Int("priority", pb.Priority))
			return pb, nil
		}
	}
	return nil, nil
}

func (e *Engine) triggerMatches(ctx context.Context, pb *schema.Playbook, loweredMessage string, tc TriggerContext) bool {
	switch pb.TriggerType {
	case schema.TriggerFirstMessage:
		return tc.IsFirstMessage

	case schema.TriggerKeyword:
		for _, kw := range pb.TriggerConfig.Keywords {
			if kw != "" && strings.Contains(loweredMessage, strings.ToLower(kw)) {
				return true
			}
		}
		return false

	case schema.TriggerIntent:
		// Substring matching stands in for intent classification until a real
		// classifier is plugged in.
		for _, intent := range pb.TriggerConfig.Intents {
			if intent != "" && strings.Contains(loweredMessage, strings.ToLower(intent)) {
				return true
			}
		}
		return false

	case schema.TriggerURL:
		if tc.CurrentURL == "" {
			return false
		}
		for _, pattern := range pb.TriggerConfig.URLPatterns {
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				e.logger.WarnContext(ctx, "url trigger pattern does not compile, skipping",
					slog.String("playbook_id", pb.ID),
					slog.String("pattern", pattern))
				continue
			}
			if re.MatchString(tc.CurrentURL) {
				return true
			}
		}
		return false

	case schema.TriggerManual:
		return false

	default:
		return false
	}
}
