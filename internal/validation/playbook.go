package validation

import (
	"regexp"

	"github.com/convohq/playbook/pkg/schema"
)

// ValidatePlaybook checks that a playbook's trigger configuration is coherent
// with its trigger type. URL patterns must compile; a pattern that only fails
// at runtime would silently never match.
func ValidatePlaybook(pb *schema.Playbook) error {
	if pb == nil {
		return schema.NewError(schema.ErrCodeValidation, "playbook is nil")
	}
	if pb.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "playbook name is required")
	}
	if pb.BusinessID == "" {
		return schema.NewError(schema.ErrCodeValidation, "playbook business_id is required")
	}

	switch pb.TriggerType {
	case schema.TriggerKeyword:
		if len(pb.TriggerConfig.Keywords) == 0 {
			return schema.NewError(schema.ErrCodeValidation, "keyword trigger requires at least one keyword")
		}
	case schema.TriggerIntent:
		if len(pb.TriggerConfig.Intents) == 0 {
			return schema.NewError(schema.ErrCodeValidation, "intent trigger requires at least one intent")
		}
	case schema.TriggerURL:
		if len(pb.TriggerConfig.URLPatterns) == 0 {
			return schema.NewError(schema.ErrCodeValidation, "url trigger requires at least one pattern")
		}
		for _, pattern := range pb.TriggerConfig.URLPatterns {
			if _, err := regexp.Compile("(?i)" + pattern); err != nil {
				return schema.NewErrorf(schema.ErrCodeValidation,
					"url pattern %q does not compile", pattern).WithCause(err)
			}
		}
	case schema.TriggerManual, schema.TriggerFirstMessage:
		// No trigger config required.
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown trigger type %q", pb.TriggerType)
	}

	return nil
}
