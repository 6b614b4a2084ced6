package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/convohq/playbook/pkg/schema"
)

// resolveCondition evaluates a condition step's branches in array order and
// returns the next step ID of the first match, or the default edge.
//
// A branch whose variable is unset is skipped, even when the comparison value
// is the empty string. String comparisons are case-insensitive. Regex branches
// compile case-insensitively against the raw variable value; compile failures
// are non-matches, never errors.
func (e *Engine) resolveCondition(ctx context.Context, cfg *schema.ConditionConfig, vars map[string]string) string {
	for _, cond := range cfg.Conditions {
		if e.conditionMatches(ctx, cond, vars) {
			return cond.NextStepID
		}
	}
	return cfg.DefaultNextStepID
}

func (e *Engine) conditionMatches(ctx context.Context, cond schema.Condition, vars map[string]string) bool {
	if cond.Operator == schema.OperatorExpression {
		return e.expressionMatches(ctx, cond.Value, vars)
	}

	raw, ok := vars[cond.Variable]
	if !ok {
		return false
	}

	actual := strings.ToLower(raw)
	expected := strings.ToLower(cond.Value)

	switch cond.Operator {
	case schema.OperatorEquals:
		return actual == expected
	case schema.OperatorContains:
		return strings.Contains(actual, expected)
	case schema.OperatorStartsWith:
		return strings.HasPrefix(actual, expected)
	case schema.OperatorRegex:
		re, err := regexp.Compile("(?i)" + cond.Value)
		if err != nil {
			e.logger.WarnContext(ctx, "condition regex does not compile, treating as non-match",
				slog.String("pattern", cond.Value))
			return false
		}
		return re.MatchString(raw)
	default:
		return false
	}
}

// expressionMatches evaluates an expr program with the variable map as its
// environment. Any compile or runtime failure is a non-match.
func (e *Engine) expressionMatches(ctx context.Context, expression string, vars map[string]string) bool {
	if e.expr == nil {
		return false
	}

	env := make(map[string]any, len(vars))
	for k, v := range vars {
		env[k] = v
	}

	out, err := e.expr.Evaluate(ctx, expression, env)
	if err != nil {
		e.logger.WarnContext(ctx, "condition expression failed, treating as non-match",
			slog.String("expression", expression),
			slog.String("error", err.Error()))
		return false
	}

	b, ok := out.(bool)
	return ok && b
}
