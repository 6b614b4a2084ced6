package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/convohq/playbook/internal/actions"
	"github.com/convohq/playbook/internal/handoff"
	"github.com/convohq/playbook/internal/logging"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

// turnState carries the mutable state of one inbound-message turn. hops counts
// auto-chained non-interactive steps against maxChainHops.
type turnState struct {
	exec *store.Execution
	hops int
}

// promptStep renders the current step without consuming input. Message steps
// auto-advance their cursor as part of rendering; condition and action steps
// never prompt, so landing on one resolves it and keeps chaining.
func (e *Engine) promptStep(ctx context.Context, turn *turnState, step *schema.PlaybookStep) *schema.StepResult {
	ctx = logging.WithStepID(ctx, step.ID)
	vars := turn.exec.Variables

	switch step.Type {
	case schema.StepTypeMessage:
		cfg, err := step.MessageConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		content := Interpolate(cfg.Message, vars)
		if res := e.saveProgress(ctx, turn, step.NextStepID); res != nil {
			return res
		}
		e.recordBotMessage(ctx, turn.exec.ConversationID, step.ID, content)
		return &schema.StepResult{
			Type:       schema.ResultMessage,
			Content:    content,
			NextStepID: step.NextStepID,
		}

	case schema.StepTypeQuestion:
		cfg, err := step.QuestionConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		content := Interpolate(cfg.Question, vars)
		e.recordBotMessage(ctx, turn.exec.ConversationID, step.ID, content)
		return &schema.StepResult{
			Type:         schema.ResultQuestion,
			Content:      content,
			VariableName: cfg.VariableName,
			Validation:   cfg.Validation,
		}

	case schema.StepTypeOptions:
		cfg, err := step.OptionsConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		content := Interpolate(cfg.Question, vars)
		e.recordBotMessage(ctx, turn.exec.ConversationID, step.ID, content)
		return &schema.StepResult{
			Type:         schema.ResultOptions,
			Content:      content,
			Options:      cfg.Options,
			VariableName: cfg.VariableName,
		}

	case schema.StepTypeCondition, schema.StepTypeAction:
		return e.resolveStep(ctx, turn, step)

	case schema.StepTypeHandoff:
		return e.dispatchHandoff(ctx, turn, step)

	case schema.StepTypeStop:
		return e.finish(ctx, turn.exec, schema.ExecutionStatusCompleted)

	default:
		// Unknown step types degrade to an empty message and follow the
		// default edge, preserving forward compatibility.
		e.logger.WarnContext(ctx, "unknown step type, advancing",
			slog.String("step_type", string(step.Type)))
		if res := e.saveProgress(ctx, turn, step.NextStepID); res != nil {
			return res
		}
		return &schema.StepResult{Type: schema.ResultMessage, NextStepID: step.NextStepID}
	}
}

// applyInput consumes user input at the current step and advances the
// execution, chaining through non-interactive steps until the playbook needs
// input again or terminates.
func (e *Engine) applyInput(ctx context.Context, turn *turnState, step *schema.PlaybookStep, input string) *schema.StepResult {
	ctx = logging.WithStepID(ctx, step.ID)

	switch step.Type {
	case schema.StepTypeQuestion:
		cfg, err := step.QuestionConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		answer := strings.TrimSpace(input)
		if !ValidAnswer(cfg.Validation, answer) {
			// Re-render the same question; the cursor does not move and
			// nothing is stored, but the attempt still counts as activity
			// for the abandonment sweep.
			if res := e.saveProgress(ctx, turn, step.ID); res != nil {
				return res
			}
			return &schema.StepResult{
				Type:         schema.ResultQuestion,
				Content:      Interpolate(cfg.Question, turn.exec.Variables),
				VariableName: cfg.VariableName,
				Validation:   cfg.Validation,
			}
		}
		if cfg.VariableName != "" {
			turn.exec.Variables[cfg.VariableName] = answer
		}
		return e.advance(ctx, turn, step.NextStepID)

	case schema.StepTypeOptions:
		cfg, err := step.OptionsConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		next := step.NextStepID
		for _, opt := range cfg.Options {
			if input == opt.Value || input == opt.Label {
				if cfg.VariableName != "" {
					turn.exec.Variables[cfg.VariableName] = input
				}
				if opt.NextStepID != "" {
					next = opt.NextStepID
				}
				break
			}
		}
		return e.advance(ctx, turn, next)

	case schema.StepTypeCondition, schema.StepTypeAction:
		// Non-interactive steps ignore input; a cursor parked here just resolves.
		return e.resolveStep(ctx, turn, step)

	case schema.StepTypeHandoff:
		return e.dispatchHandoff(ctx, turn, step)

	case schema.StepTypeStop:
		return e.finish(ctx, turn.exec, schema.ExecutionStatusCompleted)

	case schema.StepTypeMessage:
		// Message steps never receive input directly; render and move on.
		return e.promptStep(ctx, turn, step)

	default:
		return e.advance(ctx, turn, step.NextStepID)
	}
}

// resolveStep runs a non-interactive step (condition or action) and continues
// the chain from its outcome.
func (e *Engine) resolveStep(ctx context.Context, turn *turnState, step *schema.PlaybookStep) *schema.StepResult {
	ctx = logging.WithStepID(ctx, step.ID)

	switch step.Type {
	case schema.StepTypeCondition:
		cfg, err := step.ConditionConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		next := e.resolveCondition(ctx, cfg, turn.exec.Variables)
		return e.advance(ctx, turn, next)

	case schema.StepTypeAction:
		cfg, err := step.ActionConfig()
		if err != nil {
			return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
		}
		if res := e.executeAction(ctx, turn, step, cfg); res != nil {
			return res
		}
		return e.advance(ctx, turn, step.NextStepID)

	default:
		return e.advance(ctx, turn, step.NextStepID)
	}
}

// advance persists the new cursor and either chains into the next step or
// returns its prompt. An empty nextStepID completes the execution.
func (e *Engine) advance(ctx context.Context, turn *turnState, nextStepID string) *schema.StepResult {
	if nextStepID == "" {
		if err := e.executions.SaveProgress(ctx, turn.exec.ID, "", turn.exec.Variables); err != nil {
			return schema.ErrorResult(asEngineError(err))
		}
		return e.finish(ctx, turn.exec, schema.ExecutionStatusCompleted)
	}

	next, err := e.playbooks.GetStep(ctx, nextStepID)
	if err != nil {
		return schema.ErrorResult(asEngineError(err).WithStep(nextStepID))
	}

	if res := e.saveProgress(ctx, turn, nextStepID); res != nil {
		return res
	}

	if !next.Type.Interactive() {
		turn.hops++
		if turn.hops > maxChainHops {
			return schema.ErrorResult(schema.NewErrorf(schema.ErrCodeChainLimit,
				"exceeded %d auto-chained steps in one turn", maxChainHops).WithStep(nextStepID))
		}
		return e.resolveStep(ctx, turn, next)
	}

	return e.promptStep(ctx, turn, next)
}

// saveProgress commits the cursor and variable map. Committed state is the
// retry point if a later hop in the same turn fails.
func (e *Engine) saveProgress(ctx context.Context, turn *turnState, currentStepID string) *schema.StepResult {
	if err := e.executions.SaveProgress(ctx, turn.exec.ID, currentStepID, turn.exec.Variables); err != nil {
		return schema.ErrorResult(asEngineError(err))
	}
	turn.exec.CurrentStepID = currentStepID
	turn.exec.LastActivityAt = time.Now().UTC()
	return nil
}

// executeAction invokes the configured action. Unknown action types are logged
// and skipped so old executions survive action-set changes. A non-nil result
// means the turn must stop.
func (e *Engine) executeAction(ctx context.Context, turn *turnState, step *schema.PlaybookStep, cfg *schema.ActionConfig) *schema.StepResult {
	action, err := e.registry.Get(string(cfg.ActionType))
	if err != nil {
		e.logger.WarnContext(ctx, "action not registered, skipping",
			slog.String("action_type", string(cfg.ActionType)))
		return nil
	}

	businessID, resErr := e.businessID(ctx, turn)
	if resErr != nil {
		return resErr
	}

	input := actions.ActionInput{
		BusinessID:     businessID,
		ConversationID: turn.exec.ConversationID,
		Variables:      turn.exec.Variables,
		Params:         cfg.ActionParams,
	}
	if err := action.Execute(ctx, input); err != nil {
		return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
	}

	e.logger.InfoContext(ctx, "action executed", slog.String("action_type", string(cfg.ActionType)))
	return nil
}

// dispatchHandoff routes the conversation to the live-agent queue and
// terminates the execution as handed_off.
func (e *Engine) dispatchHandoff(ctx context.Context, turn *turnState, step *schema.PlaybookStep) *schema.StepResult {
	ctx = logging.WithStepID(ctx, step.ID)

	cfg, err := step.HandoffConfig()
	if err != nil {
		return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
	}

	businessID, resErr := e.businessID(ctx, turn)
	if resErr != nil {
		return resErr
	}

	if _, err := e.dispatcher.Dispatch(ctx, handoff.Request{
		BusinessID:     businessID,
		ConversationID: turn.exec.ConversationID,
		Department:     cfg.Department,
		Priority:       cfg.Priority,
	}); err != nil {
		return schema.ErrorResult(asEngineError(err).WithStep(step.ID))
	}

	if err := e.executions.FinishExecution(ctx, turn.exec.ID, schema.ExecutionStatusHandedOff); err != nil {
		return schema.ErrorResult(asEngineError(err))
	}
	turn.exec.Status = schema.ExecutionStatusHandedOff

	content := cfg.Message
	if content == "" {
		content = handoffMessage(cfg.Department)
	}
	content = Interpolate(content, turn.exec.Variables)
	e.recordBotMessage(ctx, turn.exec.ConversationID, step.ID, content)

	return &schema.StepResult{Type: schema.ResultHandoff, Content: content}
}

// businessID resolves the tenant for side effects from the owning playbook.
func (e *Engine) businessID(ctx context.Context, turn *turnState) (string, *schema.StepResult) {
	pb, err := e.playbooks.GetPlaybook(ctx, turn.exec.PlaybookID)
	if err != nil {
		return "", schema.ErrorResult(asEngineError(err))
	}
	return pb.BusinessID, nil
}

// recordBotMessage appends the rendered prompt to the transcript, best effort.
func (e *Engine) recordBotMessage(ctx context.Context, conversationID, stepID, content string) {
	if content == "" || e.conversations == nil {
		return
	}
	err := e.conversations.AppendMessage(ctx, &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleBot,
		Content:        content,
		StepID:         stepID,
	})
	if err != nil {
		e.logger.WarnContext(ctx, "bot message not recorded", slog.String("error", err.Error()))
	}
}

func handoffMessage(department string) string {
	if department != "" {
		return fmt.Sprintf("Transferring you to our %s team, one moment please...", department)
	}
	return "Transferring you to a live agent, one moment please..."
}
