// Package engine implements the playbook execution engine: trigger matching,
// the step interpreter state machine, and turn-level persistence.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/convohq/playbook/internal/actions"
	"github.com/convohq/playbook/internal/expressions"
	"github.com/convohq/playbook/internal/handoff"
	"github.com/convohq/playbook/internal/logging"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

// maxChainHops bounds how many non-interactive steps a single inbound-message
// turn may traverse. Step graphs are allowed to be cyclic, so a condition or
// action loop with no interactive step in between would otherwise spin forever.
const maxChainHops = 25

// Engine drives playbook executions. It holds no per-conversation state;
// everything durable lives behind the injected stores, so one Engine instance
// serves many concurrent conversations.
type Engine struct {
	playbooks     store.PlaybookStore
	executions    store.ExecutionStore
	conversations store.ConversationStore
	registry      actions.ActionRegistry
	dispatcher    handoff.Dispatcher
	expr          expressions.Engine
	logger        *slog.Logger
}

// NewEngine creates an Engine. The expr engine may be nil when the
// "expression" condition operator is not needed.
func NewEngine(
	playbooks store.PlaybookStore,
	executions store.ExecutionStore,
	conversations store.ConversationStore,
	registry actions.ActionRegistry,
	dispatcher handoff.Dispatcher,
	exprEngine expressions.Engine,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		playbooks:     playbooks,
		executions:    executions,
		conversations: conversations,
		registry:      registry,
		dispatcher:    dispatcher,
		expr:          exprEngine,
		logger:        logger,
	}
}

// StartPlaybook creates a new active execution for the conversation,
// positioned at the playbook's first step (lowest position). Returns a
// CONFLICT error when the conversation already has an active execution.
func (e *Engine) StartPlaybook(ctx context.Context, playbookID, conversationID string) (*schema.ExecutionState, error) {
	pb, err := e.playbooks.GetPlaybook(ctx, playbookID)
	if err != nil {
		return nil, err
	}

	steps, err := e.playbooks.ListSteps(ctx, playbookID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "playbook %s has no steps", playbookID)
	}

	now := time.Now().UTC()
	exec := &store.Execution{
		ID:             uuid.NewString(),
		PlaybookID:     pb.ID,
		ConversationID: conversationID,
		CurrentStepID:  steps[0].ID,
		Variables:      map[string]string{},
		Status:         schema.ExecutionStatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if err := e.executions.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	e.logger.InfoContext(logging.WithExecutionID(ctx, exec.ID), "playbook started",
		slog.String("playbook_id", pb.ID),
		slog.String("conversation_id", conversationID),
		slog.String("first_step_id", exec.CurrentStepID))

	return &schema.ExecutionState{
		ExecutionID:    exec.ID,
		PlaybookID:     exec.PlaybookID,
		ConversationID: exec.ConversationID,
		CurrentStepID:  exec.CurrentStepID,
		Variables:      exec.Variables,
		Status:         exec.Status,
		StartedAt:      exec.StartedAt,
	}, nil
}

// GetActiveExecution returns the conversation's active execution, or nil when
// there is none.
func (e *Engine) GetActiveExecution(ctx context.Context, conversationID string) (*store.Execution, error) {
	return e.executions.GetActiveExecution(ctx, conversationID)
}

// ProcessStep runs one turn of an execution. With nil userInput it renders the
// current step's prompt; with input it applies the step's input behavior and
// chains through any non-interactive steps that follow. Failures surface as an
// error-typed StepResult; persisted state from before the failing hop remains
// authoritative.
func (e *Engine) ProcessStep(ctx context.Context, executionID string, userInput *string) *schema.StepResult {
	ctx = logging.WithExecutionID(ctx, executionID)

	exec, err := e.executions.GetExecution(ctx, executionID)
	if err != nil {
		return schema.ErrorResult(asEngineError(err))
	}
	if exec.Status != schema.ExecutionStatusActive {
		return schema.ErrorResult(schema.NewErrorf(schema.ErrCodeNotActive,
			"execution %s is %s", executionID, exec.Status))
	}

	if exec.CurrentStepID == "" {
		return e.finish(ctx, exec, schema.ExecutionStatusCompleted)
	}

	step, err := e.playbooks.GetStep(ctx, exec.CurrentStepID)
	if err != nil {
		return schema.ErrorResult(asEngineError(err).WithStep(exec.CurrentStepID))
	}

	turn := &turnState{exec: exec}
	if userInput == nil {
		return e.promptStep(ctx, turn, step)
	}
	return e.applyInput(ctx, turn, step, *userInput)
}

// finish moves the execution to a terminal status and returns the matching result.
func (e *Engine) finish(ctx context.Context, exec *store.Execution, status schema.ExecutionStatus) *schema.StepResult {
	if err := e.executions.FinishExecution(ctx, exec.ID, status); err != nil {
		return schema.ErrorResult(asEngineError(err))
	}
	exec.Status = status

	e.logger.InfoContext(ctx, "execution finished", slog.String("status", string(status)))

	if status == schema.ExecutionStatusHandedOff {
		return &schema.StepResult{Type: schema.ResultHandoff}
	}
	return &schema.StepResult{Type: schema.ResultComplete}
}

// asEngineError coerces any error into an EngineError, wrapping foreign ones.
func asEngineError(err error) *schema.EngineError {
	if ee, ok := err.(*schema.EngineError); ok {
		return ee
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).WithCause(err)
}
