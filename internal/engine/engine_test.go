package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convohq/playbook/internal/actions"
	"github.com/convohq/playbook/internal/expressions"
	"github.com/convohq/playbook/internal/handoff"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := actions.NewRegistry()
	require.NoError(t, registry.Register(actions.NewCaptureContactAction(st, st, logger)))
	require.NoError(t, registry.Register(actions.NewAddTagAction(st, st, logger)))
	require.NoError(t, registry.Register(actions.NewSetScoreAction(st, st, logger)))

	dispatcher := handoff.NewQueueDispatcher(st, st, st, logger)
	eng := NewEngine(st, st, st, registry, dispatcher, expressions.NewExprEngine(), logger)
	return eng, st
}

func mustConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func seedPlaybook(t *testing.T, st *store.MemoryStore, pb *schema.Playbook, steps ...*schema.PlaybookStep) {
	t.Helper()
	ctx := context.Background()
	if pb.Status == "" {
		pb.Status = schema.PlaybookStatusActive
	}
	require.NoError(t, st.CreatePlaybook(ctx, pb))
	for i, step := range steps {
		step.PlaybookID = pb.ID
		if step.Position == 0 {
			step.Position = i + 1
		}
		require.NoError(t, st.CreateStep(ctx, step))
	}
}

func seedConversation(t *testing.T, st *store.MemoryStore, id, businessID string) {
	t.Helper()
	_, err := st.UpsertConversation(context.Background(), &store.Conversation{
		ID:         id,
		BusinessID: businessID,
		VisitorID:  "v1",
		SessionID:  "s-" + id,
	})
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestStartPlaybook(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "welcome", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "s2", Type: schema.StepTypeMessage, Position: 2,
			Config: mustConfig(t, schema.MessageConfig{Message: "later"})},
		&schema.PlaybookStep{ID: "s1", Type: schema.StepTypeMessage, Position: 1,
			Config: mustConfig(t, schema.MessageConfig{Message: "first"})},
	)

	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)
	assert.Equal(t, "pb1", state.PlaybookID)
	assert.Equal(t, "s1", state.CurrentStepID, "execution starts at the lowest-position step")
	assert.Equal(t, schema.ExecutionStatusActive, state.Status)
	assert.NotEmpty(t, state.ExecutionID)

	// Second start for the same conversation conflicts.
	_, err = eng.StartPlaybook(ctx, "pb1", "conv1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConflict, schema.CodeOf(err))
}

func TestStartPlaybookWithoutSteps(t *testing.T) {
	eng, st := newTestEngine(t)
	seedPlaybook(t, st, &schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "empty", TriggerType: schema.TriggerManual})

	_, err := eng.StartPlaybook(context.Background(), "pb1", "conv1")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGetActiveExecution(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	got, err := eng.GetActiveExecution(ctx, "conv1")
	require.NoError(t, err)
	assert.Nil(t, got)

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "welcome", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "s1", Type: schema.StepTypeQuestion,
			Config: mustConfig(t, schema.QuestionConfig{Question: "hi?", VariableName: "answer"})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	got, err = eng.GetActiveExecution(ctx, "conv1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state.ExecutionID, got.ID)
}

func TestProcessStepMissingExecution(t *testing.T) {
	eng, _ := newTestEngine(t)

	res := eng.ProcessStep(context.Background(), "no-such-execution", nil)
	require.Equal(t, schema.ResultError, res.Type)
	assert.Equal(t, schema.ErrCodeNotFound, res.Err.Code)
}

func TestQuestionValidationRePrompts(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "lead", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "q1", Type: schema.StepTypeQuestion, NextStepID: "m1",
			Config: mustConfig(t, schema.QuestionConfig{Question: "Your email?", VariableName: "email", Validation: schema.ValidationEmail})},
		&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage,
			Config: mustConfig(t, schema.MessageConfig{Message: "Thanks {{email}}!"})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("not-an-email"))
	require.Equal(t, schema.ResultQuestion, res.Type)
	assert.Equal(t, "email", res.VariableName)
	assert.Equal(t, schema.ValidationEmail, res.Validation)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "q1", exec.CurrentStepID, "invalid input must not advance the cursor")
	assert.Empty(t, exec.Variables["email"])

	res = eng.ProcessStep(ctx, state.ExecutionID, strPtr("a@b.com"))
	require.Equal(t, schema.ResultMessage, res.Type)
	assert.Equal(t, "Thanks a@b.com!", res.Content)

	exec, err = st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", exec.Variables["email"])
}

func TestInvalidAnswerStillCountsAsActivity(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "lead", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "q1", Type: schema.StepTypeQuestion,
			Config: mustConfig(t, schema.QuestionConfig{Question: "Your email?", VariableName: "email", Validation: schema.ValidationEmail})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	// A visitor failing validation is still typing; the sweeper must not see
	// the execution as idle.
	time.Sleep(5 * time.Millisecond)
	before := time.Now().UTC()

	res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("not-an-email"))
	require.Equal(t, schema.ResultQuestion, res.Type)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.False(t, exec.LastActivityAt.Before(before), "re-prompt must bump last_activity_at")
}

func TestOptionsStep(t *testing.T) {
	optionsConfig := schema.OptionsConfig{
		Question:     "Pick a plan",
		VariableName: "plan",
		Options: []schema.Option{
			{Label: "Starter", Value: "starter", NextStepID: "m1"},
			{Label: "Pro", Value: "pro", NextStepID: "m2"},
		},
	}

	t.Run("matched option follows its own edge", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "plans", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "o1", Type: schema.StepTypeOptions, NextStepID: "m1", Config: mustConfig(t, optionsConfig)},
			&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "starter it is"})},
			&schema.PlaybookStep{ID: "m2", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "pro it is"})},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("pro"))
		require.Equal(t, schema.ResultMessage, res.Type)
		assert.Equal(t, "pro it is", res.Content)

		exec, err := st.GetExecution(ctx, state.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, "pro", exec.Variables["plan"])
	})

	t.Run("label matches too", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "plans", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "o1", Type: schema.StepTypeOptions, Config: mustConfig(t, optionsConfig)},
			&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "starter it is"})},
			&schema.PlaybookStep{ID: "m2", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "pro it is"})},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("Starter"))
		require.Equal(t, schema.ResultMessage, res.Type)
		assert.Equal(t, "starter it is", res.Content)
	})

	t.Run("unmatched input falls back to the step edge", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "plans", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "o1", Type: schema.StepTypeOptions, NextStepID: "m1", Config: mustConfig(t, optionsConfig)},
			&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "fallback"})},
			&schema.PlaybookStep{ID: "m2", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "pro it is"})},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("enterprise"))
		require.Equal(t, schema.ResultMessage, res.Type)
		assert.Equal(t, "fallback", res.Content)

		exec, err := st.GetExecution(ctx, state.ExecutionID)
		require.NoError(t, err)
		assert.Empty(t, exec.Variables["plan"], "unmatched input is not stored")
	})

	t.Run("unmatched input with no edge completes", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		cfg := optionsConfig
		cfg.Options = []schema.Option{{Label: "Starter", Value: "starter"}}
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "plans", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "o1", Type: schema.StepTypeOptions, Config: mustConfig(t, cfg)},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("enterprise"))
		require.Equal(t, schema.ResultComplete, res.Type)

		exec, err := st.GetExecution(ctx, state.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, schema.ExecutionStatusCompleted, exec.Status)
	})
}

func TestConditionStep(t *testing.T) {
	t.Run("unset variable is skipped even against empty value", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "branch", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "c1", Type: schema.StepTypeCondition,
				Config: mustConfig(t, schema.ConditionConfig{
					Conditions: []schema.Condition{
						{Variable: "color", Operator: schema.OperatorEquals, Value: "", NextStepID: "m1"},
					},
					DefaultNextStepID: "m2",
				})},
			&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "matched"})},
			&schema.PlaybookStep{ID: "m2", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "default"})},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		res := eng.ProcessStep(ctx, state.ExecutionID, nil)
		require.Equal(t, schema.ResultMessage, res.Type)
		assert.Equal(t, "default", res.Content)
	})

	t.Run("first matching branch wins", func(t *testing.T) {
		eng, st := newTestEngine(t)
		ctx := context.Background()
		seedPlaybook(t, st,
			&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "branch", TriggerType: schema.TriggerManual},
			&schema.PlaybookStep{ID: "q1", Type: schema.StepTypeQuestion, NextStepID: "c1",
				Config: mustConfig(t, schema.QuestionConfig{Question: "Team size?", VariableName: "size"})},
			&schema.PlaybookStep{ID: "c1", Type: schema.StepTypeCondition,
				Config: mustConfig(t, schema.ConditionConfig{
					Conditions: []schema.Condition{
						{Variable: "size", Operator: schema.OperatorContains, Value: "BIG", NextStepID: "m1"},
						{Variable: "size", Operator: schema.OperatorContains, Value: "big", NextStepID: "m2"},
					},
					DefaultNextStepID: "m2",
				})},
			&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "enterprise"})},
			&schema.PlaybookStep{ID: "m2", Type: schema.StepTypeMessage, Config: mustConfig(t, schema.MessageConfig{Message: "smb"})},
		)
		state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
		require.NoError(t, err)

		// contains is case-insensitive, so the first branch matches "pretty big".
		res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("pretty big"))
		require.Equal(t, schema.ResultMessage, res.Type)
		assert.Equal(t, "enterprise", res.Content)
	})
}

func TestChainLimit(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	// Two condition steps that always route to each other. The graph is legal;
	// the per-turn hop bound must stop it.
	alwaysTo := func(next string) json.RawMessage {
		return mustConfig(t, schema.ConditionConfig{
			Conditions: []schema.Condition{
				{Operator: schema.OperatorExpression, Value: "true", NextStepID: next},
			},
		})
	}
	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "loop", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "c1", Type: schema.StepTypeCondition, Config: alwaysTo("c2")},
		&schema.PlaybookStep{ID: "c2", Type: schema.StepTypeCondition, Config: alwaysTo("c1")},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultError, res.Type)
	assert.Equal(t, schema.ErrCodeChainLimit, res.Err.Code)
}

func TestHandoff(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedConversation(t, st, "conv1", "biz1")
	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "escalate", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "h1", Type: schema.StepTypeHandoff,
			Config: mustConfig(t, schema.HandoffConfig{Department: "sales", Priority: 2})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultHandoff, res.Type)
	assert.Contains(t, res.Content, "sales")

	entries, err := st.ListQueueEntries(ctx, store.QueueFilter{ConversationID: "conv1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.QueueStatusWaiting, entries[0].Status)
	assert.Equal(t, "sales", entries[0].Department)
	assert.Equal(t, 2, entries[0].Priority)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusHandedOff, exec.Status)

	conv, err := st.GetConversation(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, store.ConversationStatusHandedOff, conv.Status)

	// A handed-off execution takes no further input.
	res = eng.ProcessStep(ctx, state.ExecutionID, strPtr("hello?"))
	require.Equal(t, schema.ResultError, res.Type)
	assert.Equal(t, schema.ErrCodeNotActive, res.Err.Code)
}

func TestStopStepCompletes(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "bye", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "s1", Type: schema.StepTypeStop},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultComplete, res.Type)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusCompleted, exec.Status)
}

func TestUnknownStepTypeAdvances(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "future", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "x1", Type: schema.StepType("carousel"), NextStepID: "m1"},
		&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage,
			Config: mustConfig(t, schema.MessageConfig{Message: "still here"})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultMessage, res.Type)
	assert.Empty(t, res.Content)
	assert.Equal(t, "m1", res.NextStepID)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "m1", exec.CurrentStepID)
}

func TestEndToEndLeadCapture(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedConversation(t, st, "conv1", "biz1")
	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "lead capture", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "q1", Type: schema.StepTypeQuestion, NextStepID: "a1",
			Config: mustConfig(t, schema.QuestionConfig{Question: "What's your email?", VariableName: "email", Validation: schema.ValidationEmail})},
		&schema.PlaybookStep{ID: "a1", Type: schema.StepTypeAction, NextStepID: "h1",
			Config: mustConfig(t, schema.ActionConfig{ActionType: schema.ActionCaptureContact})},
		&schema.PlaybookStep{ID: "h1", Type: schema.StepTypeHandoff,
			Config: mustConfig(t, schema.HandoffConfig{Department: "sales"})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	// Invalid input leaves the cursor parked at the question.
	res := eng.ProcessStep(ctx, state.ExecutionID, strPtr("not-an-email"))
	require.Equal(t, schema.ResultQuestion, res.Type)
	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "q1", exec.CurrentStepID)

	// Valid input chains question -> capture_contact -> handoff in one turn.
	res = eng.ProcessStep(ctx, state.ExecutionID, strPtr("ada@x.com"))
	require.Equal(t, schema.ResultHandoff, res.Type)

	contact, err := st.FindContactByEmail(ctx, "biz1", "ada@x.com")
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, store.ContactStatusEngaged, contact.Status)

	conv, err := st.GetConversation(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, contact.ID, conv.ContactID)

	entries, err := st.ListQueueEntries(ctx, store.QueueFilter{ConversationID: "conv1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.QueueStatusWaiting, entries[0].Status)

	exec, err = st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusHandedOff, exec.Status)
	assert.Equal(t, "ada@x.com", exec.Variables["email"])

	activities, err := st.ListActivities(ctx, contact.ID)
	require.NoError(t, err)
	types := make([]string, 0, len(activities))
	for _, a := range activities {
		types = append(types, a.Type)
	}
	assert.Contains(t, types, store.ActivityEmailCaptured)
	assert.Contains(t, types, store.ActivityHandoffRequested)
}

func TestMessagePromptAutoAdvances(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx := context.Background()

	seedPlaybook(t, st,
		&schema.Playbook{ID: "pb1", BusinessID: "biz1", Name: "greet", TriggerType: schema.TriggerManual},
		&schema.PlaybookStep{ID: "m1", Type: schema.StepTypeMessage, NextStepID: "q1",
			Config: mustConfig(t, schema.MessageConfig{Message: "Welcome!"})},
		&schema.PlaybookStep{ID: "q1", Type: schema.StepTypeQuestion,
			Config: mustConfig(t, schema.QuestionConfig{Question: "Name?", VariableName: "name"})},
	)
	state, err := eng.StartPlaybook(ctx, "pb1", "conv1")
	require.NoError(t, err)

	res := eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultMessage, res.Type)
	assert.Equal(t, "Welcome!", res.Content)
	assert.Equal(t, "q1", res.NextStepID)

	exec, err := st.GetExecution(ctx, state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "q1", exec.CurrentStepID, "message prompt advances past itself")

	res = eng.ProcessStep(ctx, state.ExecutionID, nil)
	require.Equal(t, schema.ResultQuestion, res.Type)
	assert.Equal(t, "Name?", res.Content)
}
