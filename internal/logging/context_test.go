package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, BusinessID(ctx))
	assert.Empty(t, ConversationID(ctx))
	assert.Empty(t, ExecutionID(ctx))
	assert.Empty(t, StepID(ctx))

	ctx = WithBusinessID(ctx, "biz1")
	ctx = WithConversationID(ctx, "conv1")
	ctx = WithExecutionID(ctx, "exec1")
	ctx = WithStepID(ctx, "step1")

	assert.Equal(t, "biz1", BusinessID(ctx))
	assert.Equal(t, "conv1", ConversationID(ctx))
	assert.Equal(t, "exec1", ExecutionID(ctx))
	assert.Equal(t, "step1", StepID(ctx))
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithConversationID(WithExecutionID(context.Background(), "exec1"), "conv1")
	logger.InfoContext(ctx, "turn processed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "conv1", record["conversation_id"])
	assert.Equal(t, "exec1", record["execution_id"])
	assert.Equal(t, "turn processed", record["msg"])
	assert.NotContains(t, record, "business_id", "absent ids are not emitted")
}

func TestCorrelationHandlerPreservesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithBusinessID(context.Background(), "biz1")
	logger.With(slog.String("component", "engine")).InfoContext(ctx, "started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "biz1", record["business_id"])
	assert.Equal(t, "engine", record["component"])
}
