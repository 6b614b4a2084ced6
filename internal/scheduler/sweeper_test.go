package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepAbandonsStaleExecutions(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.CreateExecution(ctx, &store.Execution{
		ID: "stale", PlaybookID: "pb1", ConversationID: "conv1",
		Variables: map[string]string{}, Status: schema.ExecutionStatusActive,
		StartedAt: old, LastActivityAt: old,
	}))
	require.NoError(t, st.CreateExecution(ctx, &store.Execution{
		ID: "fresh", PlaybookID: "pb1", ConversationID: "conv2",
		Variables: map[string]string{}, Status: schema.ExecutionStatusActive,
	}))

	s := NewSweeper(st, "*/10 * * * *", 30*time.Minute, testLogger())
	s.Sweep(ctx)

	stale, err := st.GetExecution(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusAbandoned, stale.Status)

	fresh, err := st.GetExecution(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusActive, fresh.Status)
}

func TestSweeperStartStop(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSweeper(st, "*/10 * * * *", 30*time.Minute, testLogger())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "double start is rejected")

	s.Stop()
	// Stop is idempotent.
	s.Stop()

	// A stopped sweeper can be started again.
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSweeperRejectsBadCron(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSweeper(st, "not a cron expression", 30*time.Minute, testLogger())

	err := s.Start(context.Background())
	require.Error(t, err)
}
