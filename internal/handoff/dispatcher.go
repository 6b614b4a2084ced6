// Package handoff routes conversations out of bot control and into the
// live-agent queue.
package handoff

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/convohq/playbook/internal/logging"
	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

// Request describes one handoff to the live-agent queue.
type Request struct {
	BusinessID     string
	ConversationID string
	Department     string
	Priority       int
}

// Dispatcher enqueues conversations for live agents.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (*store.QueueEntry, error)
}

// QueueDispatcher is the store-backed Dispatcher. It creates a waiting queue
// entry, flips the conversation status, and records the handoff on the linked
// contact when there is one.
type QueueDispatcher struct {
	queue         store.QueueStore
	conversations store.ConversationStore
	contacts      store.ContactStore
	logger        *slog.Logger
}

// NewQueueDispatcher creates a store-backed dispatcher.
func NewQueueDispatcher(queue store.QueueStore, conversations store.ConversationStore, contacts store.ContactStore, logger *slog.Logger) *QueueDispatcher {
	return &QueueDispatcher{
		queue:         queue,
		conversations: conversations,
		contacts:      contacts,
		logger:        logger,
	}
}

// Dispatch performs the handoff. The queue insert is the authoritative side
// effect; activity logging is best effort.
func (d *QueueDispatcher) Dispatch(ctx context.Context, req Request) (*store.QueueEntry, error) {
	entry := &store.QueueEntry{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		BusinessID:     req.BusinessID,
		Priority:       req.Priority,
		Department:     req.Department,
		Status:         store.QueueStatusWaiting,
		CreatedAt:      time.Now().UTC(),
	}
	if err := d.queue.CreateQueueEntry(ctx, entry); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "create queue entry").WithCause(err)
	}

	status := store.ConversationStatusHandedOff
	if err := d.conversations.UpdateConversation(ctx, req.ConversationID, store.ConversationUpdate{Status: &status}); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "mark conversation handed off").WithCause(err)
	}

	d.recordActivity(ctx, req)

	d.logger.InfoContext(ctx, "conversation handed off",
		slog.String("queue_entry_id", entry.ID),
		slog.String("department", req.Department),
		slog.Int("priority", req.Priority))
	return entry, nil
}

func (d *QueueDispatcher) recordActivity(ctx context.Context, req Request) {
	conv, err := d.conversations.GetConversation(ctx, req.ConversationID)
	if err != nil || conv.ContactID == "" {
		return
	}
	if err := d.contacts.AppendActivity(ctx, &store.ContactActivity{
		ContactID: conv.ContactID,
		Type:      store.ActivityHandoffRequested,
		Detail:    req.Department,
	}); err != nil {
		d.logger.WarnContext(logging.WithConversationID(ctx, req.ConversationID),
			"handoff activity not recorded", slog.String("error", err.Error()))
	}
}

var _ Dispatcher = (*QueueDispatcher)(nil)
