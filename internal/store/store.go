package store

import (
	"context"
	"time"

	"github.com/convohq/playbook/pkg/schema"
)

// PlaybookStore persists playbooks and their step graphs.
type PlaybookStore interface {
	CreatePlaybook(ctx context.Context, pb *schema.Playbook) error
	GetPlaybook(ctx context.Context, id string) (*schema.Playbook, error)
	UpdatePlaybookStatus(ctx context.Context, id string, status schema.PlaybookStatus) error
	// ListPlaybooks returns playbooks ordered by priority descending; ties
	// fall back to creation order (an implementation detail, not a contract).
	ListPlaybooks(ctx context.Context, filter PlaybookFilter) ([]*schema.Playbook, error)

	CreateStep(ctx context.Context, step *schema.PlaybookStep) error
	GetStep(ctx context.Context, id string) (*schema.PlaybookStep, error)
	// ListSteps returns a playbook's steps ordered by position ascending.
	ListSteps(ctx context.Context, playbookID string) ([]*schema.PlaybookStep, error)
	DeleteStep(ctx context.Context, id string) error
}

// ExecutionStore persists playbook executions. At most one execution per
// conversation may be active; implementations enforce this structurally.
type ExecutionStore interface {
	// CreateExecution inserts a new active execution. Returns a CONFLICT
	// error when the conversation already has an active execution.
	CreateExecution(ctx context.Context, ex *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	// GetActiveExecution returns the conversation's active execution, or nil
	// when there is none.
	GetActiveExecution(ctx context.Context, conversationID string) (*Execution, error)
	// SaveProgress persists the execution's cursor and variables and bumps
	// last_activity_at. An empty currentStepID clears the cursor.
	SaveProgress(ctx context.Context, id string, currentStepID string, variables map[string]string) error
	// FinishExecution moves an active execution to a terminal status and
	// stamps completed_at. Finishing a non-active execution is a NOT_ACTIVE error.
	FinishExecution(ctx context.Context, id string, status schema.ExecutionStatus) error
	// AbandonStale marks active executions idle since before the cutoff as
	// abandoned, returning how many were swept.
	AbandonStale(ctx context.Context, cutoff time.Time) (int64, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)
}

// ConversationStore is the engine's view of the conversation/message store.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// UpsertConversation fetches or creates the conversation identified by
	// (businessID, visitorID, sessionID).
	UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error)
	UpdateConversation(ctx context.Context, id string, update ConversationUpdate) error
	AppendMessage(ctx context.Context, msg *Message) error
}

// ContactStore persists contacts and their activity log.
type ContactStore interface {
	// FindContactByEmail returns nil when no contact matches.
	FindContactByEmail(ctx context.Context, businessID, email string) (*Contact, error)
	GetContact(ctx context.Context, id string) (*Contact, error)
	CreateContact(ctx context.Context, c *Contact) error
	UpdateContact(ctx context.Context, id string, update ContactUpdate) error
	AppendActivity(ctx context.Context, activity *ContactActivity) error
	ListActivities(ctx context.Context, contactID string) ([]*ContactActivity, error)
}

// QueueStore persists live-agent queue entries.
type QueueStore interface {
	CreateQueueEntry(ctx context.Context, entry *QueueEntry) error
	ListQueueEntries(ctx context.Context, filter QueueFilter) ([]*QueueEntry, error)
}

// Store is the full persistence contract. All implementations must be safe
// for concurrent use.
type Store interface {
	PlaybookStore
	ExecutionStore
	ConversationStore
	ContactStore
	QueueStore

	Migrate(ctx context.Context) error
	Close() error
}
