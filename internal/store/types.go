package store

import (
	"encoding/json"
	"time"

	"github.com/convohq/playbook/pkg/schema"
)

// Execution is the persisted representation of a playbook run bound to one
// conversation. Variables accumulate user answers keyed by variable name.
type Execution struct {
	ID             string                 `json:"id"`
	PlaybookID     string                 `json:"playbook_id"`
	ConversationID string                 `json:"conversation_id"`
	CurrentStepID  string                 `json:"current_step_id,omitempty"`
	Variables      map[string]string      `json:"variables"`
	Status         schema.ExecutionStatus `json:"status"`
	StartedAt      time.Time              `json:"started_at"`
	LastActivityAt time.Time              `json:"last_activity_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// Contact statuses.
const (
	ContactStatusEngaged = "engaged"
	ContactStatusLead    = "lead"
)

// Contact is a visitor identity captured during conversations, scoped to a business.
type Contact struct {
	ID           string         `json:"id"`
	BusinessID   string         `json:"business_id"`
	Email        string         `json:"email,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Name         string         `json:"name,omitempty"`
	Status       string         `json:"status"`
	Tags         []string       `json:"tags,omitempty"`
	LeadScore    int            `json:"lead_score"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	LastSeenAt   *time.Time     `json:"last_seen_at,omitempty"`
}

// Contact activity types appended by the engine.
const (
	ActivityEmailCaptured    = "email_captured"
	ActivityPhoneCaptured    = "phone_captured"
	ActivityHandoffRequested = "handoff_requested"
)

// ContactActivity is an append-only record of something that happened to a contact.
type ContactActivity struct {
	ID        int64     `json:"id"`
	ContactID string    `json:"contact_id"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation statuses.
const (
	ConversationStatusOpen      = "open"
	ConversationStatusHandedOff = "handed_off"
	ConversationStatusClosed    = "closed"
)

// Conversation is one visitor chat session, owned logically by the widget transport.
type Conversation struct {
	ID         string          `json:"id"`
	BusinessID string          `json:"business_id"`
	BotID      string          `json:"bot_id,omitempty"`
	VisitorID  string          `json:"visitor_id"`
	SessionID  string          `json:"session_id"`
	ContactID  string          `json:"contact_id,omitempty"`
	Status     string          `json:"status"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Message roles.
const (
	RoleVisitor = "visitor"
	RoleBot     = "bot"
	RoleAgent   = "agent"
)

// Message is one entry in a conversation's transcript. StepID links bot
// messages back to the playbook step that rendered them.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	StepID         string    `json:"step_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Queue entry statuses.
const (
	QueueStatusWaiting  = "waiting"
	QueueStatusAssigned = "assigned"
	QueueStatusResolved = "resolved"
)

// QueueEntry is a live-agent queue slot created by a handoff.
type QueueEntry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	BusinessID     string    `json:"business_id"`
	Priority       int       `json:"priority"`
	Department     string    `json:"department,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// --- Filter and update types ---

// PlaybookFilter specifies criteria for listing playbooks.
// BotID matches playbooks bound to that bot or bound to no bot.
type PlaybookFilter struct {
	BusinessID string                 `json:"business_id"`
	BotID      string                 `json:"bot_id,omitempty"`
	Status     *schema.PlaybookStatus `json:"status,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
}

// ExecutionFilter specifies criteria for listing executions.
type ExecutionFilter struct {
	ConversationID string                  `json:"conversation_id,omitempty"`
	PlaybookID     string                  `json:"playbook_id,omitempty"`
	Status         *schema.ExecutionStatus `json:"status,omitempty"`
	Limit          int                     `json:"limit,omitempty"`
}

// ContactUpdate specifies mutable fields of a contact. Nil fields are left unchanged.
type ContactUpdate struct {
	Phone        *string        `json:"phone,omitempty"`
	Name         *string        `json:"name,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	LeadScore    *int           `json:"lead_score,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	LastSeenAt   *time.Time     `json:"last_seen_at,omitempty"`
}

// ConversationUpdate specifies mutable fields of a conversation. Nil fields are left unchanged.
type ConversationUpdate struct {
	ContactID *string         `json:"contact_id,omitempty"`
	Status    *string         `json:"status,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// QueueFilter specifies criteria for listing queue entries.
type QueueFilter struct {
	BusinessID     string `json:"business_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}
