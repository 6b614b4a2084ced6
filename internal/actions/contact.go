package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/convohq/playbook/internal/store"
	"github.com/convohq/playbook/pkg/schema"
)

// CaptureContactAction implements the "capture_contact" action. It upserts a
// contact keyed by (business, email), links it to the conversation, and logs
// a capture activity. Retried turns re-run the upsert harmlessly.
type CaptureContactAction struct {
	contacts      store.ContactStore
	conversations store.ConversationStore
	logger        *slog.Logger
}

// NewCaptureContactAction creates a new capture_contact action.
func NewCaptureContactAction(contacts store.ContactStore, conversations store.ConversationStore, logger *slog.Logger) *CaptureContactAction {
	return &CaptureContactAction{contacts: contacts, conversations: conversations, logger: logger}
}

func (a *CaptureContactAction) Name() string { return string(schema.ActionCaptureContact) }

func (a *CaptureContactAction) Validate(params map[string]any) error { return nil }

func (a *CaptureContactAction) Execute(ctx context.Context, input ActionInput) error {
	email := input.Variables["email"]
	phone := input.Variables["phone"]
	name := input.Variables["name"]

	if email == "" && phone == "" {
		a.logger.DebugContext(ctx, "capture_contact: no email or phone variable, skipping")
		return nil
	}

	now := time.Now().UTC()
	var contact *store.Contact

	if email != "" {
		existing, err := a.contacts.FindContactByEmail(ctx, input.BusinessID, email)
		if err != nil {
			return schema.NewError(schema.ErrCodeStore, "find contact by email").WithCause(err)
		}
		contact = existing
	}

	if contact != nil {
		// Merge: new values win only when non-empty.
		update := store.ContactUpdate{LastSeenAt: &now}
		if phone != "" {
			update.Phone = &phone
		}
		if name != "" {
			update.Name = &name
		}
		if err := a.contacts.UpdateContact(ctx, contact.ID, update); err != nil {
			return schema.NewError(schema.ErrCodeStore, "merge contact").WithCause(err)
		}
	} else {
		contact = &store.Contact{
			ID:         uuid.NewString(),
			BusinessID: input.BusinessID,
			Email:      email,
			Phone:      phone,
			Name:       name,
			Status:     store.ContactStatusEngaged,
			CreatedAt:  now,
			LastSeenAt: &now,
		}
		if err := a.contacts.CreateContact(ctx, contact); err != nil {
			// A concurrent capture may have won the insert race; fall back to the winner.
			if schema.CodeOf(err) == schema.ErrCodeConflict && email != "" {
				existing, findErr := a.contacts.FindContactByEmail(ctx, input.BusinessID, email)
				if findErr != nil || existing == nil {
					return schema.NewError(schema.ErrCodeStore, "create contact").WithCause(err)
				}
				contact = existing
			} else {
				return schema.NewError(schema.ErrCodeStore, "create contact").WithCause(err)
			}
		}
	}

	contactID := contact.ID
	if err := a.conversations.UpdateConversation(ctx, input.ConversationID, store.ConversationUpdate{ContactID: &contactID}); err != nil {
		return schema.NewError(schema.ErrCodeStore, "link contact to conversation").WithCause(err)
	}

	activityType := store.ActivityEmailCaptured
	detail := email
	if email == "" {
		activityType = store.ActivityPhoneCaptured
		detail = phone
	}
	if err := a.contacts.AppendActivity(ctx, &store.ContactActivity{
		ContactID: contactID,
		Type:      activityType,
		Detail:    detail,
	}); err != nil {
		return schema.NewError(schema.ErrCodeStore, "append capture activity").WithCause(err)
	}

	a.logger.InfoContext(ctx, "contact captured", slog.String("contact_id", contactID))
	return nil
}

// AddTagAction implements the "add_tag" action with set semantics.
// No-op when the conversation has no linked contact.
type AddTagAction struct {
	contacts      store.ContactStore
	conversations store.ConversationStore
	logger        *slog.Logger
}

// NewAddTagAction creates a new add_tag action.
func NewAddTagAction(contacts store.ContactStore, conversations store.ConversationStore, logger *slog.Logger) *AddTagAction {
	return &AddTagAction{contacts: contacts, conversations: conversations, logger: logger}
}

func (a *AddTagAction) Name() string { return string(schema.ActionAddTag) }

func (a *AddTagAction) Validate(params map[string]any) error {
	if stringParam(params, "tag", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "add_tag: missing required param 'tag'")
	}
	return nil
}

func (a *AddTagAction) Execute(ctx context.Context, input ActionInput) error {
	tag := stringParam(input.Params, "tag", "")
	if tag == "" {
		a.logger.WarnContext(ctx, "add_tag: no tag configured, skipping")
		return nil
	}

	contact, err := a.linkedContact(ctx, input.ConversationID)
	if err != nil {
		return err
	}
	if contact == nil {
		a.logger.DebugContext(ctx, "add_tag: conversation has no linked contact, skipping")
		return nil
	}

	for _, existing := range contact.Tags {
		if existing == tag {
			return nil
		}
	}
	tags := append(append([]string(nil), contact.Tags...), tag)
	if err := a.contacts.UpdateContact(ctx, contact.ID, store.ContactUpdate{Tags: tags}); err != nil {
		return schema.NewError(schema.ErrCodeStore, "add tag").WithCause(err)
	}
	return nil
}

func (a *AddTagAction) linkedContact(ctx context.Context, conversationID string) (*store.Contact, error) {
	return linkedContact(ctx, a.conversations, a.contacts, conversationID)
}

// SetScoreAction implements the "set_score" action. Overwrites the linked
// contact's lead score; no-op when the conversation has no linked contact.
type SetScoreAction struct {
	contacts      store.ContactStore
	conversations store.ConversationStore
	logger        *slog.Logger
}

// NewSetScoreAction creates a new set_score action.
func NewSetScoreAction(contacts store.ContactStore, conversations store.ConversationStore, logger *slog.Logger) *SetScoreAction {
	return &SetScoreAction{contacts: contacts, conversations: conversations, logger: logger}
}

func (a *SetScoreAction) Name() string { return string(schema.ActionSetScore) }

func (a *SetScoreAction) Validate(params map[string]any) error {
	if _, ok := params["score"]; !ok {
		return schema.NewError(schema.ErrCodeValidation, "set_score: missing required param 'score'")
	}
	return nil
}

func (a *SetScoreAction) Execute(ctx context.Context, input ActionInput) error {
	score := intParam(input.Params, "score", 0)

	contact, err := linkedContact(ctx, a.conversations, a.contacts, input.ConversationID)
	if err != nil {
		return err
	}
	if contact == nil {
		a.logger.DebugContext(ctx, "set_score: conversation has no linked contact, skipping")
		return nil
	}

	if err := a.contacts.UpdateContact(ctx, contact.ID, store.ContactUpdate{LeadScore: &score}); err != nil {
		return schema.NewError(schema.ErrCodeStore, "set lead score").WithCause(err)
	}
	return nil
}

// linkedContact resolves the contact linked to a conversation, or nil.
func linkedContact(ctx context.Context, conversations store.ConversationStore, contacts store.ContactStore, conversationID string) (*store.Contact, error) {
	conv, err := conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "load conversation").WithCause(err)
	}
	if conv.ContactID == "" {
		return nil, nil
	}
	contact, err := contacts.GetContact(ctx, conv.ContactID)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "load linked contact").WithCause(err)
	}
	return contact, nil
}
