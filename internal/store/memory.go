package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/convohq/playbook/pkg/schema"
)

// MemoryStore is an in-memory Store implementation. It enforces the same
// structural invariants as the libSQL store (one active execution per
// conversation, unique contact email per business) and is safe for concurrent
// use. Intended for tests and ephemeral deployments.
type MemoryStore struct {
	mu sync.RWMutex

	playbooks     map[string]*schema.Playbook
	steps         map[string]*schema.PlaybookStep
	executions    map[string]*Execution
	conversations map[string]*Conversation
	contacts      map[string]*Contact
	activities    []*ContactActivity
	messages      []*Message
	queue         []*QueueEntry

	playbookSeq   int
	activitySeq   int64
	messageSeq    int64
	playbookOrder map[string]int // insertion order for priority tie-break
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		playbooks:     make(map[string]*schema.Playbook),
		steps:         make(map[string]*schema.PlaybookStep),
		executions:    make(map[string]*Execution),
		conversations: make(map[string]*Conversation),
		contacts:      make(map[string]*Contact),
		playbookOrder: make(map[string]int),
	}
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// --- Playbooks ---

func (s *MemoryStore) CreatePlaybook(ctx context.Context, pb *schema.Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.playbooks[pb.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "playbook %q already exists", pb.ID)
	}
	cp := *pb
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.playbooks[pb.ID] = &cp
	s.playbookOrder[pb.ID] = s.playbookSeq
	s.playbookSeq++
	return nil
}

func (s *MemoryStore) GetPlaybook(ctx context.Context, id string) (*schema.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pb, ok := s.playbooks[id]
	if !ok {
		return nil, storeNotFound("playbook", id)
	}
	cp := *pb
	return &cp, nil
}

func (s *MemoryStore) UpdatePlaybookStatus(ctx context.Context, id string, status schema.PlaybookStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.playbooks[id]
	if !ok {
		return storeNotFound("playbook", id)
	}
	pb.Status = status
	pb.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListPlaybooks(ctx context.Context, filter PlaybookFilter) ([]*schema.Playbook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.Playbook
	for _, pb := range s.playbooks {
		if pb.BusinessID != filter.BusinessID {
			continue
		}
		if filter.BotID != "" && pb.BotID != "" && pb.BotID != filter.BotID {
			continue
		}
		if filter.Status != nil && pb.Status != *filter.Status {
			continue
		}
		cp := *pb
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return s.playbookOrder[out[i].ID] < s.playbookOrder[out[j].ID]
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Playbook steps ---

func (s *MemoryStore) CreateStep(ctx context.Context, step *schema.PlaybookStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.steps[step.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "step %q already exists", step.ID)
	}
	cp := *step
	s.steps[step.ID] = &cp
	return nil
}

func (s *MemoryStore) GetStep(ctx context.Context, id string) (*schema.PlaybookStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[id]
	if !ok {
		return nil, storeNotFound("step", id)
	}
	cp := *step
	return &cp, nil
}

func (s *MemoryStore) ListSteps(ctx context.Context, playbookID string) ([]*schema.PlaybookStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.PlaybookStep
	for _, step := range s.steps {
		if step.PlaybookID == playbookID {
			cp := *step
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) DeleteStep(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[id]; !ok {
		return storeNotFound("step", id)
	}
	delete(s.steps, id)
	return nil
}

// --- Executions ---

func (s *MemoryStore) CreateExecution(ctx context.Context, ex *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ex.Status == schema.ExecutionStatusActive {
		for _, existing := range s.executions {
			if existing.ConversationID == ex.ConversationID && existing.Status == schema.ExecutionStatusActive {
				return schema.NewErrorf(schema.ErrCodeConflict,
					"conversation %q already has an active execution", ex.ConversationID)
			}
		}
	}

	cp := *ex
	cp.Variables = copyVariables(ex.Variables)
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	if cp.LastActivityAt.IsZero() {
		cp.LastActivityAt = cp.StartedAt
	}
	s.executions[ex.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, storeNotFound("execution", id)
	}
	return copyExecution(ex), nil
}

func (s *MemoryStore) GetActiveExecution(ctx context.Context, conversationID string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ex := range s.executions {
		if ex.ConversationID == conversationID && ex.Status == schema.ExecutionStatusActive {
			return copyExecution(ex), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SaveProgress(ctx context.Context, id string, currentStepID string, variables map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return storeNotFound("execution", id)
	}
	ex.CurrentStepID = currentStepID
	ex.Variables = copyVariables(variables)
	ex.LastActivityAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) FinishExecution(ctx context.Context, id string, status schema.ExecutionStatus) error {
	if !schema.CanTransition(schema.ExecutionStatusActive, status) {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid terminal status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return storeNotFound("execution", id)
	}
	if ex.Status != schema.ExecutionStatusActive {
		return schema.NewErrorf(schema.ErrCodeNotActive, "execution %q is not active", id)
	}
	now := time.Now().UTC()
	ex.Status = status
	ex.CompletedAt = &now
	ex.LastActivityAt = now
	return nil
}

func (s *MemoryStore) AbandonStale(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept int64
	now := time.Now().UTC()
	for _, ex := range s.executions {
		if ex.Status == schema.ExecutionStatusActive && ex.LastActivityAt.Before(cutoff) {
			ex.Status = schema.ExecutionStatusAbandoned
			completed := now
			ex.CompletedAt = &completed
			swept++
		}
	}
	return swept, nil
}

func (s *MemoryStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Execution
	for _, ex := range s.executions {
		if filter.ConversationID != "" && ex.ConversationID != filter.ConversationID {
			continue
		}
		if filter.PlaybookID != "" && ex.PlaybookID != filter.PlaybookID {
			continue
		}
		if filter.Status != nil && ex.Status != *filter.Status {
			continue
		}
		out = append(out, copyExecution(ex))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Conversations ---

func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, storeNotFound("conversation", id)
	}
	cp := *conv
	return &cp, nil
}

func (s *MemoryStore) UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversations {
		if existing.BusinessID == conv.BusinessID &&
			existing.VisitorID == conv.VisitorID &&
			existing.SessionID == conv.SessionID {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *conv
	if cp.Status == "" {
		cp.Status = ConversationStatusOpen
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.conversations[conv.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) UpdateConversation(ctx context.Context, id string, update ConversationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return storeNotFound("conversation", id)
	}
	if update.ContactID != nil {
		conv.ContactID = *update.ContactID
	}
	if update.Status != nil {
		conv.Status = *update.Status
	}
	if update.Metadata != nil {
		conv.Metadata = update.Metadata
	}
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageSeq++
	cp := *msg
	cp.ID = s.messageSeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, &cp)
	msg.ID = cp.ID
	return nil
}

// Messages returns all messages for a conversation, oldest first. Test helper.
func (s *MemoryStore) Messages(conversationID string) []*Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out
}

// --- Contacts ---

func (s *MemoryStore) FindContactByEmail(ctx context.Context, businessID, email string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contacts {
		if c.BusinessID == businessID && c.Email == email {
			return copyContact(c), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, storeNotFound("contact", id)
	}
	return copyContact(c), nil
}

func (s *MemoryStore) CreateContact(ctx context.Context, c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Email != "" {
		for _, existing := range s.contacts {
			if existing.BusinessID == c.BusinessID && existing.Email == c.Email {
				return schema.NewErrorf(schema.ErrCodeConflict,
					"contact with email %q already exists", c.Email)
			}
		}
	}
	cp := copyContact(c)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.contacts[c.ID] = cp
	return nil
}

func (s *MemoryStore) UpdateContact(ctx context.Context, id string, update ContactUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return storeNotFound("contact", id)
	}
	if update.Phone != nil {
		c.Phone = *update.Phone
	}
	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Tags != nil {
		c.Tags = append([]string(nil), update.Tags...)
	}
	if update.LeadScore != nil {
		c.LeadScore = *update.LeadScore
	}
	if update.CustomFields != nil {
		c.CustomFields = update.CustomFields
	}
	if update.LastSeenAt != nil {
		t := *update.LastSeenAt
		c.LastSeenAt = &t
	}
	return nil
}

func (s *MemoryStore) AppendActivity(ctx context.Context, activity *ContactActivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activitySeq++
	cp := *activity
	cp.ID = s.activitySeq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.activities = append(s.activities, &cp)
	activity.ID = cp.ID
	return nil
}

func (s *MemoryStore) ListActivities(ctx context.Context, contactID string) ([]*ContactActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ContactActivity
	for _, a := range s.activities {
		if a.ContactID == contactID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Queue entries ---

func (s *MemoryStore) CreateQueueEntry(ctx context.Context, entry *QueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	if cp.Status == "" {
		cp.Status = QueueStatusWaiting
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.queue = append(s.queue, &cp)
	return nil
}

func (s *MemoryStore) ListQueueEntries(ctx context.Context, filter QueueFilter) ([]*QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*QueueEntry
	for _, e := range s.queue {
		if filter.BusinessID != "" && e.BusinessID != filter.BusinessID {
			continue
		}
		if filter.ConversationID != "" && e.ConversationID != filter.ConversationID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Copy helpers ---

func copyVariables(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyExecution(ex *Execution) *Execution {
	cp := *ex
	cp.Variables = copyVariables(ex.Variables)
	if ex.CompletedAt != nil {
		t := *ex.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func copyContact(c *Contact) *Contact {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	if c.LastSeenAt != nil {
		t := *c.LastSeenAt
		cp.LastSeenAt = &t
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
