package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/convohq/playbook/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Playbooks ---

func (s *LibSQLStore) CreatePlaybook(ctx context.Context, pb *schema.Playbook) error {
	triggerCfg, err := json.Marshal(pb.TriggerConfig)
	if err != nil {
		return fmt.Errorf("marshal trigger config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO playbooks (id, business_id, bot_id, name, description, trigger_type, trigger_config, priority, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pb.ID, pb.BusinessID, nullStr(pb.BotID), pb.Name, nullStr(pb.Description),
		string(pb.TriggerType), string(triggerCfg), pb.Priority, string(pb.Status),
		timeOrNow(pb.CreatedAt), timeOrNow(pb.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetPlaybook(ctx context.Context, id string) (*schema.Playbook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, bot_id, name, description, trigger_type, trigger_config, priority, status, created_at, updated_at
		 FROM playbooks WHERE id = ?`, id,
	)
	pb, err := scanPlaybook(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("playbook", id)
	}
	return pb, err
}

func (s *LibSQLStore) UpdatePlaybookStatus(ctx context.Context, id string, status schema.PlaybookStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playbooks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "playbook", id)
}

func (s *LibSQLStore) ListPlaybooks(ctx context.Context, filter PlaybookFilter) ([]*schema.Playbook, error) {
	where := []string{"business_id = ?"}
	args := []any{filter.BusinessID}

	if filter.BotID != "" {
		where = append(where, "(bot_id = ? OR bot_id IS NULL)")
		args = append(args, filter.BotID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT id, business_id, bot_id, name, description, trigger_type, trigger_config, priority, status, created_at, updated_at
		FROM playbooks WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY priority DESC, created_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playbooks []*schema.Playbook
	for rows.Next() {
		pb, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, pb)
	}
	return playbooks, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaybook(row rowScanner) (*schema.Playbook, error) {
	pb := &schema.Playbook{}
	var botID, desc sql.NullString
	var triggerType, status, triggerCfg string
	err := row.Scan(&pb.ID, &pb.BusinessID, &botID, &pb.Name, &desc,
		&triggerType, &triggerCfg, &pb.Priority, &status, &pb.CreatedAt, &pb.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pb.BotID = botID.String
	pb.Description = desc.String
	pb.TriggerType = schema.TriggerType(triggerType)
	pb.Status = schema.PlaybookStatus(status)
	if triggerCfg != "" {
		if err := json.Unmarshal([]byte(triggerCfg), &pb.TriggerConfig); err != nil {
			return nil, fmt.Errorf("unmarshal trigger config: %w", err)
		}
	}
	return pb, nil
}

// --- Playbook steps ---

func (s *LibSQLStore) CreateStep(ctx context.Context, step *schema.PlaybookStep) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playbook_steps (id, playbook_id, type, name, config, position, next_step_id, x, y)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.ID, step.PlaybookID, string(step.Type), nullStr(step.Name),
		nullRaw(step.Config), step.Position, nullStr(step.NextStepID), step.X, step.Y,
	)
	return err
}

func (s *LibSQLStore) GetStep(ctx context.Context, id string) (*schema.PlaybookStep, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, playbook_id, type, name, config, position, next_step_id, x, y
		 FROM playbook_steps WHERE id = ?`, id,
	)
	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("step", id)
	}
	return step, err
}

func (s *LibSQLStore) ListSteps(ctx context.Context, playbookID string) ([]*schema.PlaybookStep, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, playbook_id, type, name, config, position, next_step_id, x, y
		 FROM playbook_steps WHERE playbook_id = ? ORDER BY position ASC`, playbookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*schema.PlaybookStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (s *LibSQLStore) DeleteStep(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playbook_steps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "step", id)
}

func scanStep(row rowScanner) (*schema.PlaybookStep, error) {
	step := &schema.PlaybookStep{}
	var name, config, nextStepID sql.NullString
	var stepType string
	err := row.Scan(&step.ID, &step.PlaybookID, &stepType, &name, &config,
		&step.Position, &nextStepID, &step.X, &step.Y)
	if err != nil {
		return nil, err
	}
	step.Type = schema.StepType(stepType)
	step.Name = name.String
	step.NextStepID = nextStepID.String
	step.Config = jsonOrNil(config)
	return step, nil
}

// --- Executions ---

func (s *LibSQLStore) CreateExecution(ctx context.Context, ex *Execution) error {
	variables, err := marshalVariables(ex.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, playbook_id, conversation_id, current_step_id, variables, status, started_at, last_activity_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.PlaybookID, ex.ConversationID, nullStr(ex.CurrentStepID),
		variables, string(ex.Status), timeOrNow(ex.StartedAt), timeOrNow(ex.LastActivityAt), nullTime(ex.CompletedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"conversation %q already has an active execution", ex.ConversationID).WithCause(err)
	}
	return err
}

func (s *LibSQLStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, playbook_id, conversation_id, current_step_id, variables, status, started_at, last_activity_at, completed_at
		 FROM executions WHERE id = ?`, id,
	)
	ex, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", id)
	}
	return ex, err
}

func (s *LibSQLStore) GetActiveExecution(ctx context.Context, conversationID string) (*Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, playbook_id, conversation_id, current_step_id, variables, status, started_at, last_activity_at, completed_at
		 FROM executions WHERE conversation_id = ? AND status = 'active'`, conversationID,
	)
	ex, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ex, err
}

func (s *LibSQLStore) SaveProgress(ctx context.Context, id string, currentStepID string, variables map[string]string) error {
	vars, err := marshalVariables(variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET current_step_id = ?, variables = ?, last_activity_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullStr(currentStepID), vars, id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

func (s *LibSQLStore) FinishExecution(ctx context.Context, id string, status schema.ExecutionStatus) error {
	if !schema.CanTransition(schema.ExecutionStatusActive, status) {
		return schema.NewErrorf(schema.ErrCodeValidation, "invalid terminal status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, completed_at = CURRENT_TIMESTAMP, last_activity_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = 'active'`,
		string(status), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schema.NewErrorf(schema.ErrCodeNotActive, "execution %q is not active", id)
	}
	return nil
}

func (s *LibSQLStore) AbandonStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = 'abandoned', completed_at = CURRENT_TIMESTAMP
		 WHERE status = 'active' AND last_activity_at < ?`, cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	var where []string
	var args []any

	if filter.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.PlaybookID != "" {
		where = append(where, "playbook_id = ?")
		args = append(args, filter.PlaybookID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	query := `SELECT id, playbook_id, conversation_id, current_step_id, variables, status, started_at, last_activity_at, completed_at FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		ex, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, ex)
	}
	return executions, rows.Err()
}

func scanExecution(row rowScanner) (*Execution, error) {
	ex := &Execution{}
	var currentStepID sql.NullString
	var variables, status string
	var completedAt sql.NullTime
	err := row.Scan(&ex.ID, &ex.PlaybookID, &ex.ConversationID, &currentStepID,
		&variables, &status, &ex.StartedAt, &ex.LastActivityAt, &completedAt)
	if err != nil {
		return nil, err
	}
	ex.CurrentStepID = currentStepID.String
	ex.Status = schema.ExecutionStatus(status)
	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &ex.Variables); err != nil {
			return nil, fmt.Errorf("unmarshal variables: %w", err)
		}
	}
	if ex.Variables == nil {
		ex.Variables = map[string]string{}
	}
	if completedAt.Valid {
		ex.CompletedAt = &completedAt.Time
	}
	return ex, nil
}

// --- Conversations ---

func (s *LibSQLStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, bot_id, visitor_id, session_id, contact_id, status, metadata, created_at, updated_at
		 FROM conversations WHERE id = ?`, id,
	)
	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("conversation", id)
	}
	return conv, err
}

func (s *LibSQLStore) UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, bot_id, visitor_id, session_id, contact_id, status, metadata, created_at, updated_at
		 FROM conversations WHERE business_id = ? AND visitor_id = ? AND session_id = ?`,
		conv.BusinessID, conv.VisitorID, conv.SessionID,
	)
	existing, err := scanConversation(row)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	status := conv.Status
	if status == "" {
		status = ConversationStatusOpen
	}
	now := timeOrNow(conv.CreatedAt)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, business_id, bot_id, visitor_id, session_id, contact_id, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.BusinessID, nullStr(conv.BotID), conv.VisitorID, conv.SessionID,
		nullStr(conv.ContactID), status, nullRaw(conv.Metadata), now, now,
	)
	if err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, conv.ID)
}

func (s *LibSQLStore) UpdateConversation(ctx context.Context, id string, update ConversationUpdate) error {
	var sets []string
	var args []any

	if update.ContactID != nil {
		sets = append(sets, "contact_id = ?")
		args = append(args, *update.ContactID)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Metadata != nil {
		sets = append(sets, "metadata = ?")
		args = append(args, string(update.Metadata))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "conversation", id)
}

func (s *LibSQLStore) AppendMessage(ctx context.Context, msg *Message) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, step_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.Role, msg.Content, nullStr(msg.StepID), timeOrNow(msg.CreatedAt),
	)
	if err != nil {
		return err
	}
	msg.ID, _ = res.LastInsertId()
	return nil
}

func scanConversation(row rowScanner) (*Conversation, error) {
	conv := &Conversation{}
	var botID, contactID, metadata sql.NullString
	err := row.Scan(&conv.ID, &conv.BusinessID, &botID, &conv.VisitorID, &conv.SessionID,
		&contactID, &conv.Status, &metadata, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	conv.BotID = botID.String
	conv.ContactID = contactID.String
	conv.Metadata = jsonOrNil(metadata)
	return conv, nil
}

// --- Contacts ---

func (s *LibSQLStore) FindContactByEmail(ctx context.Context, businessID, email string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, email, phone, name, status, tags, lead_score, custom_fields, created_at, last_seen_at
		 FROM contacts WHERE business_id = ? AND email = ?`, businessID, email,
	)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (s *LibSQLStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, business_id, email, phone, name, status, tags, lead_score, custom_fields, created_at, last_seen_at
		 FROM contacts WHERE id = ?`, id,
	)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("contact", id)
	}
	return c, err
}

func (s *LibSQLStore) CreateContact(ctx context.Context, c *Contact) error {
	tags, err := json.Marshal(orEmptyTags(c.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	customFields, err := nullableMap(c.CustomFields)
	if err != nil {
		return fmt.Errorf("marshal custom fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, business_id, email, phone, name, status, tags, lead_score, custom_fields, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.BusinessID, nullStr(c.Email), nullStr(c.Phone), nullStr(c.Name),
		c.Status, string(tags), c.LeadScore, customFields, timeOrNow(c.CreatedAt), nullTime(c.LastSeenAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"contact with email %q already exists", c.Email).WithCause(err)
	}
	return err
}

func (s *LibSQLStore) UpdateContact(ctx context.Context, id string, update ContactUpdate) error {
	var sets []string
	var args []any

	if update.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *update.Phone)
	}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Tags != nil {
		tags, err := json.Marshal(update.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tags))
	}
	if update.LeadScore != nil {
		sets = append(sets, "lead_score = ?")
		args = append(args, *update.LeadScore)
	}
	if update.CustomFields != nil {
		fields, err := json.Marshal(update.CustomFields)
		if err != nil {
			return fmt.Errorf("marshal custom fields: %w", err)
		}
		sets = append(sets, "custom_fields = ?")
		args = append(args, string(fields))
	}
	if update.LastSeenAt != nil {
		sets = append(sets, "last_seen_at = ?")
		args = append(args, *update.LastSeenAt)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE contacts SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "contact", id)
}

func (s *LibSQLStore) AppendActivity(ctx context.Context, activity *ContactActivity) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contact_activities (contact_id, type, detail, created_at) VALUES (?, ?, ?, ?)`,
		activity.ContactID, activity.Type, nullStr(activity.Detail), timeOrNow(activity.CreatedAt),
	)
	if err != nil {
		return err
	}
	activity.ID, _ = res.LastInsertId()
	return nil
}

func (s *LibSQLStore) ListActivities(ctx context.Context, contactID string) ([]*ContactActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, contact_id, type, detail, created_at FROM contact_activities
		 WHERE contact_id = ? ORDER BY id ASC`, contactID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*ContactActivity
	for rows.Next() {
		a := &ContactActivity{}
		var detail sql.NullString
		if err := rows.Scan(&a.ID, &a.ContactID, &a.Type, &detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Detail = detail.String
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func scanContact(row rowScanner) (*Contact, error) {
	c := &Contact{}
	var email, phone, name, customFields sql.NullString
	var tags string
	var lastSeen sql.NullTime
	err := row.Scan(&c.ID, &c.BusinessID, &email, &phone, &name, &c.Status,
		&tags, &c.LeadScore, &customFields, &c.CreatedAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Name = name.String
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if customFields.Valid {
		if err := json.Unmarshal([]byte(customFields.String), &c.CustomFields); err != nil {
			return nil, fmt.Errorf("unmarshal custom fields: %w", err)
		}
	}
	if lastSeen.Valid {
		c.LastSeenAt = &lastSeen.Time
	}
	return c, nil
}

// --- Queue entries ---

func (s *LibSQLStore) CreateQueueEntry(ctx context.Context, entry *QueueEntry) error {
	status := entry.Status
	if status == "" {
		status = QueueStatusWaiting
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_entries (id, conversation_id, business_id, priority, department, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ConversationID, entry.BusinessID, entry.Priority,
		nullStr(entry.Department), status, timeOrNow(entry.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) ListQueueEntries(ctx context.Context, filter QueueFilter) ([]*QueueEntry, error) {
	var where []string
	var args []any

	if filter.BusinessID != "" {
		where = append(where, "business_id = ?")
		args = append(args, filter.BusinessID)
	}
	if filter.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, filter.ConversationID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT id, conversation_id, business_id, priority, department, status, created_at FROM queue_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		e := &QueueEntry{}
		var department sql.NullString
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.BusinessID, &e.Priority, &department, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Department = department.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func jsonOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalVariables(variables map[string]string) (string, error) {
	if variables == nil {
		variables = map[string]string{}
	}
	b, err := json.Marshal(variables)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func orEmptyTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

var _ Store = (*LibSQLStore)(nil)
