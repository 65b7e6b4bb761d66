// Package store implements the tenant-scoped document store for form-type
// schemas, data records, and the chat log.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/faradid/formforge/internal/schema"
)

// Store manages form-type, record, and chat persistence. Every operation is
// scoped to the caller-supplied tenant id.
type Store struct {
	db *sql.DB
}

// NewStore creates a document store over an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FormType is one stored form-type document.
type FormType struct {
	ID     string
	Name   string
	Schema schema.FormSchema
	UserID string
}

// Record is one stored data record.
type Record struct {
	ID         string
	FormTypeID string
	Data       schema.RecordData
	UserID     string
}

// ChatMessage is one stored chat-log entry.
type ChatMessage struct {
	ID        string
	Role      string
	Messages  []string
	UserID    string
	CreatedAt string
}

func newDocID() string {
	return uuid.NewString()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// ListFormTypes returns all form types for a tenant.
func (s *Store) ListFormTypes(ctx context.Context, userID string) ([]FormType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, schema_json, user_id FROM form_types WHERE user_id=? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query form types: %w", err)
	}
	defer rows.Close()
	var out []FormType
	for rows.Next() {
		var ft FormType
		var schemaJSON string
		if err := rows.Scan(&ft.ID, &ft.Name, &schemaJSON, &ft.UserID); err != nil {
			return nil, fmt.Errorf("scan form type: %w", err)
		}
		ft.Schema = parseSchema(ft.ID, schemaJSON)
		if ft.Schema.Name == "" {
			ft.Schema.Name = ft.Name
		}
		out = append(out, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form types: %w", err)
	}
	return out, nil
}

// GetFormType fetches one form type by id, tenant-scoped.
func (s *Store) GetFormType(ctx context.Context, userID, id string) (FormType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, schema_json, user_id FROM form_types WHERE id=? AND user_id=?`, id, userID)
	var ft FormType
	var schemaJSON string
	if err := row.Scan(&ft.ID, &ft.Name, &schemaJSON, &ft.UserID); err != nil {
		if err == sql.ErrNoRows {
			return FormType{}, fmt.Errorf("form type %s not found", id)
		}
		return FormType{}, fmt.Errorf("read form type: %w", err)
	}
	ft.Schema = parseSchema(ft.ID, schemaJSON)
	if ft.Schema.Name == "" {
		ft.Schema.Name = ft.Name
	}
	return ft, nil
}

// CreateFormType inserts a new form-type document and returns its id.
func (s *Store) CreateFormType(ctx context.Context, userID, name string, formSchema schema.FormSchema) (string, error) {
	if formSchema.Name == "" {
		formSchema.Name = name
	}
	schema.EnsureHeaderFields(&formSchema)
	raw, err := json.Marshal(formSchema)
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	id := newDocID()
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO form_types(id, name, schema_json, user_id, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)`,
		id, name, string(raw), userID, ts, ts); err != nil {
		return "", fmt.Errorf("insert form type: %w", err)
	}
	return id, nil
}

// UpdateFormType replaces a form-type document in a single write.
func (s *Store) UpdateFormType(ctx context.Context, userID, id, name string, formSchema schema.FormSchema) error {
	if formSchema.Name == "" {
		formSchema.Name = name
	}
	schema.EnsureHeaderFields(&formSchema)
	raw, err := json.Marshal(formSchema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE form_types SET name=?, schema_json=?, updated_at=? WHERE id=? AND user_id=?`,
		name, string(raw), now(), id, userID)
	if err != nil {
		return fmt.Errorf("update form type: %w", err)
	}
	return requireRow(res, fmt.Sprintf("form type %s", id))
}

// DeleteFormType removes a form-type document.
func (s *Store) DeleteFormType(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM form_types WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete form type: %w", err)
	}
	return requireRow(res, fmt.Sprintf("form type %s", id))
}

// ListRecords returns all records for a tenant.
func (s *Store) ListRecords(ctx context.Context, userID string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT id, form_type_id, data_json, user_id FROM records WHERE user_id=? ORDER BY created_at`, userID)
}

// ListRecordsByFormType returns a tenant's records belonging to one form type.
func (s *Store) ListRecordsByFormType(ctx context.Context, userID, formTypeID string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT id, form_type_id, data_json, user_id FROM records WHERE form_type_id=? AND user_id=? ORDER BY created_at`,
		formTypeID, userID)
}

// CountRecordsByFormType counts a tenant's records belonging to one form type.
func (s *Store) CountRecordsByFormType(ctx context.Context, userID, formTypeID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE form_type_id=? AND user_id=?`, formTypeID, userID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// CreateRecord inserts a new record document and returns its id.
func (s *Store) CreateRecord(ctx context.Context, userID, formTypeID string, data schema.RecordData) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal record data: %w", err)
	}
	id := newDocID()
	ts := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records(id, form_type_id, data_json, user_id, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?)`,
		id, formTypeID, string(raw), userID, ts, ts); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

// UpdateRecord replaces a record's data in a single write.
func (s *Store) UpdateRecord(ctx context.Context, userID, id string, data schema.RecordData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal record data: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET data_json=?, updated_at=? WHERE id=? AND user_id=?`,
		string(raw), now(), id, userID)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return requireRow(res, fmt.Sprintf("record %s", id))
}

// DeleteRecord removes a record document.
func (s *Store) DeleteRecord(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRow(res, fmt.Sprintf("record %s", id))
}

// ChatHistory returns a tenant's chat messages in ascending creation order.
func (s *Store) ChatHistory(ctx context.Context, userID string) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, messages_json, user_id, created_at FROM chat_messages WHERE user_id=? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()
	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var messagesJSON string
		if err := rows.Scan(&m.ID, &m.Role, &messagesJSON, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &m.Messages); err != nil {
			log.Warn().Err(err).Str("id", m.ID).Msg("store: malformed chat messages, skipping")
			continue
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}

// SaveChatMessage appends one message to the tenant's chat log.
func (s *Store) SaveChatMessage(ctx context.Context, userID, role string, messages []string) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal chat messages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages(id, role, messages_json, user_id, created_at) VALUES(?, ?, ?, ?, ?)`,
		newDocID(), role, string(raw), userID, now()); err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var dataJSON string
		if err := rows.Scan(&r.ID, &r.FormTypeID, &dataJSON, &r.UserID); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Data = parseRecordData(r.ID, dataJSON)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Malformed stored JSON degrades to an empty document rather than failing
// the whole listing.
func parseSchema(id, raw string) schema.FormSchema {
	var s schema.FormSchema
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("store: malformed schema json")
		return schema.FormSchema{}
	}
	return s
}

func parseRecordData(id, raw string) schema.RecordData {
	var d schema.RecordData
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("store: malformed record json")
		return schema.RecordData{Header: map[string]any{}, Items: []map[string]any{}}
	}
	if d.Header == nil {
		d.Header = map[string]any{}
	}
	if d.Items == nil {
		d.Items = []map[string]any{}
	}
	return d
}

func requireRow(res sql.Result, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found", what)
	}
	return nil
}
