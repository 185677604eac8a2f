package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cascadehq/cascade/pkg/trigger"
	"github.com/cascadehq/cascade/pkg/workflow"
)

// SQLiteTriggerStore implements trigger.TriggerRepository on sqlite.
type SQLiteTriggerStore struct {
	db *sql.DB
}

func NewSQLiteTriggerStore(d *DB) *SQLiteTriggerStore {
	return &SQLiteTriggerStore{db: d.SQL()}
}

func (s *SQLiteTriggerStore) Save(ctx context.Context, t *trigger.Trigger) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	query := `
		INSERT INTO triggers (id, workflow_id, enabled, priority, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			enabled = excluded.enabled,
			priority = excluded.priority,
			doc = excluded.doc
	`
	_, err = s.db.ExecContext(ctx, query,
		t.ID, t.WorkflowID, boolToInt(t.Enabled), t.Priority,
		string(doc), t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (s *SQLiteTriggerStore) Get(ctx context.Context, id string) (*trigger.Trigger, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM triggers WHERE id = ?`, id)

	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trigger %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan trigger: %w", err)
	}
	return unmarshalTrigger(doc)
}

func (s *SQLiteTriggerStore) List(ctx context.Context) ([]*trigger.Trigger, error) {
	return s.queryDocs(ctx, `SELECT doc FROM triggers ORDER BY priority, created_at`)
}

func (s *SQLiteTriggerStore) ListEnabled(ctx context.Context) ([]*trigger.Trigger, error) {
	return s.queryDocs(ctx,
		`SELECT doc FROM triggers WHERE enabled = 1 ORDER BY priority, created_at`)
}

func (s *SQLiteTriggerStore) ListByWorkflow(ctx context.Context, workflowID string) ([]*trigger.Trigger, error) {
	return s.queryDocs(ctx,
		`SELECT doc FROM triggers WHERE workflow_id = ? ORDER BY priority, created_at`, workflowID)
}

func (s *SQLiteTriggerStore) Update(ctx context.Context, t *trigger.Trigger) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	query := `
		UPDATE triggers SET
			workflow_id = ?, enabled = ?, priority = ?, doc = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		t.WorkflowID, boolToInt(t.Enabled), t.Priority, string(doc), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("trigger %s: %w", t.ID, workflow.ErrNotFound)
	}
	return nil
}

func (s *SQLiteTriggerStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM triggers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("trigger %s: %w", id, workflow.ErrNotFound)
	}
	return nil
}

func (s *SQLiteTriggerStore) queryDocs(ctx context.Context, query string, args ...any) ([]*trigger.Trigger, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	var out []*trigger.Trigger
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t, err := unmarshalTrigger(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func unmarshalTrigger(doc string) (*trigger.Trigger, error) {
	var t trigger.Trigger
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	return &t, nil
}

var _ trigger.TriggerRepository = (*SQLiteTriggerStore)(nil)
