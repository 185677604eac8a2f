package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/schedule"
	"github.com/cascadehq/cascade/pkg/workflow"
)

// SQLiteScheduleStore implements schedule.ScheduleRepository on
// sqlite. The entry is stored as a JSON document with the fields the
// due query needs extracted into columns.
type SQLiteScheduleStore struct {
	db *sql.DB
}

func NewSQLiteScheduleStore(d *DB) *SQLiteScheduleStore {
	return &SQLiteScheduleStore{db: d.SQL()}
}

func (s *SQLiteScheduleStore) Save(ctx context.Context, sw *schedule.ScheduledWorkflow) error {
	doc, err := json.Marshal(sw)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	query := `
		INSERT INTO schedules (id, workflow_id, enabled, next_execution, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id = excluded.workflow_id,
			enabled = excluded.enabled,
			next_execution = excluded.next_execution,
			doc = excluded.doc
	`
	_, err = s.db.ExecContext(ctx, query,
		sw.ID, sw.WorkflowID, boolToInt(sw.Enabled), nullableUnix(sw.NextExecution),
		string(doc), sw.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (s *SQLiteScheduleStore) Get(ctx context.Context, id string) (*schedule.ScheduledWorkflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM schedules WHERE id = ?`, id)

	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("schedule %s: %w", id, workflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return unmarshalSchedule(doc)
}

func (s *SQLiteScheduleStore) List(ctx context.Context) ([]*schedule.ScheduledWorkflow, error) {
	return s.queryDocs(ctx, `SELECT doc FROM schedules ORDER BY created_at`)
}

func (s *SQLiteScheduleStore) ListByWorkflow(ctx context.Context, workflowID string) ([]*schedule.ScheduledWorkflow, error) {
	return s.queryDocs(ctx,
		`SELECT doc FROM schedules WHERE workflow_id = ? ORDER BY created_at`, workflowID)
}

func (s *SQLiteScheduleStore) ListDue(ctx context.Context, until time.Time) ([]*schedule.ScheduledWorkflow, error) {
	return s.queryDocs(ctx,
		`SELECT doc FROM schedules
		 WHERE enabled = 1 AND next_execution IS NOT NULL AND next_execution <= ?
		 ORDER BY created_at`, until.Unix())
}

func (s *SQLiteScheduleStore) Update(ctx context.Context, sw *schedule.ScheduledWorkflow) error {
	doc, err := json.Marshal(sw)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	query := `
		UPDATE schedules SET
			workflow_id = ?, enabled = ?, next_execution = ?, doc = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		sw.WorkflowID, boolToInt(sw.Enabled), nullableUnix(sw.NextExecution),
		string(doc), sw.ID,
	)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("schedule %s: %w", sw.ID, workflow.ErrNotFound)
	}
	return nil
}

func (s *SQLiteScheduleStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("schedule %s: %w", id, workflow.ErrNotFound)
	}
	return nil
}

func (s *SQLiteScheduleStore) queryDocs(ctx context.Context, query string, args ...any) ([]*schedule.ScheduledWorkflow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []*schedule.ScheduledWorkflow
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		sw, err := unmarshalSchedule(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, rows.Err()
}

func unmarshalSchedule(doc string) (*schedule.ScheduledWorkflow, error) {
	var sw schedule.ScheduledWorkflow
	if err := json.Unmarshal([]byte(doc), &sw); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return &sw, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

var _ schedule.ScheduleRepository = (*SQLiteScheduleStore)(nil)
