package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cascadehq/cascade/pkg/workflow"
)

// SQLiteDefinitionStore persists workflow definitions. It implements
// workflow.DefinitionProvider.
type SQLiteDefinitionStore struct {
	db *sql.DB
}

func NewSQLiteDefinitionStore(d *DB) *SQLiteDefinitionStore {
	return &SQLiteDefinitionStore{db: d.SQL()}
}

// Register validates and stores a definition, replacing any previous
// row with the same ID.
func (s *SQLiteDefinitionStore) Register(ctx context.Context, def *workflow.WorkflowDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (id, name, doc, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, doc = excluded.doc
	`
	_, err = s.db.ExecContext(ctx, query, def.ID, def.Name, string(doc), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

// GetDefinition implements workflow.DefinitionProvider.
func (s *SQLiteDefinitionStore) GetDefinition(workflowID string) (*workflow.WorkflowDefinition, error) {
	query := `SELECT doc FROM workflow_definitions WHERE id = ?`
	row := s.db.QueryRow(query, workflowID)

	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, workflow.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan definition: %w", err)
	}

	var def workflow.WorkflowDefinition
	if err := json.Unmarshal([]byte(doc), &def); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return &def, nil
}

// List returns all stored definitions ordered by name.
func (s *SQLiteDefinitionStore) List(ctx context.Context) ([]*workflow.WorkflowDefinition, error) {
	query := `SELECT doc FROM workflow_definitions ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var defs []*workflow.WorkflowDefinition
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		var def workflow.WorkflowDefinition
		if err := json.Unmarshal([]byte(doc), &def); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// Delete removes a definition.
func (s *SQLiteDefinitionStore) Delete(ctx context.Context, workflowID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = ?`, workflowID)
	if err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("workflow %s: %w", workflowID, workflow.ErrNotFound)
	}
	return nil
}

var _ workflow.DefinitionProvider = (*SQLiteDefinitionStore)(nil)
