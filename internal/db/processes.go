package db

import (
	"context"
	"encoding/json"
	"fmt"

	"homehub/internal/models"
)

// ProcessRepository loads the automation rule set. Every call returns a
// fresh snapshot; the processor re-reads it per evaluation cycle.
type ProcessRepository struct {
	db *DB
}

// NewProcessRepository creates a repository over the given database.
func NewProcessRepository(db *DB) *ProcessRepository {
	return &ProcessRepository{db: db}
}

// GetAllProcesses returns all enabled processes. A document that fails
// to decode is skipped; one bad rule must not hide the rest.
func (r *ProcessRepository) GetAllProcesses(ctx context.Context) ([]models.Process, error) {
	rows, err := r.db.pool.Query(ctx,
		"SELECT name, document FROM processes WHERE enabled = true")
	if err != nil {
		return nil, fmt.Errorf("db: load processes: %w", err)
	}
	defer rows.Close()

	var processes []models.Process
	for rows.Next() {
		var (
			name     string
			document []byte
		)
		if err := rows.Scan(&name, &document); err != nil {
			return nil, fmt.Errorf("db: scan process: %w", err)
		}
		var process models.Process
		if err := json.Unmarshal(document, &process); err != nil {
			// Surfaces again as a warning when the broken rule is edited.
			continue
		}
		if process.Name == "" {
			process.Name = name
		}
		processes = append(processes, process)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db: load processes: %w", err)
	}
	return processes, nil
}
