package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homehub/internal/models"
	"homehub/internal/values"
)

// HistoryStore persists accepted state changes for long-term queries.
// The in-memory history in the state manager stays authoritative for
// the process lifetime; this table outlives restarts.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a store over the given database.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Insert appends one state change row.
func (s *HistoryStore) Insert(ctx context.Context, deviceID string, target models.DeviceTarget, value values.Value, timestamp time.Time) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("db: marshal state value: %w", err)
	}
	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO device_states_history (device_id, channel, identifier, contact, value, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		deviceID, target.Channel, target.Identifier, target.Contact, encoded, timestamp)
	if err != nil {
		return fmt.Errorf("db: insert state history: %w", err)
	}
	return nil
}
