package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mysnode/internal/infrastructure/database"
)

// SQLiteStore keeps the identity in the node_identity table.
// The schema comes from the embedded migrations; run db.Migrate first.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore returns a store on db.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load reads the single identity row. No row is an unassigned identity.
func (s *SQLiteStore) Load(ctx context.Context) (Identity, error) {
	var nodeID int
	err := s.db.QueryRowContext(ctx,
		"SELECT node_id FROM node_identity WHERE id = 1",
	).Scan(&nodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{NodeID: Unassigned}, nil
	}
	if err != nil {
		return Identity{NodeID: Unassigned}, fmt.Errorf("loading identity: %w", err)
	}
	if !validStored(nodeID) {
		return Identity{NodeID: Unassigned}, fmt.Errorf("%w: node_id %d out of range", ErrCorruptRecord, nodeID)
	}

	return Identity{NodeID: uint8(nodeID)}, nil
}

// Save upserts the identity row.
func (s *SQLiteStore) Save(ctx context.Context, id Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_identity (id, node_id, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			node_id = excluded.node_id,
			updated_at = excluded.updated_at
	`, int(id.NodeID), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}
