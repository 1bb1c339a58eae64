package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	filePermissions = 0600
	dirPermissions  = 0750
)

// record is the on-disk shape: {"node-id": 12}.
type record struct {
	NodeID *int `json:"node-id"`
}

// FileStore keeps the identity in a JSON file.
//
// Writes go to a temporary file in the same directory which is then
// renamed over the target, so a crash never leaves a truncated record.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file is an unassigned identity.
func (s *FileStore) Load(ctx context.Context) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{NodeID: Unassigned}, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Identity{NodeID: Unassigned}, nil
	}
	if err != nil {
		return Identity{NodeID: Unassigned}, fmt.Errorf("reading identity file: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Identity{NodeID: Unassigned}, fmt.Errorf("%w: %s: %w", ErrCorruptRecord, s.path, err)
	}
	if rec.NodeID == nil {
		return Identity{NodeID: Unassigned}, nil
	}
	if !validStored(*rec.NodeID) {
		return Identity{NodeID: Unassigned}, fmt.Errorf("%w: node-id %d out of range", ErrCorruptRecord, *rec.NodeID)
	}

	return Identity{NodeID: uint8(*rec.NodeID)}, nil
}

// Save atomically replaces the record.
func (s *FileStore) Save(ctx context.Context, id Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nodeID := int(id.NodeID)
	data, err := json.Marshal(record{NodeID: &nodeID})
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp identity file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("writing identity: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing identity: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing identity: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting identity permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing identity file: %w", err)
	}

	return nil
}
