package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_MissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "mys2mqtt.config.json"))

	id, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if id.NodeID != Unassigned || id.Known() {
		t.Errorf("Load() = %+v, want unassigned", id)
	}
}

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "mys2mqtt.config.json")
	s := NewFileStore(path)
	ctx := context.Background()

	for _, nodeID := range []uint8{42, 7, Unassigned} {
		if err := s.Save(ctx, Identity{NodeID: nodeID}); err != nil {
			t.Fatalf("Save(%d) error = %v", nodeID, err)
		}
		got, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.NodeID != nodeID {
			t.Errorf("Load() = %d, want %d", got.NodeID, nodeID)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePermissions {
		t.Errorf("file mode = %o, want %o", perm, filePermissions)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the record", len(entries))
	}
}

func TestFileStore_WireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	s := NewFileStore(path)

	if err := s.Save(context.Background(), Identity{NodeID: 12}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != `{"node-id":12}` {
		t.Errorf("file content = %s, want {\"node-id\":12}", data)
	}
}

func TestFileStore_ReadsExistingRecord(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    uint8
		wantErr bool
	}{
		{"assigned", `{"node-id": 23}`, 23, false},
		{"unassigned", `{"node-id": 255}`, Unassigned, false},
		{"missing key", `{}`, Unassigned, false},
		{"extra keys", `{"node-id": 5, "other": true}`, 5, false},
		{"out of range", `{"node-id": 300}`, Unassigned, true},
		{"negative", `{"node-id": -1}`, Unassigned, true},
		{"gateway id", `{"node-id": 0}`, Unassigned, true},
		{"not json", `node-id=4`, Unassigned, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "id.json")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			got, err := NewFileStore(path).Load(context.Background())
			if tt.wantErr {
				if !errors.Is(err, ErrCorruptRecord) {
					t.Errorf("Load() error = %v, want ErrCorruptRecord", err)
				}
			} else if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.NodeID != tt.want {
				t.Errorf("Load() = %d, want %d", got.NodeID, tt.want)
			}
		})
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStore(filepath.Join(t.TempDir(), "id.json"))
	if err := s.Save(ctx, Identity{NodeID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
}
