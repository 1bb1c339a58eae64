// Package identity persists the node id assigned by the controller.
//
// Two backends are provided: FileStore keeps a small JSON record next to
// the binary, SQLiteStore keeps a single row in the local database.
package identity

import (
	"context"
	"errors"
)

// Unassigned is the node id used before the controller has assigned one.
const Unassigned uint8 = 255

// gatewayID belongs to the gateway and is never assigned to a node.
const gatewayID uint8 = 0

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("identity: corrupt record")

// Identity is the persisted node identity.
type Identity struct {
	NodeID uint8
}

// Known reports whether a usable node id has been assigned.
func (i Identity) Known() bool {
	return i.NodeID != Unassigned && i.NodeID != gatewayID
}

// validStored reports whether n may appear in a stored record: an
// assigned node id or Unassigned.
func validStored(n int) bool {
	return n > int(gatewayID) && n <= int(Unassigned)
}

// Store loads and saves the node identity.
//
// Load returns an Identity with NodeID Unassigned and a nil error when
// nothing has been stored yet.
type Store interface {
	Load(ctx context.Context) (Identity, error)
	Save(ctx context.Context, id Identity) error
}
