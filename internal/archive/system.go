package archive

import (
	"context"

	"github.com/google/uuid"
)

// System stores and reads immutable contract snapshots.
type System interface {
	Handler() *Handler

	// Store writes the artifact and its snapshot under a new version.
	// A failure of either write is ErrWriteFailed; no partial version survives.
	Store(ctx context.Context, cmd StoreCommand) (*Snapshot, error)
	// Verify recomputes the stored artifact digest and compares it to snap.Hash.
	Verify(ctx context.Context, snap Snapshot) (bool, error)
	// Versions returns every snapshot of a contract, newest first.
	Versions(ctx context.Context, contractID uuid.UUID) ([]Snapshot, error)
	Find(ctx context.Context, contractID uuid.UUID, version string) (*Snapshot, error)
	Artifact(ctx context.Context, snap Snapshot) ([]byte, error)
}
