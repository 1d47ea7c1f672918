package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/artifact"
	"github.com/JaimeStill/accord/pkg/storage"
)

type writer struct {
	store  storage.System
	logger *slog.Logger
	now    func() time.Time
}

// New creates an archive writer over store.
func New(store storage.System, logger *slog.Logger) System {
	return &writer{
		store:  store,
		logger: logger.With("system", "archive"),
		now:    time.Now,
	}
}

func (w *writer) Handler() *Handler {
	return NewHandler(w, w.logger)
}

func (w *writer) Store(ctx context.Context, cmd StoreCommand) (*Snapshot, error) {
	filename := cmd.Filename
	if filename == "" || filename != path.Base(filename) || filename == snapshotFile || strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("%w: filename %q", ErrInvalidArtifact, cmd.Filename)
	}

	generated := w.now().UTC()
	snap := Snapshot{
		ContractID:  ContractID(cmd.Provider.ID, cmd.Template.ID),
		Version:     NewVersion(generated),
		GeneratedAt: generated,
		Provider:    cmd.Provider,
		Template:    cmd.Template,
		Mappings:    cmd.Mappings,
		Warnings:    cmd.Warnings,
		Filename:    filename,
		ContentType: cmd.ContentType,
		Size:        int64(len(cmd.Artifact)),
		PageCount:   artifact.PageCount(w.logger, cmd.Artifact, cmd.ContentType),
		Algorithm:   HashAlgorithm,
		Hash:        Digest(cmd.Artifact),
	}
	if snap.Warnings == nil {
		snap.Warnings = []string{}
	}
	if len(cmd.Template.Shell) > 0 {
		snap.ShellHash = Digest(cmd.Template.Shell)
	}
	snap.Key = artifactKey(snap.ContractID, snap.Version, filename)

	metadata := map[string]string{
		"contract_id": snap.ContractID.String(),
		"version":     snap.Version,
		"sha256":      snap.Hash,
		"size":        strconv.FormatInt(snap.Size, 10),
	}

	ref, err := w.store.Upload(ctx, snap.Key, bytes.NewReader(cmd.Artifact), cmd.ContentType, metadata)
	if err != nil {
		return nil, w.writeError("artifact", snap.Key, err)
	}
	snap.Ref = ref

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		w.compensate(snap.Key)
		return nil, fmt.Errorf("%w: encode snapshot: %w", ErrWriteFailed, err)
	}

	metaKey := snapshotKey(snap.ContractID, snap.Version)
	if _, err := w.store.Upload(ctx, metaKey, bytes.NewReader(data), "application/json", metadata); err != nil {
		w.compensate(snap.Key)
		return nil, w.writeError("snapshot", metaKey, err)
	}

	w.logger.Info("snapshot stored",
		"contract_id", snap.ContractID,
		"version", snap.Version,
		"hash", snap.Hash,
		"size", snap.Size,
	)

	return &snap, nil
}

func (w *writer) writeError(part, key string, err error) error {
	if errors.Is(err, storage.ErrExists) {
		return fmt.Errorf("%w: %w: %s", ErrWriteFailed, ErrSnapshotExists, key)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrWriteFailed, part, key, err)
}

// compensate removes an artifact whose snapshot metadata could not be written.
// It runs detached from the caller's context, which may already be expired.
func (w *writer) compensate(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		w.logger.Error("compensating delete failed", "key", key, "error", err)
		return
	}
	w.logger.Warn("artifact removed after snapshot write failure", "key", key)
}

func (w *writer) Verify(ctx context.Context, snap Snapshot) (bool, error) {
	data, err := w.Artifact(ctx, snap)
	if err != nil {
		return false, err
	}
	return Digest(data) == snap.Hash, nil
}

func (w *writer) Versions(ctx context.Context, contractID uuid.UUID) ([]Snapshot, error) {
	keys, err := w.store.List(ctx, contractPrefix(contractID))
	if err != nil {
		return nil, fmt.Errorf("list versions of %s: %w", contractID, err)
	}

	var snaps []Snapshot
	for _, key := range keys {
		if path.Base(key) != snapshotFile {
			continue
		}
		snap, err := w.read(ctx, key)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}

	slices.SortStableFunc(snaps, func(a, b Snapshot) int {
		return strings.Compare(b.Version, a.Version)
	})
	return snaps, nil
}

func (w *writer) Find(ctx context.Context, contractID uuid.UUID, version string) (*Snapshot, error) {
	if version == "" || strings.ContainsAny(version, "/\\") || strings.Contains(version, "..") {
		return nil, ErrNotFound
	}
	return w.read(ctx, snapshotKey(contractID, version))
}

func (w *writer) Artifact(ctx context.Context, snap Snapshot) ([]byte, error) {
	data, err := storage.ReadAll(ctx, w.store, snap.Key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: artifact %s", ErrNotFound, snap.Key)
		}
		return nil, err
	}
	return data, nil
}

func (w *writer) read(ctx context.Context, key string) (*Snapshot, error) {
	data, err := storage.ReadAll(ctx, w.store, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}
