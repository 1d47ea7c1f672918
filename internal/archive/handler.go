package archive

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/pkg/handlers"
	"github.com/JaimeStill/accord/pkg/module"
)

// Handler provides HTTP endpoints for archived contract snapshots.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler over sys.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "archive"),
	}
}

// Routes returns the route group for archive endpoints.
func (h *Handler) Routes() module.Group {
	return module.Group{
		Prefix: "/archive",
		Routes: []module.Route{
			{Method: "GET", Pattern: "/{contractId}", Handler: h.Versions},
			{Method: "GET", Pattern: "/{contractId}/{version}", Handler: h.Find},
			{Method: "GET", Pattern: "/{contractId}/{version}/verify", Handler: h.Verify},
			{Method: "GET", Pattern: "/{contractId}/{version}/download", Handler: h.Download},
		},
	}
}

// VerifyResult reports the outcome of an integrity check.
type VerifyResult struct {
	ContractID uuid.UUID `json:"contract_id"`
	Version    string    `json:"version"`
	Hash       string    `json:"hash"`
	Valid      bool      `json:"valid"`
}

// Versions lists every snapshot of a contract, newest first.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.contractID(w, r)
	if !ok {
		return
	}

	snaps, err := h.sys.Versions(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if snaps == nil {
		snaps = []Snapshot{}
	}

	handlers.RespondJSON(w, http.StatusOK, snaps)
}

// Find returns one snapshot.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	handlers.RespondJSON(w, http.StatusOK, snap)
}

// Verify recomputes the artifact digest. A mismatch responds 409 with the result body.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	valid, err := h.sys.Verify(r.Context(), *snap)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	result := VerifyResult{
		ContractID: snap.ContractID,
		Version:    snap.Version,
		Hash:       snap.Hash,
		Valid:      valid,
	}

	status := http.StatusOK
	if !valid {
		h.logger.Warn("integrity mismatch", "contract_id", snap.ContractID, "version", snap.Version)
		status = MapHTTPStatus(ErrIntegrityMismatch)
	}
	handlers.RespondJSON(w, status, result)
}

// Download streams the archived artifact bytes.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	data, err := h.sys.Artifact(r.Context(), *snap)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", snap.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Filename))
	w.Header().Set("X-Content-SHA256", snap.Hash)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) contractID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("contractId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (*Snapshot, bool) {
	id, ok := h.contractID(w, r)
	if !ok {
		return nil, false
	}

	snap, err := h.sys.Find(r.Context(), id, r.PathValue("version"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return nil, false
	}
	return snap, true
}
