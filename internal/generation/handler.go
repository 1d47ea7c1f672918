package generation

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/accord/internal/artifact"
	"github.com/JaimeStill/accord/pkg/handlers"
	"github.com/JaimeStill/accord/pkg/module"
	"github.com/JaimeStill/accord/pkg/pagination"
)

// Handler provides HTTP endpoints for previews and bulk runs.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "generation"),
		pagination: pagination,
	}
}

// Routes returns the route group for generation endpoints.
func (h *Handler) Routes() module.Group {
	return module.Group{
		Prefix: "/generation",
		Routes: []module.Route{
			{Method: "POST", Pattern: "/preview", Handler: h.Preview},
			{Method: "GET", Pattern: "/runs", Handler: h.History},
			{Method: "POST", Pattern: "/runs", Handler: h.Start},
			{Method: "GET", Pattern: "/runs/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "/runs/{id}/cancel", Handler: h.Cancel},
			{Method: "POST", Pattern: "/runs/{id}/retry", Handler: h.Retry},
			{Method: "GET", Pattern: "/runs/{id}/package", Handler: h.Package},
		},
	}
}

// Preview merges one provider and returns the filled body and warnings.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var cmd PreviewCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.Preview(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Start launches a bulk run and responds 202 with its initial state.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var cmd StartCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	state, err := h.sys.Start(r.Context(), cmd)
	if err != nil {
		h.respondLaunchError(w, state, err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, state)
}

// History returns a page of recorded runs.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.History(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns the progress and outcomes of a run.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	state, err := h.sys.Find(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, state)
}

// Cancel requests a cooperative stop.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	state, err := h.sys.Cancel(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, state)
}

// Retry launches a new run over the failed items of a finished run.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	state, err := h.sys.Retry(r.Context(), id)
	if err != nil {
		h.respondLaunchError(w, state, err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, state)
}

// Package streams the zip of a run's generated artifacts.
func (h *Handler) Package(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	rc, pkg, err := h.sys.Package(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", artifact.ContentTypeZip)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id.String()+".zip"))
	w.Header().Set("Content-Length", fmt.Sprint(pkg.Size))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("package stream failed", "run_id", id, "error", err)
	}
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrRunNotFound)
		return uuid.Nil, false
	}
	return id, true
}

// rejection is the body of a 422 for a run that failed validation.
type rejection struct {
	Error string `json:"error"`
	Run   *State `json:"run"`
}

func (h *Handler) respondLaunchError(w http.ResponseWriter, state *State, err error) {
	status := MapHTTPStatus(err)
	if state == nil || state.Status != StatusRejected {
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	h.logger.Warn("run rejected", "run_id", state.ID, "error", err, "status", status)
	handlers.RespondJSON(w, status, rejection{Error: err.Error(), Run: state})
}
