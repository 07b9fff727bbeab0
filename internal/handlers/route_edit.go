package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"route-editor/internal/editing"
	"route-editor/internal/models"
	"route-editor/internal/policy"
	"route-editor/internal/presentation"
	"route-editor/internal/session"
)

// pipelineWait bounds how long a request with wait=true blocks on its
// estimate/sync pipeline
const pipelineWait = 2 * time.Minute

type dragStartRequest struct {
	Stop string `json:"stop"`
}

type hoverRequest struct {
	Container models.ContainerRef `json:"container"`
	CursorY   float64             `json:"cursor_y"`
	Items     []policy.ItemBox    `json:"items"`
}

type hoverResponse struct {
	Accepted bool            `json:"accepted"`
	Marker   *editing.Marker `json:"marker"`
}

type dropRequest struct {
	Container *models.ContainerRef `json:"container"`
	CursorY   float64              `json:"cursor_y"`
	Items     []policy.ItemBox     `json:"items"`
	Wait      bool                 `json:"wait"`
}

type moveRequest struct {
	Stop      string              `json:"stop"`
	Container models.ContainerRef `json:"container"`
	Index     int                 `json:"index"`
	Wait      bool                `json:"wait"`
}

// editResponse answers a drop or move. A rejected drop is not an error: the
// stop snaps back and the view is returned unchanged.
type editResponse struct {
	Accepted bool               `json:"accepted"`
	Reason   string             `json:"reason,omitempty"`
	View     *presentation.View `json:"view"`
}

// lookupSession resolves the {id} path segment, writing a 404 when it is unknown
func (h *Handler) lookupSession(w http.ResponseWriter, r *http.Request) *session.Session {
	id := r.PathValue("id")
	sess := h.Sessions.Get(id)
	if sess == nil {
		h.handleNotFound(w, "Session not found")
		return nil
	}
	return sess
}

// HandleCreateSession handles POST /api/v1/sessions
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.Sessions.Create(r.Context())
	h.logger().Info("Session created", zap.String("session_id", sess.ID))
	h.writeJSON(w, http.StatusCreated, sess.View())
}

// HandleGetSession handles GET /api/v1/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{id}
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Delete(r.PathValue("id")) {
		h.handleNotFound(w, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const errContainer = "container must name exactly one of vehicle or pool"

// HandleDragStart handles POST /api/v1/sessions/{id}/drag/start
func (h *Handler) HandleDragStart(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	var req dragStartRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Stop == "" {
		h.handleValidationError(w, "stop is required")
		return
	}

	if err := sess.BeginDrag(req.Stop); err != nil {
		h.handleEditError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.View())
}

// HandleDragHover handles POST /api/v1/sessions/{id}/drag/hover
func (h *Handler) HandleDragHover(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	var req hoverRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Container.Valid() {
		h.handleValidationError(w, errContainer)
		return
	}

	marker, shown, err := sess.Hover(req.Container, req.CursorY, req.Items)
	if err != nil {
		h.handleEditError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, hoverResponse{Accepted: shown, Marker: marker})
}

// HandleDragDrop handles POST /api/v1/sessions/{id}/drag/drop
func (h *Handler) HandleDragDrop(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	var req dropRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Container != nil && !req.Container.Valid() {
		h.handleValidationError(w, errContainer)
		return
	}

	pipeline, err := sess.Drop(req.Container, req.CursorY, req.Items)
	if err != nil {
		var placementErr *policy.ErrInvalidPlacement
		if errors.As(err, &placementErr) || errors.Is(err, editing.ErrDropOutside) {
			h.writeJSON(w, http.StatusOK, editResponse{Accepted: false, Reason: err.Error(), View: sess.View()})
			return
		}
		h.handleEditError(w, err)
		return
	}

	h.finishEdit(w, r, sess, pipeline, req.Wait)
}

// HandleDragCancel handles POST /api/v1/sessions/{id}/drag/cancel
func (h *Handler) HandleDragCancel(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	sess.CancelDrag()
	h.writeJSON(w, http.StatusOK, sess.View())
}

// HandleMoveStop handles POST /api/v1/sessions/{id}/move
func (h *Handler) HandleMoveStop(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Stop == "" {
		h.handleValidationError(w, "stop is required")
		return
	}
	if !req.Container.Valid() {
		h.handleValidationError(w, errContainer)
		return
	}

	pipeline, err := sess.Move(req.Stop, req.Container, req.Index)
	if err != nil {
		h.handleEditError(w, err)
		return
	}

	h.finishEdit(w, r, sess, pipeline, req.Wait)
}

// HandleResetRoutes handles POST /api/v1/sessions/{id}/reset
func (h *Handler) HandleResetRoutes(w http.ResponseWriter, r *http.Request) {
	sess := h.lookupSession(w, r)
	if sess == nil {
		return
	}
	sess.Reset()
	h.logger().Info("Session reset", zap.String("session_id", sess.ID))
	h.writeJSON(w, http.StatusOK, sess.View())
}

// finishEdit answers an accepted edit, optionally after its pipeline settled
func (h *Handler) finishEdit(w http.ResponseWriter, r *http.Request, sess *session.Session, pipeline *session.Pipeline, wait bool) {
	if pipeline != nil && wait {
		ctx, cancel := context.WithTimeout(r.Context(), pipelineWait)
		defer cancel()
		if _, err := pipeline.Wait(ctx); err != nil {
			h.logger().Warn("Stopped waiting for edit pipeline",
				zap.String("session_id", sess.ID),
				zap.Error(err))
		}
	}
	h.writeJSON(w, http.StatusOK, editResponse{Accepted: true, View: sess.View()})
}

// handleEditError maps model and gesture errors onto HTTP errors
func (h *Handler) handleEditError(w http.ResponseWriter, err error) {
	var placementErr *policy.ErrInvalidPlacement
	switch {
	case errors.As(err, &placementErr):
		h.writeError(w, http.StatusUnprocessableEntity, "INVALID_PLACEMENT", placementErr.Reason, map[string]interface{}{
			"stop":   placementErr.StopKey,
			"target": placementErr.Target,
		})
	case errors.Is(err, editing.ErrStopNotFound), errors.Is(err, editing.ErrContainerNotFound):
		h.handleNotFound(w, err.Error())
	case errors.Is(err, editing.ErrNotDragging), errors.Is(err, editing.ErrAlreadyDragging):
		h.handleConflict(w, err.Error())
	case errors.Is(err, editing.ErrDropOutside):
		h.handleValidationError(w, err.Error())
	default:
		h.handleInternalError(w, err)
	}
}
