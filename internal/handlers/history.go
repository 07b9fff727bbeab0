package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"route-editor/internal/models"
)

// HistoryListResponse represents the archive list response
type HistoryListResponse struct {
	Snapshots []models.ArchivedSnapshot `json:"snapshots"`
	Total     int                       `json:"total"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

// HandleListHistory handles GET /api/v1/history
func (h *Handler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		h.handleNotFound(w, "Snapshot archive is disabled")
		return
	}

	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, 200)
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	snapshots, total, err := h.History.List(r.Context(), limit, offset)
	if err != nil {
		h.logger().Error("Failed to list snapshots", zap.Int("limit", limit), zap.Int("offset", offset), zap.Error(err))
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, HistoryListResponse{
		Snapshots: snapshots,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// HandleGetHistory handles GET /api/v1/history/{id}
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		h.handleNotFound(w, "Snapshot archive is disabled")
		return
	}

	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.handleValidationError(w, "Invalid snapshot ID")
		return
	}

	snapshot, err := h.History.Get(r.Context(), id)
	if err != nil {
		if h.checkNotFound(err) {
			h.handleNotFound(w, "Snapshot not found")
			return
		}
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}
