package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"route-editor/internal/database"
	"route-editor/internal/geocoding"
	"route-editor/internal/logging"
	"route-editor/internal/models"
	"route-editor/internal/session"
)

// History reads the snapshot archive
type History interface {
	List(ctx context.Context, limit, offset int) ([]models.ArchivedSnapshot, int, error)
	Get(ctx context.Context, id int64) (*models.ArchivedSnapshot, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	Sessions *session.Store
	History  History
	Geocoder geocoding.Geocoder
	DB       HealthChecker
	Logger   *zap.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (h *Handler) logger() *zap.Logger {
	return logging.OrNop(h.Logger).Named("http")
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// handleNotFound handles 404 errors
func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

// handleValidationError handles 400 errors
func (h *Handler) handleValidationError(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

// handleConflict handles 409 errors for gestures out of order
func (h *Handler) handleConflict(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusConflict, "CONFLICT", message, nil)
}

// handleInternalError handles 500 errors
func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.logger().Error("Internal error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}

// checkNotFound checks if an error is a not found error
func (h *Handler) checkNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

// decode reads a JSON request body into dst
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.handleValidationError(w, "Invalid request body")
		return false
	}
	return true
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "connected"

	if h.DB == nil {
		dbStatus = "disabled"
	} else if err := h.DB.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "error"
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"version":  "1.0.0",
		"database": dbStatus,
		"sessions": h.Sessions.Len(),
	})
}
