// Package backend is the client for the route optimizer service that owns the
// authoritative route assignment.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Client loads and re-validates route snapshots
type Client interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Sync(ctx context.Context, snapshot models.Snapshot) (*models.Snapshot, error)
}

// SyncRequest is the body posted to the sync endpoint
type SyncRequest struct {
	OptimizedRoutes []models.VehicleRoute `json:"optimizedRoutes"`
	UnassignedStops []models.Stop         `json:"unassignedStops"`
}

// Response is returned by both the load and the sync endpoint
type Response struct {
	Status          string                `json:"status"`
	Routes          []models.VehicleRoute `json:"routes"`
	UnassignedStops []models.Stop         `json:"unassignedStops"`
	Message         string                `json:"message,omitempty"`
}

// Snapshot converts a successful response into a snapshot
func (r *Response) Snapshot() *models.Snapshot {
	snap := &models.Snapshot{Routes: r.Routes, Unassigned: r.UnassignedStops}
	if snap.Routes == nil {
		snap.Routes = []models.VehicleRoute{}
	}
	return snap
}

// ErrSyncFailed is returned when the backend rejects or fails a sync
type ErrSyncFailed struct {
	RequestID string
	Message   string
	Err       error
}

func (e *ErrSyncFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route sync failed: %v", e.Err)
	}
	return fmt.Sprintf("route sync failed: %s", e.Message)
}

func (e *ErrSyncFailed) Unwrap() error {
	return e.Err
}

// ErrLoadFailed is returned when the initial snapshot could not be loaded
type ErrLoadFailed struct {
	Message string
	Err     error
}

func (e *ErrLoadFailed) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("route load failed: %v", e.Err)
	}
	return fmt.Sprintf("route load failed: %s", e.Message)
}

func (e *ErrLoadFailed) Unwrap() error {
	return e.Err
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// HTTPClient talks JSON to the optimizer service. Requests are never retried:
// a sync is not idempotent from the operator's point of view.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a backend client
func NewHTTPClient(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(logger).Named("backend"),
	}
}

// Load fetches the last saved authoritative snapshot
func (c *HTTPClient) Load(ctx context.Context) (*models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/routes", nil)
	if err != nil {
		return nil, &ErrLoadFailed{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		c.logger.Error("Route load request failed", zap.Error(err))
		return nil, &ErrLoadFailed{Err: err}
	}
	if resp.Status != StatusSuccess {
		c.logger.Warn("Route load rejected", zap.String("status", resp.Status), zap.String("message", resp.Message))
		return nil, &ErrLoadFailed{Message: rejectionMessage(resp)}
	}

	snap := resp.Snapshot()
	c.logger.Info("Routes loaded",
		zap.Int("routes", len(snap.Routes)),
		zap.Int("unassigned", len(snap.Unassigned)),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}

// Sync submits the edited snapshot and returns the authoritative one
func (c *HTTPClient) Sync(ctx context.Context, snapshot models.Snapshot) (*models.Snapshot, error) {
	requestID := uuid.NewString()

	body := SyncRequest{OptimizedRoutes: snapshot.Routes, UnassignedStops: snapshot.Unassigned}
	if body.OptimizedRoutes == nil {
		body.OptimizedRoutes = []models.VehicleRoute{}
	}
	if body.UnassignedStops == nil {
		body.UnassignedStops = []models.Stop{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ErrSyncFailed{RequestID: requestID, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync_routes", bytes.NewReader(payload))
	if err != nil {
		return nil, &ErrSyncFailed{RequestID: requestID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		c.logger.Error("Route sync request failed", zap.String("request_id", requestID), zap.Error(err))
		return nil, &ErrSyncFailed{RequestID: requestID, Err: err}
	}
	if resp.Status != StatusSuccess {
		c.logger.Warn("Route sync rejected",
			zap.String("request_id", requestID),
			zap.String("status", resp.Status),
			zap.String("message", resp.Message))
		return nil, &ErrSyncFailed{RequestID: requestID, Message: rejectionMessage(resp)}
	}

	snap := resp.Snapshot()
	c.logger.Info("Routes synced",
		zap.String("request_id", requestID),
		zap.Int("routes", len(snap.Routes)),
		zap.Duration("elapsed", time.Since(start)))
	return snap, nil
}

func (c *HTTPClient) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	// An error status with a JSON error body is a rejection, not a transport failure
	if resp.StatusCode >= 400 {
		if decodeErr == nil && out.Status == StatusError {
			return &out, nil
		}
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &out, nil
}

func rejectionMessage(resp *Response) string {
	if resp.Message != "" {
		return resp.Message
	}
	if resp.Status == "" {
		return "missing status in response"
	}
	return fmt.Sprintf("unexpected status %q", resp.Status)
}
