package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-editor/internal/models"
)

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		Routes: []models.VehicleRoute{
			{
				VehicleID:              "A",
				Origin:                 models.Coordinates{Lat: 50.9, Lng: 6.9},
				EstimatedDurationHours: 2.25,
				CapacityHours:          8,
				Stops: []models.Stop{
					{Key: "S1", Address: "Domkloster 4", Category: models.CategoryHomeVisit, Location: &models.Coordinates{Lat: 50.94, Lng: 6.96}, Sequence: 1},
					{Key: "T1", Category: models.CategoryPhone},
				},
			},
		},
		Unassigned: []models.Stop{{Key: "T2", Category: models.CategoryPhone}},
	}
}

func TestSync_SendsSnapshotAndReturnsAuthoritative(t *testing.T) {
	var got SyncRequest
	var requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync_routes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		requestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Response{
			Status: StatusSuccess,
			Routes: []models.VehicleRoute{
				{VehicleID: "A", EstimatedDurationHours: 2.4, CapacityHours: 7.5, Stops: []models.Stop{{Key: "S1", Category: models.CategoryHomeVisit}}},
			},
			UnassignedStops: []models.Stop{{Key: "T1", Category: models.CategoryPhone}, {Key: "T2", Category: models.CategoryPhone}},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, 0, nil)
	snap, err := client.Sync(context.Background(), testSnapshot())
	require.NoError(t, err)

	require.Len(t, got.OptimizedRoutes, 1)
	sent := got.OptimizedRoutes[0]
	assert.Equal(t, "A", sent.VehicleID)
	assert.Equal(t, 2.25, sent.EstimatedDurationHours)
	assert.Equal(t, 8.0, sent.CapacityHours)
	require.Len(t, sent.Stops, 2)
	assert.Equal(t, "Domkloster 4", sent.Stops[0].Address)
	assert.Equal(t, models.CategoryHomeVisit, sent.Stops[0].Category)
	assert.NotNil(t, sent.Stops[0].Location)
	assert.Len(t, got.UnassignedStops, 1)
	assert.NotEmpty(t, requestID)

	assert.Equal(t, 7.5, snap.Routes[0].CapacityHours)
	assert.Len(t, snap.Unassigned, 2)
}

func TestSync_EmptySnapshotSendsArrays(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	snap, err := NewHTTPClient(server.URL, 0, nil).Sync(context.Background(), models.Snapshot{})
	require.NoError(t, err)

	assert.JSONEq(t, `[]`, string(raw["optimizedRoutes"]))
	assert.JSONEq(t, `[]`, string(raw["unassignedStops"]))
	assert.NotNil(t, snap.Routes)
}

func TestSync_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"vehicle A over capacity"}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, 0, nil).Sync(context.Background(), testSnapshot())

	var syncErr *ErrSyncFailed
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "vehicle A over capacity", syncErr.Message)
	assert.NotEmpty(t, syncErr.RequestID)
}

func TestSync_ErrorStatusWithHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"status":"error","message":"invalid stop"}`))
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, 0, nil).Sync(context.Background(), testSnapshot())

	var syncErr *ErrSyncFailed
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "invalid stop", syncErr.Message)
}

func TestSync_ServerErrorIsNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, 0, nil).Sync(context.Background(), testSnapshot())

	var syncErr *ErrSyncFailed
	require.True(t, errors.As(err, &syncErr))
	var statusErr *httpStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	assert.Equal(t, 1, calls)
}

func TestLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/routes", r.URL.Path)
		w.Write([]byte(`{
			"status": "success",
			"routes": [{"vehicle": "A", "vehicle_start": {"lat": 50.9, "lng": 6.9}, "capacity_hours": 8, "function": "Pflege",
				"stops": [{"patient": "P1", "address": "Hauptstr. 1", "visit_type": "HB"}]}],
			"unassignedStops": [{"patient": "P2", "visit_type": "TK"}]
		}`))
	}))
	defer server.Close()

	snap, err := NewHTTPClient(server.URL+"/", 0, nil).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Routes, 1)
	assert.Equal(t, "Pflege", snap.Routes[0].Label)
	assert.Equal(t, models.CategoryHomeVisit, snap.Routes[0].Stops[0].Category)
	assert.Equal(t, "P2", snap.Unassigned[0].Key)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"error status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"error","message":"no saved routes"}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"invalid json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}},
		{"missing status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"routes":[]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewHTTPClient(server.URL, 0, nil).Load(context.Background())

			var loadErr *ErrLoadFailed
			assert.True(t, errors.As(err, &loadErr), "got %v", err)
		})
	}
}
