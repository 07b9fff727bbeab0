package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-editor/internal/models"
)

func sampleSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Routes: []models.VehicleRoute{
			{
				VehicleID:              "A",
				Origin:                 models.Coordinates{Lat: 50.9, Lng: 6.9},
				EstimatedDurationHours: 3,
				CapacityHours:          8,
				Stops:                  []models.Stop{
					{Key: "S1", Address: "Domkloster 4, Köln", Category: models.CategoryHomeVisit, Location: &models.Coordinates{Lat: 50.94, Lng: 6.96}},
					{Key: "T1", Category: models.CategoryPhone},
				},
			},
		},
		Unassigned: []models.Stop{{Key: "T2", Category: models.CategoryPhone}},
	}
}

func testArchive(t *testing.T, db *DB) {
	ctx := context.Background()
	archive := db.Archive()

	first := &models.ArchivedSnapshot{SessionID: "sess-1", Source: "load", Snapshot: sampleSnapshot(), CreatedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, archive.Save(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, 1, first.RouteCount)
	assert.Equal(t, 3, first.StopCount)

	second := &models.ArchivedSnapshot{SessionID: "sess-1", Source: "sync", Snapshot: sampleSnapshot()}
	require.NoError(t, archive.Save(ctx, second))

	got, err := archive.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "load", got.Source)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, sampleSnapshot().Routes[0].Stops[0].Key, got.Snapshot.Routes[0].Stops[0].Key)
	assert.Equal(t, 8.0, got.Snapshot.Routes[0].CapacityHours)
	require.NotNil(t, got.Snapshot.Routes[0].Stops[0].Location)

	latest, err := archive.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	list, total, err := archive.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Nil(t, list[0].Snapshot, "listings carry no payload")

	page, total, err := archive.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestArchive_SQLite(t *testing.T) {
	testArchive(t, setupTestDB(t))
}

func TestArchive_Postgres(t *testing.T) {
	testArchive(t, setupPostgresDB(t))
}

func TestArchive_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.Archive().Get(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.Archive().Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_EmptyList(t *testing.T) {
	db := setupTestDB(t)

	list, total, err := db.Archive().List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestArchive_RejectsNilSnapshot(t *testing.T) {
	db := setupTestDB(t)
	err := db.Archive().Save(context.Background(), &models.ArchivedSnapshot{SessionID: "s"})
	assert.Error(t, err)
}
