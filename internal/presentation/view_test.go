package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-editor/internal/models"
)

func loc(lat, lng float64) *models.Coordinates {
	return &models.Coordinates{Lat: lat, Lng: lng}
}

func testInput() Input {
	return Input{
		SessionID: "s1",
		Routes: []models.VehicleRoute{
			{
				VehicleID:              "A",
				Label:                  "Pflege",
				Origin:                 models.Coordinates{Lat: 50.9, Lng: 6.9},
				EstimatedDurationHours: 2.25,
				CapacityHours:          8,
				Stops: []models.Stop{
					{Key: "S1", Category: models.CategoryHomeVisit, Location: loc(50.91, 6.91), Sequence: 1},
					{Key: "S2", Category: models.CategoryAdmission, Location: loc(50.92, 6.92), Sequence: 2},
					{Key: "T1", Category: models.CategoryPhone, Location: loc(50.93, 6.93)},
				},
			},
			{
				VehicleID:              "B",
				Origin:                 models.Coordinates{Lat: 51, Lng: 7},
				EstimatedDurationHours: 7.1,
				CapacityHours:          6,
				Stops: []models.Stop{
					{Key: "S3", Category: models.CategoryHomeVisit, Sequence: 1},
				},
			},
		},
		Pool:       []models.Stop{{Key: "T2", Category: models.CategoryPhone}},
		Geometries: map[string]string{"A": "poly-a"},
		Counts: Counts{
			StopsPerVehicle:     map[string]int{"A": 3, "B": 1},
			TotalStops:          5,
			AssignedNonRoutable: []models.Stop{{Key: "T1", Category: models.CategoryPhone}},
		},
	}
}

func TestBuild_Cards(t *testing.T) {
	view := Build(testInput())

	require.Len(t, view.Routes, 2)
	a, b := view.Routes[0], view.Routes[1]

	assert.Equal(t, "A", a.VehicleID)
	assert.Equal(t, "Pflege", a.Label)
	assert.True(t, a.WithinCapacity)
	assert.Equal(t, StatusWithin, a.Status)
	assert.Equal(t, Palette[0], a.Color)

	assert.False(t, b.WithinCapacity)
	assert.Equal(t, StatusOver, b.Status)
	assert.Equal(t, Palette[1], b.Color)

	require.Len(t, a.Chips, 3)
	assert.Equal(t, 1, a.Chips[0].Sequence)
	assert.Equal(t, 2, a.Chips[1].Sequence)
	assert.Zero(t, a.Chips[2].Sequence)
	assert.False(t, a.Chips[2].Routable)
	assert.Equal(t, models.Vehicle("A"), a.Chips[2].Container)
	assert.Equal(t, 2, a.Chips[2].Index)
	assert.Equal(t, 3, a.StopCount)
	assert.Equal(t, 1, b.StopCount)
}

func TestBuild_MarkersAndPolylines(t *testing.T) {
	view := Build(testInput())

	var stopLabels []string
	vehicles := 0
	for _, m := range view.Markers {
		switch m.Kind {
		case MarkerVehicle:
			vehicles++
		case MarkerStop:
			stopLabels = append(stopLabels, m.Key+"="+m.Label)
		}
	}
	assert.Equal(t, 2, vehicles)
	// T1 is not routable and S3 has no location
	assert.Equal(t, []string{"S1=1", "S2=2"}, stopLabels)

	require.Len(t, view.Polylines, 1)
	assert.Equal(t, "A", view.Polylines[0].VehicleID)
	assert.Equal(t, "poly-a", view.Polylines[0].Geometry)
	assert.Equal(t, Palette[0], view.Polylines[0].Color)
}

func TestBuild_PoolAndSummary(t *testing.T) {
	view := Build(testInput())

	require.Len(t, view.Pool, 1)
	assert.True(t, view.Pool[0].Container.IsPool())

	assert.Equal(t, Summary{Routes: 2, Stops: 5, Unassigned: 1, AssignedNonRoutable: 1, OverCapacity: 1}, view.Summary)
	assert.Equal(t, "idle", view.Drag.State)
	assert.Equal(t, "s1", view.SessionID)
}

func TestBuild_EmptyModel(t *testing.T) {
	view := Build(Input{SessionID: "empty", Notice: &models.Notice{Kind: models.NoticeLoadFailed, Message: "down"}})

	assert.NotNil(t, view.Routes)
	assert.NotNil(t, view.Pool)
	assert.NotNil(t, view.Markers)
	assert.Empty(t, view.Polylines)
	require.NotNil(t, view.Notice)
	assert.Equal(t, models.NoticeLoadFailed, view.Notice.Kind)
}

func TestColor_Cycles(t *testing.T) {
	assert.Equal(t, "#FF0000", Color(0))
	assert.Equal(t, "#00FF00", Color(19))
	assert.Equal(t, Color(0), Color(20))
	assert.Equal(t, Color(3), Color(43))
}
