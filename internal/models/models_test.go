package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryRoutable(t *testing.T) {
	assert.True(t, CategoryHomeVisit.Routable())
	assert.True(t, CategoryAdmission.Routable())
	assert.False(t, CategoryPhone.Routable())
	assert.True(t, Category("Palliativ").Routable())
}

func TestVehicleRouteWithinCapacity(t *testing.T) {
	r := VehicleRoute{EstimatedDurationHours: 7.5, CapacityHours: 7.5}
	assert.True(t, r.WithinCapacity())

	r.EstimatedDurationHours = 7.51
	assert.False(t, r.WithinCapacity())
}

func TestRoutableCount(t *testing.T) {
	r := VehicleRoute{Stops: []Stop{
		{Key: "a", Category: CategoryHomeVisit},
		{Key: "b", Category: CategoryAdmission},
		{Key: "c", Category: CategoryPhone},
	}}

	assert.Equal(t, 2, r.RoutableCount())
	assert.Len(t, r.RoutableStops(), 2)
}

func TestSnapshotCloneIndependence(t *testing.T) {
	original := Snapshot{
		Routes: []VehicleRoute{{
			VehicleID: "Anna Schmidt",
			Stops: []Stop{
				{Key: "p1", Category: CategoryHomeVisit, Location: &Coordinates{Lat: 50.9, Lng: 6.9}},
			},
		}},
		Unassigned: []Stop{{Key: "p2", Category: CategoryPhone}},
	}

	copied := original.Clone()
	copied.Routes[0].Stops[0].Location.Lat = 0
	copied.Routes[0].Stops[0].Key = "changed"
	copied.Unassigned[0].Key = "changed"

	assert.Equal(t, 50.9, original.Routes[0].Stops[0].Location.Lat)
	assert.Equal(t, "p1", original.Routes[0].Stops[0].Key)
	assert.Equal(t, "p2", original.Unassigned[0].Key)
	assert.Equal(t, 2, original.StopCount())
}

func TestContainerRef(t *testing.T) {
	assert.True(t, Pool().IsPool())
	assert.True(t, ContainerRef{}.IsPool())
	assert.False(t, Vehicle("Bus 1").IsPool())
	assert.Equal(t, "vehicle:Bus 1", Vehicle("Bus 1").String())
	assert.Equal(t, "pool", Pool().String())

	assert.True(t, Pool().Valid())
	assert.True(t, Vehicle("Bus 1").Valid())
	assert.False(t, ContainerRef{}.Valid())
	assert.False(t, ContainerRef{VehicleID: "Bus 1", Pool: true}.Valid())
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 50.93753, RoundCoordinate(50.937531))
	assert.Equal(t, -6.95781, RoundCoordinate(-6.957812))
}
