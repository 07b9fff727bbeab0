package directions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-editor/internal/directions"
	"route-editor/internal/models"
	"route-editor/internal/testutil"
)

var (
	depot = models.Coordinates{Lat: 50.9, Lng: 6.9}
	stopA = models.Coordinates{Lat: 50.95, Lng: 6.95}
)

func TestCachedClient_HitSkipsProvider(t *testing.T) {
	inner := testutil.NewMockDirections()
	cache := testutil.NewMockRouteCache()
	client := directions.NewCachedClient(inner, cache, nil)

	first, err := client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{stopA})
	require.NoError(t, err)
	second, err := client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{stopA})
	require.NoError(t, err)

	assert.Len(t, inner.Calls(), 1)
	assert.Equal(t, 1, cache.Count())
	assert.Equal(t, first.LegDurations, second.LegDurations)
}

func TestCachedClient_DifferentOrderMisses(t *testing.T) {
	inner := testutil.NewMockDirections()
	client := directions.NewCachedClient(inner, testutil.NewMockRouteCache(), nil)
	other := models.Coordinates{Lat: 50.8, Lng: 7.0}

	_, err := client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{stopA, other})
	require.NoError(t, err)
	_, err = client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{other, stopA})
	require.NoError(t, err)

	assert.Len(t, inner.Calls(), 2)
}

func TestCachedClient_CacheErrorsAreIgnored(t *testing.T) {
	inner := testutil.NewMockDirections()
	cache := testutil.NewMockRouteCache()
	cache.GetErr = errors.New("read down")
	cache.SetErr = errors.New("write down")
	client := directions.NewCachedClient(inner, cache, nil)

	route, err := client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{stopA})
	require.NoError(t, err)
	assert.Len(t, route.LegDurations, 2)
	assert.Equal(t, 0, cache.Count())
}

func TestCachedClient_ProviderErrorNotCached(t *testing.T) {
	inner := testutil.NewMockDirections()
	inner.FailFrom(depot, &directions.ErrRouteFailed{Provider: "mock", Reason: "down"})
	cache := testutil.NewMockRouteCache()
	client := directions.NewCachedClient(inner, cache, nil)

	_, err := client.ComputeRoute(context.Background(), depot, depot, []models.Coordinates{stopA})
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Count())
}
