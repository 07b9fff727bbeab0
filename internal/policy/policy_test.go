package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"route-editor/internal/models"
)

func hb(key string) models.Stop { return models.Stop{Key: key, Category: models.CategoryHomeVisit} }
func tk(key string) models.Stop { return models.Stop{Key: key, Category: models.CategoryPhone} }

func TestCheckPlacement(t *testing.T) {
	routable := hb("s1")
	phone := tk("t1")

	assert.NoError(t, CheckPlacement(&routable, models.Vehicle("A")))
	assert.NoError(t, CheckPlacement(&phone, models.Vehicle("A")))
	assert.NoError(t, CheckPlacement(&phone, models.Pool()))

	err := CheckPlacement(&routable, models.Pool())
	require.Error(t, err)

	var placementErr *ErrInvalidPlacement
	require.True(t, errors.As(err, &placementErr))
	assert.Equal(t, "s1", placementErr.StopKey)
	assert.True(t, placementErr.Target.IsPool())
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts(models.Vehicle("A"), true))
	assert.True(t, Accepts(models.Vehicle("A"), false))
	assert.True(t, Accepts(models.Pool(), false))
	assert.False(t, Accepts(models.Pool(), true))
}

func TestPlacementIndex(t *testing.T) {
	items := []models.Stop{hb("s1"), hb("s2"), tk("t1"), tk("t2")}
	routable := hb("x")
	phone := tk("y")

	tests := []struct {
		name      string
		stop      *models.Stop
		requested int
		want      int
	}{
		{"routable at head", &routable, 0, 0},
		{"routable in middle", &routable, 1, 1},
		{"routable at end of routable block", &routable, 2, 2},
		{"routable after non-routable is clamped", &routable, 3, 2},
		{"routable negative means end of block", &routable, -1, 2},
		{"non-routable at head goes to tail", &phone, 0, 4},
		{"non-routable between routable goes to tail", &phone, 1, 4},
		{"non-routable negative goes to tail", &phone, -1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlacementIndex(tt.stop, items, tt.requested))
		})
	}
}

func TestPlacementIndex_EmptyContainer(t *testing.T) {
	routable := hb("x")
	phone := tk("y")

	assert.Equal(t, 0, PlacementIndex(&routable, nil, 5))
	assert.Equal(t, 0, PlacementIndex(&phone, nil, 0))
}

func TestResolveDropIndex(t *testing.T) {
	// Items 40px tall stacked from y=0: midpoints 20, 60, 100.
	boxes := []ItemBox{
		{Key: "s1", Top: 0, Height: 40},
		{Key: "s2", Top: 40, Height: 40},
		{Key: "s3", Top: 80, Height: 40},
	}

	assert.Equal(t, 0, ResolveDropIndex(5, boxes, ""))
	assert.Equal(t, 1, ResolveDropIndex(30, boxes, ""))
	assert.Equal(t, 2, ResolveDropIndex(61, boxes, ""))
	assert.Equal(t, -1, ResolveDropIndex(200, boxes, ""))
}

func TestResolveDropIndex_SkipsDraggedItem(t *testing.T) {
	boxes := []ItemBox{
		{Key: "s1", Top: 0, Height: 40},
		{Key: "s2", Top: 40, Height: 40},
		{Key: "s3", Top: 80, Height: 40},
	}

	// s2 is being dragged; the cursor sits just above s3's midpoint, so the
	// insertion point is before s3, which is index 1 once s2 is removed.
	assert.Equal(t, 1, ResolveDropIndex(90, boxes, "s2"))
	// Over s2's own midpoint nothing changes relative to the remaining items.
	assert.Equal(t, 1, ResolveDropIndex(61, boxes, "s2"))
}

func TestResolveDropIndex_ThenClamp(t *testing.T) {
	items := []models.Stop{hb("s1"), tk("t1")}
	boxes := []ItemBox{
		{Key: "s1", Top: 0, Height: 40},
		{Key: "t1", Top: 40, Height: 40},
	}
	routable := hb("x")

	// Cursor below every midpoint: end of routable block, i.e. before t1.
	idx := ResolveDropIndex(500, boxes, "x")
	assert.Equal(t, 1, PlacementIndex(&routable, items, idx))

	// Cursor above t1 but below s1 midpoint resolves to 1 as well.
	idx = ResolveDropIndex(30, boxes, "x")
	assert.Equal(t, 1, PlacementIndex(&routable, items, idx))
}
