package geocoding

import (
	"context"

	"go.uber.org/zap"

	"route-editor/internal/logging"
	"route-editor/internal/models"
)

// Backfill geocodes every stop in the snapshot that has an address but no
// location. Stops that cannot be geocoded keep an empty location. Identical
// addresses are looked up once. Returns the number of stops filled in.
func Backfill(ctx context.Context, g Geocoder, snap *models.Snapshot, logger *zap.Logger) int {
	logger = logging.OrNop(logger)
	resolved := make(map[string]*models.Coordinates)
	filled := 0

	fill := func(stops []models.Stop) {
		for i := range stops {
			s := &stops[i]
			if s.HasLocation() || s.Address == "" || ctx.Err() != nil {
				continue
			}
			coords, seen := resolved[s.Address]
			if !seen {
				result, err := g.GeocodeWithRetry(ctx, s.Address, 2)
				if err != nil {
					logger.Warn("Could not geocode stop", zap.String("stop", s.Key), zap.Error(err))
				} else {
					coords = &result.Coords
				}
				resolved[s.Address] = coords
			}
			if coords != nil {
				loc := *coords
				s.Location = &loc
				filled++
			}
		}
	}

	for i := range snap.Routes {
		fill(snap.Routes[i].Stops)
	}
	fill(snap.Unassigned)

	if filled > 0 {
		logger.Info("Backfilled stop locations", zap.Int("stops", filled))
	}
	return filled
}
