package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"route-editor/internal/geocoding"
)

// HandleAddressSearch handles GET /api/v1/address-search
func (h *Handler) HandleAddressSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("address")
	log := h.logger().With(zap.String("query", query))

	if len(query) < 4 || h.Geocoder == nil {
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	results, err := h.Geocoder.Search(r.Context(), query, 5)
	if err != nil {
		log.Warn("Failed to search addresses", zap.Error(err))
		h.writeJSON(w, http.StatusOK, []geocoding.GeocodingResult{})
		return
	}

	if results == nil {
		results = []geocoding.GeocodingResult{}
	}
	log.Debug("Address search", zap.Int("results_count", len(results)))
	h.writeJSON(w, http.StatusOK, results)
}
