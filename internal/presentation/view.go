// Package presentation turns the route model into the render-ready view the
// map and route cards are drawn from. The view is rebuilt from scratch on
// every request and carries typed numbers, never formatted text to parse.
package presentation

import (
	"strconv"

	"github.com/samber/lo"

	"route-editor/internal/models"
)

// Palette is the fixed set of route colours, reused cyclically by route index
var Palette = []string{
	"#FF0000", "#0000FF", "#008000", "#FFD700", "#FF00FF", "#00CED1", "#FFA500",
	"#800080", "#8B4513", "#000000", "#C71585", "#6495ED", "#DC143C", "#B8860B",
	"#008B8B", "#696969", "#708090", "#F08080", "#808000", "#00FF00",
}

// Color returns the palette colour for the i-th route
func Color(i int) string {
	return Palette[i%len(Palette)]
}

const (
	StatusWithin = "within"
	StatusOver   = "over"

	MarkerVehicle = "vehicle"
	MarkerStop    = "stop"
)

// Chip is one stop in a card or in the unassigned list
type Chip struct {
	Key         string              `json:"patient"`
	Address     string              `json:"address"`
	Category    models.Category     `json:"visit_type"`
	Routable    bool                `json:"routable"`
	Sequence    int                 `json:"sequence,omitempty"`
	HasLocation bool                `json:"has_location"`
	Container   models.ContainerRef `json:"container"`
	Index       int                 `json:"index"`
}

// RouteCard is the per-vehicle summary card
type RouteCard struct {
	VehicleID      string  `json:"vehicle"`
	Label          string  `json:"function,omitempty"`
	Color          string  `json:"color"`
	DurationHours  float64 `json:"duration_hours"`
	CapacityHours  float64 `json:"capacity_hours"`
	WithinCapacity bool    `json:"within_capacity"`
	Status         string  `json:"status"`
	StopCount      int     `json:"stop_count"`
	Chips          []Chip  `json:"stops"`
}

// Marker is a map marker. Routable stops are labelled with their sequence
// number; non-routable stops are never placed on the map.
type Marker struct {
	Kind      string             `json:"kind"`
	Key       string             `json:"key"`
	Label     string             `json:"label"`
	VehicleID string             `json:"vehicle,omitempty"`
	Color     string             `json:"color"`
	Position  models.Coordinates `json:"position"`
}

// Polyline is a drawn route
type Polyline struct {
	VehicleID string `json:"vehicle"`
	Color     string `json:"color"`
	Geometry  string `json:"geometry"`
}

// DragStatus mirrors the drag controller for the rendering surface
type DragStatus struct {
	State   string               `json:"state"`
	StopKey string               `json:"stop,omitempty"`
	Source  *models.ContainerRef `json:"source,omitempty"`
}

// Summary holds derived totals
type Summary struct {
	Routes              int `json:"routes"`
	Stops               int `json:"stops"`
	Unassigned          int `json:"unassigned"`
	AssignedNonRoutable int `json:"assigned_non_routable"`
	OverCapacity        int `json:"over_capacity"`
}

// View is everything the rendering surface needs
type View struct {
	SessionID string         `json:"session_id"`
	Routes    []RouteCard    `json:"routes"`
	Pool      []Chip         `json:"unassigned"`
	Markers   []Marker       `json:"markers"`
	Polylines []Polyline     `json:"polylines"`
	Summary   Summary        `json:"summary"`
	Drag      DragStatus     `json:"drag"`
	Syncing   bool           `json:"syncing"`
	Notice    *models.Notice `json:"notice,omitempty"`
}

// Input is the state a view is built from
type Input struct {
	SessionID string
	Routes    []models.VehicleRoute
	Pool      []models.Stop
	// Geometries holds the drawable route per vehicle id; vehicles without
	// an entry get no polyline.
	Geometries map[string]string
	Drag       DragStatus
	Syncing    bool
	Notice     *models.Notice
	Counts     Counts
}

// Counts are the model's derived totals
type Counts struct {
	StopsPerVehicle     map[string]int
	TotalStops          int
	AssignedNonRoutable []models.Stop
}

// Build renders the view
func Build(in Input) *View {
	view := &View{
		SessionID: in.SessionID,
		Routes:    make([]RouteCard, 0, len(in.Routes)),
		Pool:      chips(in.Pool, models.Pool()),
		Markers:   []Marker{},
		Polylines: []Polyline{},
		Drag:      in.Drag,
		Syncing:   in.Syncing,
		Notice:    in.Notice,
	}
	if view.Drag.State == "" {
		view.Drag.State = "idle"
	}

	for i, r := range in.Routes {
		color := Color(i)
		card := RouteCard{
			VehicleID:      r.VehicleID,
			Label:          r.Label,
			Color:          color,
			DurationHours:  r.EstimatedDurationHours,
			CapacityHours:  r.CapacityHours,
			WithinCapacity: r.WithinCapacity(),
			Status:         StatusWithin,
			StopCount:      in.Counts.StopsPerVehicle[r.VehicleID],
			Chips:          chips(r.Stops, models.Vehicle(r.VehicleID)),
		}
		if !card.WithinCapacity {
			card.Status = StatusOver
		}
		view.Routes = append(view.Routes, card)

		view.Markers = append(view.Markers, Marker{
			Kind:      MarkerVehicle,
			Key:       r.VehicleID,
			Label:     r.VehicleID,
			VehicleID: r.VehicleID,
			Color:     color,
			Position:  r.Origin,
		})
		for _, s := range r.Stops {
			if !s.Routable() || !s.HasLocation() {
				continue
			}
			view.Markers = append(view.Markers, Marker{
				Kind:      MarkerStop,
				Key:       s.Key,
				Label:     strconv.Itoa(s.Sequence),
				VehicleID: r.VehicleID,
				Color:     color,
				Position:  *s.Location,
			})
		}

		if geometry, ok := in.Geometries[r.VehicleID]; ok && geometry != "" {
			view.Polylines = append(view.Polylines, Polyline{VehicleID: r.VehicleID, Color: color, Geometry: geometry})
		}
	}

	view.Summary = summarize(in)
	return view
}

func chips(stops []models.Stop, container models.ContainerRef) []Chip {
	return lo.Map(stops, func(s models.Stop, i int) Chip {
		return Chip{
			Key:         s.Key,
			Address:     s.Address,
			Category:    s.Category,
			Routable:    s.Routable(),
			Sequence:    s.Sequence,
			HasLocation: s.HasLocation(),
			Container:   container,
			Index:       i,
		}
	})
}

func summarize(in Input) Summary {
	over := lo.CountBy(in.Routes, func(r models.VehicleRoute) bool {
		return !r.WithinCapacity()
	})
	return Summary{
		Routes:              len(in.Routes),
		Stops:               in.Counts.TotalStops,
		Unassigned:          len(in.Pool),
		AssignedNonRoutable: len(in.Counts.AssignedNonRoutable),
		OverCapacity:        over,
	}
}
