package editing

import (
	"errors"
	"fmt"

	"route-editor/internal/models"
	"route-editor/internal/policy"
)

// DragState is the state of the drag interaction
type DragState int

const (
	DragIdle DragState = iota
	DragDragging
	DragDropped
)

func (s DragState) String() string {
	switch s {
	case DragIdle:
		return "idle"
	case DragDragging:
		return "dragging"
	case DragDropped:
		return "dropped"
	default:
		return fmt.Sprintf("DragState(%d)", int(s))
	}
}

var (
	// ErrNotDragging is returned for hover/release without an active gesture
	ErrNotDragging = errors.New("no drag in progress")
	// ErrAlreadyDragging is returned when a gesture starts while another is active
	ErrAlreadyDragging = errors.New("drag already in progress")
	// ErrDropOutside is returned when a gesture is released outside any container
	ErrDropOutside = errors.New("dropped outside any container")
)

// Marker is the transient insertion marker shown while hovering
type Marker struct {
	Container models.ContainerRef `json:"container"`
	Index     int                 `json:"index"`
}

// DragController is the pointer-drag state machine. It is not safe for
// concurrent use; the owning session serializes access.
type DragController struct {
	model    *Model
	state    DragState
	stopKey  string
	source   models.ContainerRef
	routable bool
	marker   *Marker
}

// NewDragController creates an idle controller over model
func NewDragController(model *Model) *DragController {
	return &DragController{model: model}
}

// State returns the current state
func (d *DragController) State() DragState { return d.state }

// Dragged returns the key and source container of the stop being dragged
func (d *DragController) Dragged() (string, models.ContainerRef, bool) {
	if d.state != DragDragging {
		return "", models.ContainerRef{}, false
	}
	return d.stopKey, d.source, true
}

// Marker returns the last insertion marker, nil when suppressed
func (d *DragController) Marker() *Marker { return d.marker }

// Rebind points the controller at a replacement model and abandons any
// gesture in progress, since the dragged stop may no longer exist.
func (d *DragController) Rebind(model *Model) {
	d.model = model
	d.reset()
}

// Begin starts a gesture on stopKey
func (d *DragController) Begin(stopKey string) error {
	if d.state == DragDragging {
		return ErrAlreadyDragging
	}
	ref, _, ok := d.model.Locate(stopKey)
	if !ok {
		return fmt.Errorf("begin drag %s: %w", stopKey, ErrStopNotFound)
	}
	stop, _ := d.model.Stop(stopKey)

	d.state = DragDragging
	d.stopKey = stopKey
	d.source = ref
	d.routable = stop.Routable()
	d.marker = nil
	return nil
}

// Hover recomputes the legal drop index over target. It returns false and
// clears the marker when target rejects the dragged category.
func (d *DragController) Hover(target models.ContainerRef, cursorY float64, boxes []policy.ItemBox) (*Marker, bool, error) {
	if d.state != DragDragging {
		return nil, false, ErrNotDragging
	}
	idx, err := d.resolve(target, cursorY, boxes)
	if err != nil {
		d.marker = nil
		var placementErr *policy.ErrInvalidPlacement
		if errors.As(err, &placementErr) {
			return nil, false, nil
		}
		return nil, false, err
	}
	d.marker = &Marker{Container: target, Index: idx}
	return d.marker, true, nil
}

// Release ends the gesture. Over a legal target the stop is moved and the
// sequence numbers are recomputed, leaving the controller in DragDropped. A
// nil target means the pointer was released outside any container. Illegal
// or outside releases return the controller to DragIdle without mutation.
func (d *DragController) Release(target *models.ContainerRef, cursorY float64, boxes []policy.ItemBox) (*Move, error) {
	if d.state != DragDragging {
		return nil, ErrNotDragging
	}
	if target == nil {
		d.reset()
		return nil, ErrDropOutside
	}

	idx, err := d.resolve(*target, cursorY, boxes)
	if err != nil {
		d.reset()
		return nil, err
	}

	move, err := d.model.MoveStop(d.stopKey, *target, idx)
	if err != nil {
		d.reset()
		return nil, err
	}
	d.model.RecomputeSequenceNumbers()

	d.state = DragDropped
	d.marker = nil
	return move, nil
}

// Cancel abandons the gesture
func (d *DragController) Cancel() {
	d.reset()
}

// Settle returns a dropped controller to idle once the drop has been handed off
func (d *DragController) Settle() {
	if d.state == DragDropped {
		d.reset()
	}
}

func (d *DragController) resolve(target models.ContainerRef, cursorY float64, boxes []policy.ItemBox) (int, error) {
	if !policy.Accepts(target, d.routable) {
		return 0, &policy.ErrInvalidPlacement{
			StopKey: d.stopKey,
			Target:  target,
			Reason:  "container rejects routable stops",
		}
	}
	if !target.IsPool() {
		if _, ok := d.model.Route(target.VehicleID); !ok {
			return 0, fmt.Errorf("hover %s: %w", target, ErrContainerNotFound)
		}
	}

	stop, _ := d.model.Stop(d.stopKey)
	items := d.itemsWithout(target)
	return policy.PlacementIndex(&stop, items, policy.ResolveDropIndex(cursorY, boxes, d.stopKey)), nil
}

func (d *DragController) itemsWithout(target models.ContainerRef) []models.Stop {
	var stops []models.Stop
	if target.IsPool() {
		stops = d.model.Pool()
	} else {
		r, _ := d.model.Route(target.VehicleID)
		stops = r.Stops
	}
	items := stops[:0]
	for _, s := range stops {
		if s.Key != d.stopKey {
			items = append(items, s)
		}
	}
	return items
}

func (d *DragController) reset() {
	d.state = DragIdle
	d.stopKey = ""
	d.source = models.ContainerRef{}
	d.routable = false
	d.marker = nil
}
