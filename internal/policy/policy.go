// Package policy holds the category rules deciding which stops may be placed
// in which container and at which position.
package policy

import (
	"fmt"

	"route-editor/internal/models"
)

// ErrInvalidPlacement is returned when a move violates the category rules
type ErrInvalidPlacement struct {
	StopKey string
	Target  models.ContainerRef
	Reason  string
}

func (e *ErrInvalidPlacement) Error() string {
	return fmt.Sprintf("invalid placement of %s into %s: %s", e.StopKey, e.Target, e.Reason)
}

// ItemBox is the rendered vertical extent of one item in a container list
type ItemBox struct {
	Key    string  `json:"key"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Midpoint returns the vertical center of the item
func (b ItemBox) Midpoint() float64 {
	return b.Top + b.Height/2
}

// CheckPlacement decides whether stop may be dropped into target at all.
// Non-routable stops go anywhere; routable stops only into vehicle routes.
func CheckPlacement(stop *models.Stop, target models.ContainerRef) error {
	if stop.Routable() && target.IsPool() {
		return &ErrInvalidPlacement{
			StopKey: stop.Key,
			Target:  target,
			Reason:  fmt.Sprintf("category %s must stay on a vehicle route", stop.Category),
		}
	}
	return nil
}

// Accepts is the boolean form of CheckPlacement, used while hovering
func Accepts(target models.ContainerRef, routable bool) bool {
	return !(routable && target.IsPool())
}

// PlacementIndex clamps a requested index into the legal range for stop within
// items (the target list without the stop itself). Non-routable stops always go
// to the tail; routable stops go somewhere in [0, routableCount]. A negative
// request means the end of the legal range.
func PlacementIndex(stop *models.Stop, items []models.Stop, requested int) int {
	if !stop.Routable() {
		return len(items)
	}

	routable := 0
	for i := range items {
		if items[i].Routable() {
			routable++
		}
	}

	if requested < 0 || requested > routable {
		return routable
	}
	return requested
}

// ResolveDropIndex maps a cursor position to an insertion index. boxes are the
// rendered items of the target container in list order; the dragged item, if
// present, is skipped. The first item whose midpoint lies below the cursor wins.
// If none does, the index is -1 (end of the legal range, see PlacementIndex).
func ResolveDropIndex(cursorY float64, boxes []ItemBox, draggedKey string) int {
	idx := 0
	for _, b := range boxes {
		if b.Key == draggedKey {
			continue
		}
		if b.Midpoint() > cursorY {
			return idx
		}
		idx++
	}
	return -1
}
