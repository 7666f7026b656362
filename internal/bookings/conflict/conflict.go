// Package conflict holds the pure predicates that decide whether a booking
// request collides with the stored state of a room name. Both checks work on
// a snapshot of stored bookings and never touch storage themselves; callers
// are responsible for serializing check-then-act sequences per room name.
package conflict

import (
	"fmt"
	"strings"
	"time"

	"rezerv/pkg/model"
)

// ConferenceExistsError means a live conference already occupies the room
// name. EndsAt carries the formatted end of its window so a reservation
// caller knows when the room frees up.
type ConferenceExistsError struct {
	ID     string
	EndsAt string
}

func (e *ConferenceExistsError) Error() string {
	if e.EndsAt != "" {
		return fmt.Sprintf("a conference with this name currently exists; the room frees up at %s", e.EndsAt)
	}
	return fmt.Sprintf("conference %s already exists", e.ID)
}

// NotAllowedError means the promotion authorization check refused to start
// the conference: wrong mail owner, or outside the permitted start window.
type NotAllowedError struct {
	Reason string
}

func (e *NotAllowedError) Error() string {
	return e.Reason
}

// OverlapError carries the stored reservations whose windows intersect the
// candidate's.
type OverlapError struct {
	Conflicts []*model.Booking
}

func (e *OverlapError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, b := range e.Conflicts {
		ids = append(ids, b.ID)
	}
	return fmt.Sprintf("time window overlaps %d existing reservation(s): %s",
		len(e.Conflicts), strings.Join(ids, ", "))
}

// ConflictIDs lists the ids of the offending reservations.
func (e *OverlapError) ConflictIDs() []string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, b := range e.Conflicts {
		ids = append(ids, b.ID)
	}
	return ids
}

// CheckReservationOverlap tests the candidate's window against stored
// reservations of the same room name using closed intervals: a reservation
// ending exactly when the candidate starts still conflicts. Inactive
// bookings only; the candidate itself is skipped by id.
func CheckReservationOverlap(candidate *model.Booking, stored []*model.Booking) error {
	var conflicts []*model.Booking
	for _, b := range stored {
		if b.Active || b.Name != candidate.Name {
			continue
		}
		if candidate.ID != "" && b.ID == candidate.ID {
			continue
		}
		if candidate.Overlaps(b) {
			conflicts = append(conflicts, b)
		}
	}
	if len(conflicts) > 0 {
		return &OverlapError{Conflicts: conflicts}
	}
	return nil
}

// CheckActiveConference tests whether start falls inside the window of a
// live conference under the given room name, endpoints included. Active
// bookings only.
func CheckActiveConference(name string, start time.Time, stored []*model.Booking) error {
	for _, b := range stored {
		if !b.Active || b.Name != name {
			continue
		}
		if b.Window(start) {
			return &ConferenceExistsError{ID: b.ID, EndsAt: b.EndTimeFormatted()}
		}
	}
	return nil
}
