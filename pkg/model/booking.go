package model

import (
	"time"
)

// Booking is the single record backing both reservations and live
// conferences. Active=false is a reservation (a future claim on a room
// name), Active=true is a conference that is currently running. Promotion
// from reservation to conference flips Active in place and is one-way.
type Booking struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" validate:"required,min=1,max=100"`
	MailOwner string    `json:"mail_owner" bson:"mail_owner" validate:"required,email"`
	Name      string    `json:"name" bson:"name" validate:"required,room_name,min=1,max=200"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Timezone  string    `json:"timezone" bson:"timezone" validate:"required,timezone"`
	Pin       string    `json:"pin,omitempty" bson:"pin,omitempty" validate:"omitempty,alphanum,max=32"`
	Active    bool      `json:"active" bson:"active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// RoomView is the caller-facing rendering of a booking, returned by the
// allocation endpoint and by conference/reservation lookups.
type RoomView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id"`
	MailOwner string `json:"mail_owner"`
	StartTime string `json:"start_time"`
	Duration  int64  `json:"duration"`
	Timezone  string `json:"timezone"`
	Pin       string `json:"pin,omitempty"`
}

// Duration returns the booked window length.
func (b *Booking) Duration() time.Duration {
	return b.EndTime.Sub(b.StartTime)
}

// Window reports whether t falls inside the booked window, endpoints
// included.
func (b *Booking) Window(t time.Time) bool {
	return !t.Before(b.StartTime) && !t.After(b.EndTime)
}

// Overlaps reports closed-interval overlap with another booking's window.
// Touching endpoints count as overlapping.
func (b *Booking) Overlaps(other *Booking) bool {
	return !b.StartTime.After(other.EndTime) && !b.EndTime.Before(other.StartTime)
}

// EndTimeFormatted renders the end of the window in the booking's own
// timezone. Used in conflict messages so the caller knows how long to wait.
func (b *Booking) EndTimeFormatted() string {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return b.EndTime.UTC().Format("02 Jan 2006 15:04 MST")
	}
	return b.EndTime.In(loc).Format("02 Jan 2006 15:04 MST")
}

// View serializes the booking for API responses. Start time is rendered in
// the booking's timezone when it loads, UTC otherwise.
func (b *Booking) View() *RoomView {
	start := b.StartTime.UTC()
	if loc, err := time.LoadLocation(b.Timezone); err == nil {
		start = b.StartTime.In(loc)
	}
	return &RoomView{
		ID:        b.ID,
		Name:      b.Name,
		OwnerID:   b.OwnerID,
		MailOwner: b.MailOwner,
		StartTime: start.Format(time.RFC3339),
		Duration:  int64(b.Duration().Seconds()),
		Timezone:  b.Timezone,
		Pin:       b.Pin,
	}
}
