package model

import "time"

// AllocateRequest asks the engine to start a conference for a room name,
// either by promoting a matching reservation or by creating a walk-in
// conference. StartTime defaults to now; DurationSeconds only applies to
// the walk-in path and defaults from configuration.
type AllocateRequest struct {
	OwnerID         string    `json:"-" validate:"required,min=1,max=100"`
	Name            string    `json:"name" validate:"required,room_name,min=1,max=200"`
	MailOwner       string    `json:"mail_owner" validate:"required,email"`
	StartTime       time.Time `json:"-"`
	DurationSeconds int64     `json:"duration,omitempty" validate:"omitempty,gt=0"`
	Timezone        string    `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Pin             string    `json:"pin,omitempty" validate:"omitempty,alphanum,max=32"`
}

// CreateReservationRequest carries a future claim on a room name. Duration
// is in seconds at this boundary; the minutes-to-seconds conversion happens
// in the transport layer.
type CreateReservationRequest struct {
	OwnerID         string    `json:"-" validate:"required,min=1,max=100"`
	Name            string    `json:"name" validate:"required,room_name,min=1,max=200"`
	MailOwner       string    `json:"mail_owner" validate:"required,email"`
	StartTime       time.Time `json:"-" validate:"required"`
	DurationSeconds int64     `json:"-" validate:"required,gt=0"`
	Timezone        string    `json:"timezone" validate:"required,timezone"`
	Pin             string    `json:"pin,omitempty" validate:"omitempty,alphanum,max=32"`
}

// NewReservation builds a reservation booking from a validated request.
func NewReservation(req *CreateReservationRequest) *Booking {
	return &Booking{
		OwnerID:   req.OwnerID,
		MailOwner: req.MailOwner,
		Name:      req.Name,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.StartTime.UTC().Add(time.Duration(req.DurationSeconds) * time.Second),
		Timezone:  req.Timezone,
		Pin:       req.Pin,
		Active:    false,
	}
}

// NewConference builds a walk-in conference booking from a validated
// allocation request. The booking starts life already active.
func NewConference(req *AllocateRequest, defaultDuration time.Duration) *Booking {
	start := req.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	duration := defaultDuration
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}
	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return &Booking{
		OwnerID:   req.OwnerID,
		MailOwner: req.MailOwner,
		Name:      req.Name,
		StartTime: start.UTC(),
		EndTime:   start.UTC().Add(duration),
		Timezone:  tz,
		Pin:       req.Pin,
		Active:    true,
	}
}
