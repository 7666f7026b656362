package events

import (
	"context"
	"time"

	"rezerv/pkg/kafka"
	"rezerv/pkg/logger"
	"rezerv/pkg/model"
)

// Lifecycle event types emitted after successful engine mutations.
const (
	TypeReservationCreated = "reservation.created"
	TypeReservationDeleted = "reservation.deleted"
	TypeConferenceStarted  = "conference.started"
	TypeConferenceDeleted  = "conference.deleted"
)

const source = "rezerv"

// BookingEvent is the payload shared by all lifecycle events.
type BookingEvent struct {
	BookingID string    `json:"booking_id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Active    bool      `json:"active"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Publisher emits booking lifecycle events. Publishing is best-effort:
// callers log failures and never fail the originating request over them.
type Publisher interface {
	Publish(ctx context.Context, eventType string, booking *model.Booking) error
}

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer producer
	log      *logger.Logger
}

func NewKafkaPublisher(p *kafka.Producer, log *logger.Logger) Publisher {
	return &kafkaPublisher{producer: p, log: log}
}

func (k *kafkaPublisher) Publish(ctx context.Context, eventType string, booking *model.Booking) error {
	payload := BookingEvent{
		BookingID: booking.ID,
		Name:      booking.Name,
		OwnerID:   booking.OwnerID,
		StartTime: booking.StartTime,
		EndTime:   booking.EndTime,
		Active:    booking.Active,
		EmittedAt: time.Now().UTC(),
	}

	// Keyed by room name so events for one room stay ordered.
	msg, err := kafka.NewEventMessage(booking.Name, eventType, source, payload)
	if err != nil {
		return err
	}
	return k.producer.Publish(ctx, msg)
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. Used when no
// Kafka brokers are configured.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, *model.Booking) error {
	return nil
}
