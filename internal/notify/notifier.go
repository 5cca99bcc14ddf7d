package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventFollowupScheduled    = "FOLLOWUP_SCHEDULED"

	// Channel carries every booking event; downstream delivery (push,
	// in-app) subscribes here and is at-least-once on its own terms.
	Channel = "clinic:notifications"
)

type Event struct {
	Type          string    `json:"type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Dispatcher hands booking events to the notification pipeline. It must
// never participate in a booking transaction; callers invoke it after
// commit, off the request path.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

type redisDispatcher struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisDispatcher(client *redis.Client, logger zerolog.Logger) Dispatcher {
	return &redisDispatcher{client: client, logger: logger}
}

func (d *redisDispatcher) Dispatch(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := d.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}

	d.logger.Debug().
		Str("event", ev.Type).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("notification dispatched")

	return nil
}

// Nop discards every event. Used when redis is not configured and in tests.
type Nop struct{}

func (Nop) Dispatch(context.Context, Event) error { return nil }
