package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Repository contains all DB interactions for doctors' calendars. Absent
// exceptions and holidays are reported as (nil, nil), not as errors; they
// are the common case.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error)
	ReplaceWeeklyTemplate(ctx context.Context, doctorID uuid.UUID, tmpl WeeklyTemplate) error

	GetException(ctx context.Context, doctorID uuid.UUID, date time.Time) (*ScheduleException, error)
	UpsertException(ctx context.Context, exc ScheduleException) error
	DeleteException(ctx context.Context, doctorID uuid.UUID, date time.Time) error

	GetHoliday(ctx context.Context, date time.Time) (*Holiday, error)
	UpsertHoliday(ctx context.Context, h Holiday) error
	DeleteHoliday(ctx context.Context, date time.Time) error
}
