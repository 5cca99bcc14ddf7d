package schedule

import (
	"time"

	"github.com/google/uuid"
)

// TimeRange is a half-open interval of minutes from midnight, [Start, End).
type TimeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r TimeRange) Valid() bool {
	return r.Start >= 0 && r.Start < r.End && r.End <= minutesPerDay
}

type Doctor struct {
	ID                   uuid.UUID
	Name                 string
	Specialty            *string
	SlotMinutes          int // 0 means the clinic default applies
	ConsultationFeeCents int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// WeeklyTemplate is a doctor's recurring availability, one entry per weekday.
// Weekdays without an entry have no default availability.
type WeeklyTemplate map[time.Weekday][]TimeRange

// ScheduleException overrides the weekly template for one doctor on one date.
// DayOff empties the day regardless of Added/Removed.
type ScheduleException struct {
	DoctorID uuid.UUID
	Date     time.Time
	DayOff   bool
	Added    []TimeRange
	Removed  []TimeRange
}

// Holiday is a clinic-wide non-working date. It blocks every doctor's
// template for that date and cannot be re-opened by a per-doctor exception.
type Holiday struct {
	Date      time.Time
	Name      string
	Mandatory bool
}
