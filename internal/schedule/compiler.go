package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Compiler derives the bookable slots for a (doctor, date) pair from the
// weekly template, date exceptions and the holiday register. It is the
// single source of truth for what can be reserved; the booking side
// re-checks its output against the ledger, never against a cached view.
type Compiler struct {
	repo               Repository
	defaultSlotMinutes int
	now                func() time.Time
}

func NewCompiler(repo Repository, defaultSlotMinutes int) *Compiler {
	return &Compiler{
		repo:               repo,
		defaultSlotMinutes: defaultSlotMinutes,
		now:                time.Now,
	}
}

// WithClock overrides the clock used for the same-day cutoff. Tests only.
func (c *Compiler) WithClock(now func() time.Time) *Compiler {
	c.now = now
	return c
}

// CompileDay returns the ordered candidate slots for the doctor on the
// given date. Precedence: clinic holiday blocks the day; else a day-off
// exception blocks it; else (template ∪ exception.Added) \ exception.Removed,
// merged and sliced into fixed-length slots. Slots already begun today are
// dropped. An empty day is a normal result, not an error.
func (c *Compiler) CompileDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeRange, error) {
	doctor, err := c.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	holiday, err := c.repo.GetHoliday(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load holiday: %w", err)
	}
	if holiday != nil {
		return nil, nil
	}

	exc, err := c.repo.GetException(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load exception: %w", err)
	}
	if exc != nil && exc.DayOff {
		return nil, nil
	}

	tmpl, err := c.repo.GetWeeklyTemplate(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load weekly template: %w", err)
	}

	ranges := append([]TimeRange(nil), tmpl[date.Weekday()]...)
	if exc != nil {
		ranges = append(ranges, exc.Added...)
	}
	merged := MergeRanges(ranges)
	if exc != nil {
		merged = SubtractRanges(merged, exc.Removed)
	}

	slotMinutes := doctor.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = c.defaultSlotMinutes
	}

	slots := SliceSlots(merged, slotMinutes)

	if now := c.now(); sameDate(now, date) {
		cutoff := now.Hour()*60 + now.Minute()
		kept := slots[:0]
		for _, s := range slots {
			if s.Start > cutoff {
				kept = append(kept, s)
			}
		}
		slots = kept
	}

	return slots, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
