package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, slot_minutes, consultation_fee_cents, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)

	var d Doctor
	var specialty *string
	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.SlotMinutes,
		&d.ConsultationFeeCents,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func (r *PgRepository) GetWeeklyTemplate(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_min, end_min
		FROM weekly_templates
		WHERE doctor_id = $1
		ORDER BY weekday, start_min
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tmpl := make(WeeklyTemplate)
	for rows.Next() {
		var weekday int
		var tr TimeRange
		if err := rows.Scan(&weekday, &tr.Start, &tr.End); err != nil {
			return nil, err
		}
		wd := time.Weekday(weekday)
		tmpl[wd] = append(tmpl[wd], tr)
	}

	return tmpl, rows.Err()
}

// ReplaceWeeklyTemplate swaps the doctor's whole recurring template in one
// transaction. Ranges are stored merged, so overlapping input collapses to
// its canonical form rather than being rejected.
func (r *PgRepository) ReplaceWeeklyTemplate(ctx context.Context, doctorID uuid.UUID, tmpl WeeklyTemplate) error {
	for wd, ranges := range tmpl {
		for _, tr := range ranges {
			if !tr.Valid() {
				return fmt.Errorf("weekday %d: invalid range %s-%s", wd, FormatMinute(tr.Start), FormatMinute(tr.End))
			}
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_templates WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("clear template: %w", err)
	}

	for wd, ranges := range tmpl {
		for _, tr := range MergeRanges(ranges) {
			_, err := tx.Exec(ctx, `
				INSERT INTO weekly_templates (doctor_id, weekday, start_min, end_min)
				VALUES ($1, $2, $3, $4)
			`, doctorID, int(wd), tr.Start, tr.End)
			if err != nil {
				return fmt.Errorf("insert template row: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) GetException(ctx context.Context, doctorID uuid.UUID, date time.Time) (*ScheduleException, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT doctor_id, date, day_off, added, removed
		FROM schedule_exceptions
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, date)

	var exc ScheduleException
	err := row.Scan(&exc.DoctorID, &exc.Date, &exc.DayOff, &exc.Added, &exc.Removed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &exc, nil
}

func (r *PgRepository) UpsertException(ctx context.Context, exc ScheduleException) error {
	for _, tr := range append(append([]TimeRange(nil), exc.Added...), exc.Removed...) {
		if !tr.Valid() {
			return fmt.Errorf("invalid range %s-%s", FormatMinute(tr.Start), FormatMinute(tr.End))
		}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_exceptions (doctor_id, date, day_off, added, removed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (doctor_id, date)
		DO UPDATE SET day_off = EXCLUDED.day_off, added = EXCLUDED.added, removed = EXCLUDED.removed
	`, exc.DoctorID, exc.Date, exc.DayOff, exc.Added, exc.Removed)
	if err != nil {
		return fmt.Errorf("upsert exception: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteException(ctx context.Context, doctorID uuid.UUID, date time.Time) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_exceptions WHERE doctor_id = $1 AND date = $2
	`, doctorID, date)
	return err
}

func (r *PgRepository) GetHoliday(ctx context.Context, date time.Time) (*Holiday, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT date, name, mandatory
		FROM holidays
		WHERE date = $1
	`, date)

	var h Holiday
	err := row.Scan(&h.Date, &h.Name, &h.Mandatory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &h, nil
}

func (r *PgRepository) UpsertHoliday(ctx context.Context, h Holiday) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO holidays (date, name, mandatory)
		VALUES ($1, $2, $3)
		ON CONFLICT (date)
		DO UPDATE SET name = EXCLUDED.name, mandatory = EXCLUDED.mandatory
	`, h.Date, h.Name, h.Mandatory)
	if err != nil {
		return fmt.Errorf("upsert holiday: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteHoliday(ctx context.Context, date time.Time) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM holidays WHERE date = $1`, date)
	return err
}
