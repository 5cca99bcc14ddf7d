package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool the repository needs. Kept as an
// interface so pgxmock can stand in during tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db        DB
	txTimeout time.Duration
}

func NewPgRepository(db DB, txTimeout time.Duration) *PgRepository {
	return &PgRepository{db: db, txTimeout: txTimeout}
}

const appointmentColumns = `id, patient_id, doctor_id, timeslot_id, date, start_min, status, reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.TimeslotID,
		&a.Date,
		&a.StartMin,
		&a.Status,
		&a.Reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	var p Patient
	var email *string
	err := row.Scan(&p.ID, &p.Name, &email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	p.Email = email
	return &p, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_min DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) TakenStarts(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[int]bool, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_min
		FROM timeslots
		WHERE doctor_id = $1 AND date = $2 AND status IN ('held', 'booked')
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := make(map[int]bool)
	for rows.Next() {
		var start int
		if err := rows.Scan(&start); err != nil {
			return nil, err
		}
		taken[start] = true
	}
	return taken, rows.Err()
}

func (r *PgRepository) Reserve(ctx context.Context, p ReserveParams) (*Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapTxErr(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := reserveInTx(ctx, tx, p)
	if err != nil {
		return nil, mapTxErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapTxErr(fmt.Errorf("commit: %w", err))
	}
	return appt, nil
}

// reserveInTx runs the two-phase ledger flip inside an open transaction.
// The conditional free→held update is the single serializable decision
// point: under concurrency exactly one caller matches a row, every other
// caller sees no match and fails with ErrSlotNotAvailable immediately.
func reserveInTx(ctx context.Context, tx pgx.Tx, p ReserveParams) (*Appointment, error) {
	// Lazy materialization: the row may never have been persisted.
	_, err := tx.Exec(ctx, `
		INSERT INTO timeslots (id, doctor_id, date, start_min, end_min, status)
		VALUES ($1, $2, $3, $4, $5, 'free')
		ON CONFLICT (doctor_id, date, start_min) DO NOTHING
	`, uuid.New(), p.DoctorID, p.Date, p.Slot.Start, p.Slot.End)
	if err != nil {
		return nil, fmt.Errorf("materialize timeslot: %w", err)
	}

	var slotID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE timeslots
		SET status = 'held', updated_at = now()
		WHERE doctor_id = $1 AND date = $2 AND start_min = $3 AND status = 'free'
		RETURNING id
	`, p.DoctorID, p.Date, p.Slot.Start).Scan(&slotID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotAvailable
		}
		return nil, fmt.Errorf("hold timeslot: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, timeslot_id, date, start_min, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, 'confirmed', $7)
		RETURNING `+appointmentColumns+`
	`, uuid.New(), p.PatientID, p.DoctorID, slotID, p.Date, p.Slot.Start, p.Reason)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE timeslots
		SET status = 'booked', appointment_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'held'
	`, slotID, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("book timeslot: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("book timeslot: held row vanished")
	}

	return appt, nil
}

func (r *PgRepository) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapTxErr(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns+`
	`, appointmentID)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The conditional update missed: either the row is gone or
			// it reached a terminal state first. Re-read so the caller
			// can tell a lost cancel race from a completed visit.
			var status AppointmentStatus
			readErr := tx.QueryRow(ctx, `
				SELECT status FROM appointments WHERE id = $1
			`, appointmentID).Scan(&status)
			switch {
			case errors.Is(readErr, pgx.ErrNoRows):
				return nil, ErrAppointmentNotFound
			case readErr != nil:
				return nil, mapTxErr(readErr)
			case status == StatusCompleted:
				return nil, ErrAppointmentCompleted
			default:
				return nil, ErrAppointmentCancelled
			}
		}
		return nil, mapTxErr(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE timeslots
		SET status = 'free', appointment_id = NULL, updated_at = now()
		WHERE id = $1 AND appointment_id = $2
	`, appt.TimeslotID, appt.ID)
	if err != nil {
		return nil, mapTxErr(fmt.Errorf("release timeslot: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapTxErr(fmt.Errorf("commit: %w", err))
	}
	return appt, nil
}

func (r *PgRepository) CloseVisit(ctx context.Context, p CloseVisitParams) (*Visit, *Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, mapTxErr(fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, p.AppointmentID))
	if err != nil {
		return nil, nil, mapTxErr(err)
	}
	if appt.Status == StatusCancelled {
		return nil, nil, ErrAppointmentCancelled
	}

	var feeCents int
	err = tx.QueryRow(ctx, `
		SELECT consultation_fee_cents FROM doctors WHERE id = $1
	`, appt.DoctorID).Scan(&feeCents)
	if err != nil {
		return nil, nil, mapTxErr(fmt.Errorf("snapshot fee: %w", err))
	}

	visit := &Visit{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Symptoms:      p.Clinical.Symptoms,
		Diagnosis:     p.Clinical.Diagnosis,
		Notes:         p.Clinical.Notes,
		Advice:        p.Clinical.Advice,
		FeeCents:      feeCents,
		NextVisitDate: p.NextVisitDate,
		Prescriptions: p.Clinical.Prescriptions,
		BillItems:     p.Clinical.BillItems,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO visits (id, appointment_id, patient_id, doctor_id, symptoms, diagnosis, notes, advice, fee_cents, next_visit_date, prescriptions, bill_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING created_at
	`, visit.ID, visit.AppointmentID, visit.PatientID, visit.DoctorID,
		visit.Symptoms, visit.Diagnosis, visit.Notes, visit.Advice,
		visit.FeeCents, visit.NextVisitDate, visit.Prescriptions, visit.BillItems,
	).Scan(&visit.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrVisitExists
		}
		return nil, nil, mapTxErr(fmt.Errorf("record visit: %w", err))
	}

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`, appt.ID)
	if err != nil {
		return nil, nil, mapTxErr(fmt.Errorf("complete appointment: %w", err))
	}
	if tag.RowsAffected() != 1 {
		return nil, nil, ErrVisitExists
	}

	// Follow-up booking shares the transaction: losing every candidate
	// race must not roll back the visit, and winning one must not commit
	// without it.
	var followup *Appointment
	if p.NextVisitDate != nil {
		for _, cand := range p.FollowupCandidates {
			a, err := reserveInTx(ctx, tx, ReserveParams{
				DoctorID:  appt.DoctorID,
				PatientID: appt.PatientID,
				Date:      *p.NextVisitDate,
				Slot:      cand,
				Reason:    FollowupReason,
			})
			if errors.Is(err, ErrSlotNotAvailable) {
				continue
			}
			if err != nil {
				return nil, nil, mapTxErr(err)
			}
			followup = a
			break
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, mapTxErr(fmt.Errorf("commit: %w", err))
	}
	return visit, followup, nil
}

// mapTxErr normalizes transaction failures: deadlines become the retryable
// ErrTxTimeout, and the partial unique index on non-cancelled appointments
// per timeslot surfaces as a lost race.
func mapTxErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTxTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSlotNotAvailable
	}
	return err
}
