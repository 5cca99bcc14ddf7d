package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotAvailable     = errors.New("slot not available")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrVisitExists          = errors.New("visit already recorded for appointment")
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
	ErrAppointmentCompleted = errors.New("appointment is completed")
	ErrForbidden            = errors.New("actor may not perform this operation")

	// ErrTxTimeout means the ledger transaction hit its deadline and was
	// aborted; the outcome is known (nothing committed) and the caller may
	// retry. Distinct from ErrSlotNotAvailable, which means the race was
	// lost and retrying the same slot is pointless.
	ErrTxTimeout = errors.New("booking transaction timed out")
)

// Repository contains all ledger interactions. Every mutating method runs
// as a single atomic transaction; partial effects never survive an error.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// TakenStarts reports the start minutes on the date whose ledger rows
	// are currently held or booked.
	TakenStarts(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[int]bool, error)

	// Reserve materializes the ledger row if needed and flips it
	// free→held→booked around the appointment insert, all in one tx.
	// Exactly one concurrent caller for a given (doctor, date, start)
	// succeeds; the rest get ErrSlotNotAvailable.
	Reserve(ctx context.Context, p ReserveParams) (*Appointment, error)

	// Cancel marks the appointment cancelled and releases its timeslot to
	// free, clearing the reference. The caller handles idempotency and
	// authorization; Cancel itself expects a cancellable appointment.
	Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error)

	// CloseVisit snapshots the fee, records the visit, completes the
	// appointment and optionally books the earliest free follow-up
	// candidate, all in one tx. A missing follow-up slot is not an error;
	// the returned appointment is nil in that case.
	CloseVisit(ctx context.Context, p CloseVisitParams) (*Visit, *Appointment, error)
}
