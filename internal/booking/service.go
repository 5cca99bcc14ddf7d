package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicops/clinic-scheduling/internal/notify"
	"github.com/clinicops/clinic-scheduling/internal/observability/metrics"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

// Service is the booking coordinator. All serialization of conflicting
// reservations happens in the repository's conditional updates; the
// service does validation, authorization and the fan-out around them.
type Service struct {
	repo          Repository
	compiler      *schedule.Compiler
	dispatcher    notify.Dispatcher
	metrics       *metrics.BookingMetrics
	logger        zerolog.Logger
	notifyTimeout time.Duration
}

func NewService(repo Repository, compiler *schedule.Compiler, dispatcher notify.Dispatcher, m *metrics.BookingMetrics, logger zerolog.Logger, notifyTimeout time.Duration) *Service {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	return &Service{
		repo:          repo,
		compiler:      compiler,
		dispatcher:    dispatcher,
		metrics:       m,
		logger:        logger,
		notifyTimeout: notifyTimeout,
	}
}

// Availability returns the bookable slots for the doctor on the date:
// compiled candidates minus ledger rows currently held or booked. The
// clients see exactly what Reserve would accept an instant later.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAvailabilityLatency(time.Since(start).Seconds()) }()

	candidates, err := s.compiler.CompileDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	taken, err := s.repo.TakenStarts(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("load taken slots: %w", err)
	}

	free := candidates[:0]
	for _, c := range candidates {
		if !taken[c.Start] {
			free = append(free, c)
		}
	}
	return free, nil
}

// Reserve books the (doctor, date, start) slot for the acting patient. The
// requested start is re-validated against a fresh compilation before the
// ledger transaction; a slot the client was shown earlier is never trusted.
func (s *Service) Reserve(ctx context.Context, actor Actor, doctorID uuid.UUID, date time.Time, startMin int, reason string) (*Appointment, error) {
	if actor.Role != RolePatient {
		s.metrics.ObserveReserve("forbidden")
		return nil, ErrForbidden
	}

	// The token only proves the caller holds a patient claim; the patient
	// record itself must exist before we write rows referencing it.
	if _, err := s.repo.GetPatientByID(ctx, actor.ID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			s.metrics.ObserveReserve("not_found")
		} else {
			s.metrics.ObserveReserve("error")
		}
		return nil, err
	}

	candidates, err := s.compiler.CompileDay(ctx, doctorID, date)
	if err != nil {
		s.metrics.ObserveReserve("error")
		return nil, err
	}

	var slot *schedule.TimeRange
	for i := range candidates {
		if candidates[i].Start == startMin {
			slot = &candidates[i]
			break
		}
	}
	if slot == nil {
		s.metrics.ObserveReserve("conflict")
		return nil, ErrSlotNotAvailable
	}

	appt, err := s.repo.Reserve(ctx, ReserveParams{
		DoctorID:  doctorID,
		PatientID: actor.ID,
		Date:      date,
		Slot:      *slot,
		Reason:    reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotNotAvailable):
			s.metrics.ObserveReserve("conflict")
		case errors.Is(err, ErrTxTimeout):
			s.metrics.ObserveReserve("timeout")
		default:
			s.metrics.ObserveReserve("error")
		}
		return nil, err
	}

	s.metrics.ObserveReserve("ok")
	s.dispatch(notify.Event{
		Type:          notify.EventAppointmentBooked,
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date.Format("2006-01-02"),
		Start:         schedule.FormatMinute(appt.StartMin),
	})
	return appt, nil
}

// Cancel releases the appointment's slot. Only the owning patient or an
// admin may cancel. Cancelling an already-cancelled appointment succeeds
// with no further effect.
func (s *Service) Cancel(ctx context.Context, actor Actor, appointmentID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}

	switch actor.Role {
	case RoleAdmin:
	case RolePatient:
		if actor.ID != appt.PatientID {
			return ErrForbidden
		}
	default:
		return ErrForbidden
	}

	if appt.Status == StatusCancelled {
		s.metrics.ObserveCancel("noop")
		return nil
	}
	if appt.Status == StatusCompleted {
		s.metrics.ObserveCancel("conflict")
		return ErrAppointmentCompleted
	}

	cancelled, err := s.repo.Cancel(ctx, appointmentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentCancelled):
			// A concurrent cancel got there first. Same terminal state,
			// so report success for idempotency.
			s.metrics.ObserveCancel("noop")
			return nil
		case errors.Is(err, ErrAppointmentCompleted):
			// Completed between our pre-check and the ledger update.
			s.metrics.ObserveCancel("conflict")
			return err
		}
		s.metrics.ObserveCancel("error")
		return err
	}

	s.metrics.ObserveCancel("ok")
	s.dispatch(notify.Event{
		Type:          notify.EventAppointmentCancelled,
		AppointmentID: cancelled.ID,
		PatientID:     cancelled.PatientID,
		DoctorID:      cancelled.DoctorID,
		Date:          cancelled.Date.Format("2006-01-02"),
		Start:         schedule.FormatMinute(cancelled.StartMin),
	})
	return nil
}

// CloseVisit documents the appointment as a clinical visit and, when a
// next-visit date is given, books the earliest free slot of that day as a
// follow-up in the same transaction. Scheduling unavailability never
// blocks the closure: the visit commits and the follow-up is reported
// unscheduled.
func (s *Service) CloseVisit(ctx context.Context, actor Actor, appointmentID uuid.UUID, clinical ClinicalData, nextVisitDate *time.Time) (*Visit, *Followup, error) {
	if actor.Role != RoleDoctor {
		return nil, nil, ErrForbidden
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	if appt.DoctorID != actor.ID {
		return nil, nil, ErrForbidden
	}
	if appt.Status == StatusCancelled {
		return nil, nil, ErrAppointmentCancelled
	}

	var candidates []schedule.TimeRange
	if nextVisitDate != nil {
		candidates, err = s.compiler.CompileDay(ctx, appt.DoctorID, *nextVisitDate)
		if err != nil {
			return nil, nil, err
		}
	}

	visit, followupAppt, err := s.repo.CloseVisit(ctx, CloseVisitParams{
		AppointmentID:      appointmentID,
		Clinical:           clinical,
		NextVisitDate:      nextVisitDate,
		FollowupCandidates: candidates,
	})
	if err != nil {
		s.metrics.ObserveCloseVisit("error", false)
		return nil, nil, err
	}

	var followup *Followup
	if nextVisitDate != nil {
		if followupAppt != nil {
			followup = &Followup{Scheduled: true, Appointment: followupAppt}
			s.dispatch(notify.Event{
				Type:          notify.EventFollowupScheduled,
				AppointmentID: followupAppt.ID,
				PatientID:     followupAppt.PatientID,
				DoctorID:      followupAppt.DoctorID,
				Date:          followupAppt.Date.Format("2006-01-02"),
				Start:         schedule.FormatMinute(followupAppt.StartMin),
			})
		} else {
			followup = &Followup{Scheduled: false, Reason: NoFreeSlot}
		}
	}

	s.metrics.ObserveCloseVisit("ok", followup != nil && followup.Scheduled)
	return visit, followup, nil
}

func (s *Service) GetAppointment(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case RoleAdmin:
	case RoleDoctor:
		if actor.ID != appt.DoctorID {
			return nil, ErrForbidden
		}
	case RolePatient:
		if actor.ID != appt.PatientID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, actor Actor, limit, offset int) ([]Appointment, error) {
	if actor.Role != RolePatient {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListAppointmentsByPatient(ctx, actor.ID, limit, offset)
}

// dispatch hands the event to the notifier off the request path. Delivery
// failures are logged and dropped; the booking transaction has already
// committed and must not appear to fail.
func (s *Service) dispatch(ev notify.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, ev); err != nil {
			s.logger.Warn().
				Err(err).
				Str("event", ev.Type).
				Str("appointment_id", ev.AppointmentID.String()).
				Msg("notification dispatch failed")
		}
	}()
}
