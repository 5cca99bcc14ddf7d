package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/booking"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

// BookingService is the surface of the booking coordinator the handlers
// need. Narrowed to an interface so handler tests can stub it.
type BookingService interface {
	Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeRange, error)
	Reserve(ctx context.Context, actor booking.Actor, doctorID uuid.UUID, date time.Time, startMin int, reason string) (*booking.Appointment, error)
	Cancel(ctx context.Context, actor booking.Actor, appointmentID uuid.UUID) error
	CloseVisit(ctx context.Context, actor booking.Actor, appointmentID uuid.UUID, clinical booking.ClinicalData, nextVisitDate *time.Time) (*booking.Visit, *booking.Followup, error)
	GetAppointment(ctx context.Context, actor booking.Actor, id uuid.UUID) (*booking.Appointment, error)
	ListAppointments(ctx context.Context, actor booking.Actor, limit, offset int) ([]booking.Appointment, error)
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.Availability(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			DoctorID: doctorID,
			Date:     date.Format(dateLayout),
			Slots:    make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				Start: schedule.FormatMinute(s.Start),
				End:   schedule.FormatMinute(s.End),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func reserveHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		var req ReserveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.DoctorID == "" || req.Date == "" || req.Start == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "doctor_id, date and start are required")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		startMin, err := schedule.ParseMinute(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}

		appt, err := svc.Reserve(r.Context(), actor, doctorID, date, startMin, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)

		appts, err := svc.ListAppointments(r.Context(), actor, limit, offset)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), actor, id); err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

func closeVisitHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFromContext(r.Context())
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req CloseVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Symptoms == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "symptoms is required")
			return
		}

		var nextVisit *time.Time
		if req.NextVisitDate != nil {
			d, err := time.Parse(dateLayout, *req.NextVisitDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "next_visit_date must be YYYY-MM-DD")
				return
			}
			nextVisit = &d
		}

		clinical := booking.ClinicalData{
			Symptoms:      req.Symptoms,
			Diagnosis:     req.Diagnosis,
			Notes:         req.Notes,
			Advice:        req.Advice,
			Prescriptions: req.Prescriptions,
			BillItems:     req.BillItems,
		}

		visit, followup, err := svc.CloseVisit(r.Context(), actor, id, clinical, nextVisit)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := CloseVisitResponse{Visit: toVisitResponse(visit)}
		if followup != nil {
			fr := &FollowupResponse{Scheduled: followup.Scheduled, Reason: followup.Reason}
			if followup.Appointment != nil {
				ar := toAppointmentResponse(followup.Appointment)
				fr.Appointment = &ar
				fr.Date = ar.Date
				fr.Start = ar.Start
			}
			resp.Followup = fr
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func toVisitResponse(v *booking.Visit) VisitResponse {
	resp := VisitResponse{
		ID:            v.ID,
		AppointmentID: v.AppointmentID,
		PatientID:     v.PatientID,
		DoctorID:      v.DoctorID,
		Symptoms:      v.Symptoms,
		Diagnosis:     v.Diagnosis,
		Notes:         v.Notes,
		Advice:        v.Advice,
		FeeCents:      v.FeeCents,
		Prescriptions: v.Prescriptions,
		BillItems:     v.BillItems,
		CreatedAt:     v.CreatedAt,
	}
	if v.NextVisitDate != nil {
		d := v.NextVisitDate.Format(dateLayout)
		resp.NextVisitDate = &d
	}
	return resp
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", "slot is not available, pick another")
	case errors.Is(err, booking.ErrVisitExists):
		writeError(w, http.StatusConflict, "visit_exists", err.Error())
	case errors.Is(err, booking.ErrAppointmentCancelled):
		writeError(w, http.StatusConflict, "appointment_cancelled", err.Error())
	case errors.Is(err, booking.ErrAppointmentCompleted):
		writeError(w, http.StatusConflict, "appointment_completed", err.Error())
	case errors.Is(err, booking.ErrTxTimeout):
		writeError(w, http.StatusServiceUnavailable, "booking_timeout", "the booking transaction timed out, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
