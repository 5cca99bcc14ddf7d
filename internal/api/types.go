package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/booking"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

const dateLayout = "2006-01-02"

type SlotResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ReserveRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Start    string `json:"start"`
	Reason   string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Start     string    `json:"start"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.Format(dateLayout),
		Start:     schedule.FormatMinute(a.StartMin),
		Status:    string(a.Status),
		Reason:    a.Reason,
	}
}

type CloseVisitRequest struct {
	Symptoms      string                 `json:"symptoms"`
	Diagnosis     *string                `json:"diagnosis,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	Advice        *string                `json:"advice,omitempty"`
	NextVisitDate *string                `json:"next_visit_date,omitempty"`
	Prescriptions []booking.Prescription `json:"prescriptions,omitempty"`
	BillItems     []booking.BillItem     `json:"bill_items,omitempty"`
}

type VisitResponse struct {
	ID            uuid.UUID              `json:"id"`
	AppointmentID uuid.UUID              `json:"appointment_id"`
	PatientID     uuid.UUID              `json:"patient_id"`
	DoctorID      uuid.UUID              `json:"doctor_id"`
	Symptoms      string                 `json:"symptoms"`
	Diagnosis     *string                `json:"diagnosis,omitempty"`
	Notes         *string                `json:"notes,omitempty"`
	Advice        *string                `json:"advice,omitempty"`
	FeeCents      int                    `json:"fee_cents"`
	NextVisitDate *string                `json:"next_visit_date,omitempty"`
	Prescriptions []booking.Prescription `json:"prescriptions,omitempty"`
	BillItems     []booking.BillItem     `json:"bill_items,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

type FollowupResponse struct {
	Scheduled   bool                 `json:"scheduled"`
	Reason      string               `json:"reason,omitempty"`
	Appointment *AppointmentResponse `json:"appointment,omitempty"`
	Date        string               `json:"date,omitempty"`
	Start       string               `json:"start,omitempty"`
}

type CloseVisitResponse struct {
	Visit    VisitResponse     `json:"visit"`
	Followup *FollowupResponse `json:"followup,omitempty"`
}

type RangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type WeekdayRangesRequest struct {
	Weekday int            `json:"weekday"` // 0=Sunday ... 6=Saturday
	Ranges  []RangeRequest `json:"ranges"`
}

type ReplaceScheduleRequest struct {
	Entries []WeekdayRangesRequest `json:"entries"`
}

type ExceptionRequest struct {
	DayOff bool           `json:"day_off"`
	Add    []RangeRequest `json:"add,omitempty"`
	Remove []RangeRequest `json:"remove,omitempty"`
}

type HolidayRequest struct {
	Name      string `json:"name"`
	Mandatory bool   `json:"mandatory"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
