package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type TimeslotStatus string

const (
	SlotFree      TimeslotStatus = "free"
	SlotHeld      TimeslotStatus = "held"
	SlotBooked    TimeslotStatus = "booked"
	SlotCancelled TimeslotStatus = "cancelled"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// Actor is the resolved identity performing an operation, supplied by the
// external identity service via the request token.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timeslot is one bookable unit of a doctor's day, unique per
// (doctor, date, start). AppointmentID is set iff status is held or booked.
type Timeslot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Date          time.Time
	StartMin      int
	EndMin        int
	Status        TimeslotStatus
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	TimeslotID uuid.UUID
	Date       time.Time
	StartMin   int
	Status     AppointmentStatus
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Prescription struct {
	Medicine string `json:"medicine"`
	Dosage   string `json:"dosage"`
	Duration string `json:"duration,omitempty"`
}

type BillItem struct {
	Description string `json:"description"`
	AmountCents int    `json:"amount_cents"`
}

// ClinicalData is what the doctor records when closing an appointment.
type ClinicalData struct {
	Symptoms      string
	Diagnosis     *string
	Notes         *string
	Advice        *string
	Prescriptions []Prescription
	BillItems     []BillItem
}

// Visit is the clinical record produced by closing an appointment. FeeCents
// is snapshotted from the doctor's profile at closure time so later price
// changes do not alter historical billing.
type Visit struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	Symptoms      string
	Diagnosis     *string
	Notes         *string
	Advice        *string
	FeeCents      int
	NextVisitDate *time.Time
	Prescriptions []Prescription
	BillItems     []BillItem
	CreatedAt     time.Time
}

// Followup reports the outcome of auto-rebooking after a visit closure.
type Followup struct {
	Scheduled   bool
	Reason      string // NO_FREE_SLOT when not scheduled
	Appointment *Appointment
}

const NoFreeSlot = "NO_FREE_SLOT"

// FollowupReason is the reason recorded on auto-scheduled appointments.
const FollowupReason = "Follow-up"

// ReserveParams carries a validated slot into the ledger transaction. Slot
// must come from a fresh availability compilation for (DoctorID, Date).
type ReserveParams struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      time.Time
	Slot      schedule.TimeRange
	Reason    string
}

type CloseVisitParams struct {
	AppointmentID      uuid.UUID
	Clinical           ClinicalData
	NextVisitDate      *time.Time
	FollowupCandidates []schedule.TimeRange
}
