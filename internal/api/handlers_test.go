package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic-scheduling/internal/booking"
	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

const testSecret = "test-secret"

type stubBooking struct {
	availability func(doctorID uuid.UUID, date time.Time) ([]schedule.TimeRange, error)
	reserve      func(actor booking.Actor, doctorID uuid.UUID, date time.Time, startMin int, reason string) (*booking.Appointment, error)
	cancel       func(actor booking.Actor, id uuid.UUID) error
	closeVisit   func(actor booking.Actor, id uuid.UUID, clinical booking.ClinicalData, next *time.Time) (*booking.Visit, *booking.Followup, error)
}

func (s *stubBooking) Availability(_ context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeRange, error) {
	return s.availability(doctorID, date)
}

func (s *stubBooking) Reserve(_ context.Context, actor booking.Actor, doctorID uuid.UUID, date time.Time, startMin int, reason string) (*booking.Appointment, error) {
	return s.reserve(actor, doctorID, date, startMin, reason)
}

func (s *stubBooking) Cancel(_ context.Context, actor booking.Actor, id uuid.UUID) error {
	return s.cancel(actor, id)
}

func (s *stubBooking) CloseVisit(_ context.Context, actor booking.Actor, id uuid.UUID, clinical booking.ClinicalData, next *time.Time) (*booking.Visit, *booking.Followup, error) {
	return s.closeVisit(actor, id, clinical, next)
}

func (s *stubBooking) GetAppointment(context.Context, booking.Actor, uuid.UUID) (*booking.Appointment, error) {
	return nil, booking.ErrAppointmentNotFound
}

func (s *stubBooking) ListAppointments(context.Context, booking.Actor, int, int) ([]booking.Appointment, error) {
	return nil, nil
}

type stubSchedules struct {
	schedule.Repository
}

func (stubSchedules) GetDoctorByID(context.Context, uuid.UUID) (*schedule.Doctor, error) {
	return &schedule.Doctor{}, nil
}

func (stubSchedules) ReplaceWeeklyTemplate(context.Context, uuid.UUID, schedule.WeeklyTemplate) error {
	return nil
}

func newTestRouter(svc BookingService) http.Handler {
	return NewRouter(RouterConfig{
		Booking:   svc,
		Schedules: stubSchedules{},
		Logger:    zerolog.Nop(),
		JWTSecret: testSecret,
		Env:       "test",
	})
}

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAvailabilityEndpoint(t *testing.T) {
	docID := uuid.New()
	svc := &stubBooking{
		availability: func(doctorID uuid.UUID, _ time.Time) ([]schedule.TimeRange, error) {
			if doctorID != docID {
				return nil, schedule.ErrDoctorNotFound
			}
			return []schedule.TimeRange{{Start: 480, End: 510}, {Start: 510, End: 540}}, nil
		},
	}
	router := newTestRouter(svc)
	token := signToken(t, uuid.New(), "patient")

	rec := doRequest(t, router, http.MethodGet, "/doctors/"+docID.String()+"/availability?date=2026-09-07", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, "08:00", resp.Slots[0].Start)
	assert.Equal(t, "08:30", resp.Slots[0].End)

	rec = doRequest(t, router, http.MethodGet, "/doctors/"+docID.String()+"/availability?date=07-09-2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/doctors/"+uuid.NewString()+"/availability?date=2026-09-07", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/doctors/not-a-uuid/availability?date=2026-09-07", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserveEndpointStatusMapping(t *testing.T) {
	docID := uuid.New()
	patientID := uuid.New()
	apptID := uuid.New()

	var svcErr error
	svc := &stubBooking{
		reserve: func(actor booking.Actor, doctorID uuid.UUID, date time.Time, startMin int, reason string) (*booking.Appointment, error) {
			if svcErr != nil {
				return nil, svcErr
			}
			return &booking.Appointment{
				ID: apptID, PatientID: actor.ID, DoctorID: doctorID,
				Date: date, StartMin: startMin, Status: booking.StatusConfirmed, Reason: reason,
			}, nil
		},
	}
	router := newTestRouter(svc)
	token := signToken(t, patientID, "patient")
	body := ReserveRequest{DoctorID: docID.String(), Date: "2026-09-07", Start: "08:00", Reason: "checkup"}

	rec := doRequest(t, router, http.MethodPost, "/appointments", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointments", token, ReserveRequest{DoctorID: docID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointments", token, ReserveRequest{DoctorID: docID.String(), Date: "2026-09-07", Start: "8 o'clock"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointments", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, apptID, appt.ID)
	assert.Equal(t, patientID, appt.PatientID)
	assert.Equal(t, "08:00", appt.Start)
	assert.Equal(t, "confirmed", appt.Status)

	svcErr = booking.ErrSlotNotAvailable
	rec = doRequest(t, router, http.MethodPost, "/appointments", token, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "slot_not_available", errResp.Error)

	svcErr = booking.ErrForbidden
	rec = doRequest(t, router, http.MethodPost, "/appointments", token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svcErr = booking.ErrTxTimeout
	rec = doRequest(t, router, http.MethodPost, "/appointments", token, body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "booking_timeout", errResp.Error)
}

func TestCancelEndpoint(t *testing.T) {
	var svcErr error
	svc := &stubBooking{
		cancel: func(booking.Actor, uuid.UUID) error { return svcErr },
	}
	router := newTestRouter(svc)
	token := signToken(t, uuid.New(), "patient")
	path := "/appointments/" + uuid.NewString() + "/cancel"

	rec := doRequest(t, router, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	svcErr = booking.ErrAppointmentNotFound
	rec = doRequest(t, router, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	svcErr = booking.ErrForbidden
	rec = doRequest(t, router, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/appointments/nope/cancel", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseVisitEndpoint(t *testing.T) {
	apptID := uuid.New()
	doctorID := uuid.New()

	svc := &stubBooking{
		closeVisit: func(actor booking.Actor, id uuid.UUID, clinical booking.ClinicalData, next *time.Time) (*booking.Visit, *booking.Followup, error) {
			visit := &booking.Visit{
				ID: uuid.New(), AppointmentID: id, DoctorID: actor.ID,
				Symptoms: clinical.Symptoms, FeeCents: 7500, CreatedAt: time.Now(),
			}
			if next == nil {
				return visit, nil, nil
			}
			return visit, &booking.Followup{Scheduled: false, Reason: booking.NoFreeSlot}, nil
		},
	}
	router := newTestRouter(svc)
	token := signToken(t, doctorID, "doctor")
	path := "/appointments/" + apptID.String() + "/close"

	rec := doRequest(t, router, http.MethodPost, path, token, CloseVisitRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "symptoms are required")

	rec = doRequest(t, router, http.MethodPost, path, token, CloseVisitRequest{Symptoms: "fever", NextVisitDate: strPtr("someday")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, path, token, CloseVisitRequest{Symptoms: "fever"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CloseVisitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fever", resp.Visit.Symptoms)
	assert.Equal(t, 7500, resp.Visit.FeeCents)
	assert.Nil(t, resp.Followup)

	rec = doRequest(t, router, http.MethodPost, path, token, CloseVisitRequest{Symptoms: "fever", NextVisitDate: strPtr("2026-09-14")})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Followup)
	assert.False(t, resp.Followup.Scheduled)
	assert.Equal(t, booking.NoFreeSlot, resp.Followup.Reason)
}

func TestScheduleEndpointsRequireRole(t *testing.T) {
	router := newTestRouter(&stubBooking{})
	docID := uuid.New()
	body := ReplaceScheduleRequest{Entries: []WeekdayRangesRequest{
		{Weekday: 1, Ranges: []RangeRequest{{Start: "08:00", End: "11:00"}}},
	}}

	patientToken := signToken(t, uuid.New(), "patient")
	rec := doRequest(t, router, http.MethodPut, "/doctors/"+docID.String()+"/schedule", patientToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	otherDoctorToken := signToken(t, uuid.New(), "doctor")
	rec = doRequest(t, router, http.MethodPut, "/doctors/"+docID.String()+"/schedule", otherDoctorToken, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ownToken := signToken(t, docID, "doctor")
	rec = doRequest(t, router, http.MethodPut, "/doctors/"+docID.String()+"/schedule", ownToken, body)
	assert.Equal(t, http.StatusOK, rec.Code)

	adminToken := signToken(t, uuid.New(), "admin")
	rec = doRequest(t, router, http.MethodPut, "/doctors/"+docID.String()+"/schedule", adminToken, body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodPut, "/doctors/"+docID.String()+"/schedule", adminToken, ReplaceScheduleRequest{
		Entries: []WeekdayRangesRequest{{Weekday: 9, Ranges: nil}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	router := newTestRouter(&stubBooking{})

	rec := doRequest(t, router, http.MethodGet, "/appointments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/appointments", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Token signed with a different key.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uuid.NewString(), "role": "patient", "exp": time.Now().Add(time.Hour).Unix(),
	})
	forged, err := tok.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	rec = doRequest(t, router, http.MethodGet, "/appointments", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func strPtr(s string) *string { return &s }
