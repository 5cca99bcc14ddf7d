package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicops/clinic-scheduling/internal/schedule"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock, 5*time.Second)
}

func apptRows(id, patientID, doctorID, slotID uuid.UUID, date time.Time, start int, status AppointmentStatus, reason string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "timeslot_id", "date", "start_min", "status", "reason", "created_at", "updated_at",
	}).AddRow(id, patientID, doctorID, slotID, date, start, status, reason, now, now)
}

func TestPgReserveTransactionSequence(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	patientID := uuid.New()
	slotID := uuid.New()
	apptID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timeslots").
		WithArgs(pgxmock.AnyArg(), doctorID, date, 480, 510).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE timeslots").
		WithArgs(doctorID, date, 480).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(slotID))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), patientID, doctorID, slotID, date, 480, "checkup").
		WillReturnRows(apptRows(apptID, patientID, doctorID, slotID, date, 480, StatusConfirmed, "checkup"))
	mock.ExpectExec("UPDATE timeslots").
		WithArgs(slotID, apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	appt, err := repo.Reserve(context.Background(), ReserveParams{
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      date,
		Slot:      schedule.TimeRange{Start: 480, End: 510},
		Reason:    "checkup",
	})
	require.NoError(t, err)
	assert.Equal(t, apptID, appt.ID)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.Equal(t, slotID, appt.TimeslotID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReserveLostRaceRollsBack(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO timeslots").
		WithArgs(pgxmock.AnyArg(), doctorID, date, 480, 510).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("UPDATE timeslots").
		WithArgs(doctorID, date, 480).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Reserve(context.Background(), ReserveParams{
		DoctorID:  doctorID,
		PatientID: uuid.New(),
		Date:      date,
		Slot:      schedule.TimeRange{Start: 480, End: 510},
	})
	assert.ErrorIs(t, err, ErrSlotNotAvailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelReleasesSlot(t *testing.T) {
	mock, repo := newMockRepo(t)

	apptID := uuid.New()
	slotID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnRows(apptRows(apptID, uuid.New(), uuid.New(), slotID, date, 480, StatusCancelled, ""))
	mock.ExpectExec("UPDATE timeslots").
		WithArgs(slotID, apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	appt, err := repo.Cancel(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, appt.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelMissReportsTerminalState(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()

	// Conditional update misses because the row is completed; the re-read
	// must surface that, not a generic not-found.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs(apptID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusCompleted))
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), apptID)
	assert.ErrorIs(t, err, ErrAppointmentCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelMissOnAbsentRow(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs(apptID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Cancel(context.Background(), apptID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCloseVisitConflictAborts(t *testing.T) {
	mock, repo := newMockRepo(t)

	apptID := uuid.New()
	doctorID := uuid.New()
	patientID := uuid.New()
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(apptID).
		WillReturnRows(apptRows(apptID, patientID, doctorID, uuid.New(), date, 480, StatusCompleted, ""))
	mock.ExpectQuery("SELECT consultation_fee_cents FROM doctors").
		WithArgs(doctorID).
		WillReturnRows(pgxmock.NewRows([]string{"consultation_fee_cents"}).AddRow(7500))
	mock.ExpectQuery("INSERT INTO visits").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows) // ON CONFLICT DO NOTHING matched an existing visit
	mock.ExpectRollback()

	_, _, err := repo.CloseVisit(context.Background(), CloseVisitParams{
		AppointmentID: apptID,
		Clinical:      ClinicalData{Symptoms: "cough"},
	})
	assert.ErrorIs(t, err, ErrVisitExists)

	assert.NoError(t, mock.ExpectationsWereMet())
}
