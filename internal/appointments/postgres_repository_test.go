package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumns = []string{"id", "patient_id", "telefono", "fecha_cita", "hora_cita", "status", "created_at"}

func TestCreateInsertsScheduledAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	patientID := "5b7f0d0e-1111-4c4c-9d9d-000000000001"
	created := time.Now().UTC()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(pgxmock.AnyArg(), &patientID, "5551234567", "2026-11-02", "10:30", StatusScheduled).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow("appt-1", &patientID, "5551234567", "2026-11-02", "10:30", StatusScheduled, created))

	repo := NewPostgresRepositoryWithDB(mock)
	appt, err := repo.Create(context.Background(), &Payload{
		PatientID: &patientID,
		Telefono:  "5551234567",
		FechaCita: "2026-11-02",
		HoraCita:  "10:30",
	})
	require.NoError(t, err)
	assert.Equal(t, "appt-1", appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	require.NotNil(t, appt.PatientID)
	assert.Equal(t, patientID, *appt.PatientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolationToSlotTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO appointments`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "appointments_scheduled_slot_key"})

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.Create(context.Background(), &Payload{Telefono: "5551234567", FechaCita: "2026-11-02", HoraCita: "10:30", Status: StatusScheduled})
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePassesOtherErrorsThrough(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	storeErr := &pgconn.PgError{Code: "23503", Message: "insert or update on table \"appointments\" violates foreign key constraint"}
	mock.ExpectQuery(`INSERT INTO appointments`).WillReturnError(storeErr)

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.Create(context.Background(), &Payload{Telefono: "5551234567", FechaCita: "2026-11-02", HoraCita: "10:30"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotTaken)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23503", pgErr.Code)
}

func TestCreateRequiresSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepositoryWithDB(mock)
	_, err = repo.Create(context.Background(), &Payload{Telefono: "5551234567", FechaCita: " ", HoraCita: "10:30"})
	assert.ErrorIs(t, err, ErrMissingSlot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedSlotsRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT fecha_cita::text, hora_cita\s+FROM appointments`).
		WithArgs(StatusScheduled, "2026-11-01", "2026-11-07").
		WillReturnRows(pgxmock.NewRows([]string{"fecha_cita", "hora_cita"}).
			AddRow("2026-11-02", "10:30").
			AddRow("2026-11-03", "09:00"))

	repo := NewPostgresRepositoryWithDB(mock)
	slots, err := repo.BookedSlots(context.Background(), "2026-11-01", "2026-11-07")
	require.NoError(t, err)
	assert.Equal(t, []Slot{
		{FechaCita: "2026-11-02", HoraCita: "10:30"},
		{FechaCita: "2026-11-03", HoraCita: "09:00"},
	}, slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookedSlotsEmptyIsNotNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM appointments`).
		WithArgs(StatusScheduled, "2026-11-01", "2026-11-01").
		WillReturnRows(pgxmock.NewRows([]string{"fecha_cita", "hora_cita"}))

	repo := NewPostgresRepositoryWithDB(mock)
	slots, err := repo.BookedSlots(context.Background(), "2026-11-01", "2026-11-01")
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}
