package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db querier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db querier) *PostgresRepository {
	if db == nil {
		panic("appointments: db required")
	}
	return &PostgresRepository{db: db}
}

// Create inserts a new appointment. A scheduled row already holding the slot yields ErrSlotTaken.
func (r *PostgresRepository) Create(ctx context.Context, p *Payload) (*Appointment, error) {
	if p == nil || strings.TrimSpace(p.FechaCita) == "" || strings.TrimSpace(p.HoraCita) == "" {
		return nil, ErrMissingSlot
	}
	status := p.Status
	if status == "" {
		status = StatusScheduled
	}
	query := `
		INSERT INTO appointments (id, patient_id, telefono, fecha_cita, hora_cita, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text, patient_id::text, telefono, fecha_cita::text, hora_cita, status, created_at
	`
	var a Appointment
	if err := r.db.QueryRow(ctx, query,
		uuid.New(),
		p.PatientID,
		p.Telefono,
		p.FechaCita,
		p.HoraCita,
		status,
	).Scan(
		&a.ID,
		&a.PatientID,
		&a.Telefono,
		&a.FechaCita,
		&a.HoraCita,
		&a.Status,
		&a.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("appointments: insert: %w", ErrSlotTaken)
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &a, nil
}

// BookedSlots lists scheduled slots whose date falls within [startDate, endDate].
func (r *PostgresRepository) BookedSlots(ctx context.Context, startDate, endDate string) ([]Slot, error) {
	query := `
		SELECT fecha_cita::text, hora_cita
		FROM appointments
		WHERE status = $1 AND fecha_cita >= $2 AND fecha_cita <= $3
		ORDER BY fecha_cita, hora_cita
	`
	rows, err := r.db.Query(ctx, query, StatusScheduled, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	defer rows.Close()

	slots := []Slot{}
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.FechaCita, &s.HoraCita); err != nil {
			return nil, fmt.Errorf("appointments: scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: booked slots: %w", err)
	}
	return slots, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
