package analyses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const analysisColumns = `id::text, patient_id::text, analysis_data, nivel_urgencia, created_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository reads analyses and measurements.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("analyses: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("analyses: db required")
	}
	return &PostgresRepository{db: db}
}

// Latest returns the most recently created analysis.
func (r *PostgresRepository) Latest(ctx context.Context) (*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM ai_analyses ORDER BY created_at DESC LIMIT 1`
	return r.scanAnalysis(ctx, "latest", query)
}

// GetByID returns a single analysis.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM ai_analyses WHERE id = $1`
	return r.scanAnalysis(ctx, "select by id", query, id)
}

// LatestMeasurement returns the newest reading of deviceType for the patient.
func (r *PostgresRepository) LatestMeasurement(ctx context.Context, patientID, deviceType string) (*Measurement, error) {
	query := `
		SELECT id::text, patient_id::text, device_type, data, measured_at
		FROM measurements
		WHERE patient_id = $1 AND device_type = $2
		ORDER BY measured_at DESC
		LIMIT 1
	`
	var m Measurement
	var data []byte
	if err := r.db.QueryRow(ctx, query, patientID, deviceType).Scan(
		&m.ID,
		&m.PatientID,
		&m.DeviceType,
		&data,
		&m.MeasuredAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMeasurementNotFound
		}
		return nil, fmt.Errorf("analyses: latest %s measurement: %w", deviceType, err)
	}
	m.Data = append([]byte(nil), data...)
	return &m, nil
}

func (r *PostgresRepository) scanAnalysis(ctx context.Context, op string, query string, args ...any) (*Analysis, error) {
	var a Analysis
	var data []byte
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.PatientID,
		&data,
		&a.NivelUrgencia,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("analyses: %s: %w", op, err)
	}
	a.AnalysisData = append([]byte(nil), data...)
	return &a, nil
}
