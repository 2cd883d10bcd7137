package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const patientColumns = `id::text, nombre, telefono, fecha_nacimiento::text, sexo, altura, tipo_sangre, factor_rh,
	horario_dolor, inicio_dolor, intensidad_dolor, enfermedades_preexistentes, alergias,
	historial_familiar, medicamentos_actuales, dispositivos_implantados, created_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("patients: db required")
	}
	return &PostgresRepository{db: db}
}

// GetByPhone returns the patient whose normalized phone matches exactly.
func (r *PostgresRepository) GetByPhone(ctx context.Context, telefono string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE telefono = $1 LIMIT 1`
	return r.scanOne(ctx, "select by phone", query, NormalizePhone(telefono))
}

// GetByID returns a patient by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	return r.scanOne(ctx, "select by id", query, id)
}

// Upsert inserts the patient or overwrites the row that already owns the phone number.
func (r *PostgresRepository) Upsert(ctx context.Context, p *Payload) (*Patient, error) {
	if p == nil || NormalizePhone(p.Telefono) == "" {
		return nil, ErrMissingPhone
	}
	query := `
		INSERT INTO patients (
			id, nombre, telefono, fecha_nacimiento, sexo, altura, tipo_sangre, factor_rh,
			horario_dolor, inicio_dolor, intensidad_dolor, enfermedades_preexistentes, alergias,
			historial_familiar, medicamentos_actuales, dispositivos_implantados
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (telefono) DO UPDATE SET
			nombre = EXCLUDED.nombre,
			fecha_nacimiento = EXCLUDED.fecha_nacimiento,
			sexo = EXCLUDED.sexo,
			altura = EXCLUDED.altura,
			tipo_sangre = EXCLUDED.tipo_sangre,
			factor_rh = EXCLUDED.factor_rh,
			horario_dolor = EXCLUDED.horario_dolor,
			inicio_dolor = EXCLUDED.inicio_dolor,
			intensidad_dolor = EXCLUDED.intensidad_dolor,
			enfermedades_preexistentes = EXCLUDED.enfermedades_preexistentes,
			alergias = EXCLUDED.alergias,
			historial_familiar = EXCLUDED.historial_familiar,
			medicamentos_actuales = EXCLUDED.medicamentos_actuales,
			dispositivos_implantados = EXCLUDED.dispositivos_implantados,
			updated_at = now()
		RETURNING ` + patientColumns
	row := r.db.QueryRow(ctx, query,
		uuid.New(),
		p.Nombre,
		NormalizePhone(p.Telefono),
		p.FechaNacimiento,
		p.Sexo,
		p.Altura,
		p.TipoSangre,
		p.FactorRh,
		p.HorarioDolor,
		p.InicioDolor,
		p.IntensidadDolor,
		p.EnfermedadesPreexistentes,
		p.Alergias,
		p.HistorialFamiliar,
		p.MedicamentosActuales,
		p.DispositivosImplantados,
	)
	patient, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("patients: upsert: %w", err)
	}
	return patient, nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, op string, query string, arg any) (*Patient, error) {
	patient, err := scanPatient(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: %s: %w", op, err)
	}
	return patient, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(
		&p.ID,
		&p.Nombre,
		&p.Telefono,
		&p.FechaNacimiento,
		&p.Sexo,
		&p.Altura,
		&p.TipoSangre,
		&p.FactorRh,
		&p.HorarioDolor,
		&p.InicioDolor,
		&p.IntensidadDolor,
		&p.EnfermedadesPreexistentes,
		&p.Alergias,
		&p.HistorialFamiliar,
		&p.MedicamentosActuales,
		&p.DispositivosImplantados,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
