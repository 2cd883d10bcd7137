package patients

import "context"

// Repository defines the interface for patient storage
type Repository interface {
	GetByPhone(ctx context.Context, telefono string) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
	Upsert(ctx context.Context, payload *Payload) (*Patient, error)
}

var _ Repository = (*PostgresRepository)(nil)
