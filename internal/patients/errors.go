package patients

import "errors"

var (
	// ErrPatientNotFound is returned when no patient row matches the lookup
	ErrPatientNotFound = errors.New("patient not found")

	// ErrMissingPhone is returned when an upsert payload has no usable phone number
	ErrMissingPhone = errors.New("patient phone is required")
)
