package appointments

import "time"

// StatusScheduled is the only status this service writes.
const StatusScheduled = "scheduled"

// Payload is the appointment row written on submission.
type Payload struct {
	PatientID *string `json:"patient_id,omitempty"`
	Telefono  string  `json:"telefono"`
	FechaCita string  `json:"fecha_cita"`
	HoraCita  string  `json:"hora_cita"`
	Status    string  `json:"status"`
}

// Appointment is a persisted appointment row.
type Appointment struct {
	ID string `json:"id"`
	Payload
	CreatedAt time.Time `json:"created_at"`
}

// Slot is a bookable (date, time) pair.
type Slot struct {
	FechaCita string `json:"fecha_cita"`
	HoraCita  string `json:"hora_cita"`
}
