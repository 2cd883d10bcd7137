package appointments

import "errors"

// SlotTakenMessage is shown to the patient when the chosen slot was booked first by someone else.
const SlotTakenMessage = "Este horario ya está reservado. Por favor, seleccione otro horario."

var (
	// ErrSlotTaken is returned when the (fecha_cita, hora_cita) pair is already scheduled
	ErrSlotTaken = errors.New("appointment slot already booked")

	// ErrMissingSlot is returned when the payload has no date or time
	ErrMissingSlot = errors.New("appointment date and time are required")
)
