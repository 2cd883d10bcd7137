package gateway

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/clinic-intake/internal/appointments"
)

// ErrRealtimeUnavailable is returned when no analyses listener is configured.
var ErrRealtimeUnavailable = errors.New("gateway: realtime analyses not configured")

// WriteError is a failed store write. Message is safe to show to the patient: the
// localized slot-taken text for collisions, the store's own message otherwise.
type WriteError struct {
	Op      string
	Message string
	Err     error
}

func (e *WriteError) Error() string {
	return e.Message
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// SlotTaken reports whether the write failed because the appointment slot was booked.
func (e *WriteError) SlotTaken() bool {
	return errors.Is(e.Err, appointments.ErrSlotTaken)
}

func newWriteError(op string, err error) *WriteError {
	we := &WriteError{Op: op, Err: err, Message: err.Error()}
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, appointments.ErrSlotTaken):
		we.Message = appointments.SlotTakenMessage
	case errors.As(err, &pgErr) && pgErr.Message != "":
		we.Message = pgErr.Message
	}
	return we
}
