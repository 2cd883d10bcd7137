// Package intake runs submissions and returning-patient lookups for survey sessions.
package intake

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/gateway"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/internal/survey"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var tracer = otel.Tracer("clinicintake.internal.intake")

var (
	// ErrIncomplete is returned when a required field still fails validation.
	ErrIncomplete = errors.New("intake: record incomplete")

	// ErrSubmitInProgress is returned when the session is already submitting.
	ErrSubmitInProgress = errors.New("intake: submission already in progress")
)

// SubmitError is a failed submission. PatientSaved is true when the patient row was
// written but the appointment was not.
type SubmitError struct {
	PatientSaved bool
	Err          error
}

func (e *SubmitError) Error() string {
	if e.PatientSaved {
		return fmt.Sprintf("intake: patient saved, appointment failed: %v", e.Err)
	}
	return fmt.Sprintf("intake: patient not saved: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Message is the text shown to the patient.
func (e *SubmitError) Message() string {
	var we *gateway.WriteError
	if errors.As(e.Err, &we) {
		return we.Message
	}
	return e.Err.Error()
}

// Store is the subset of the gateway the service needs.
type Store interface {
	LookupPatientByPhone(ctx context.Context, phone string) *patients.Patient
	SubmitPatient(ctx context.Context, payload patients.Payload) (*patients.Patient, error)
	CreateAppointment(ctx context.Context, payload appointments.Payload) (*appointments.Appointment, error)
	FetchBookedSlots(ctx context.Context, startDate, endDate string) []appointments.Slot
}

// Result holds the rows written by a successful submission.
type Result struct {
	Patient     *patients.Patient         `json:"patient"`
	Appointment *appointments.Appointment `json:"appointment"`
}

// Service sequences the two writes of a submission. The writes are independent;
// a failed appointment does not undo the patient upsert.
type Service struct {
	store  Store
	logger *logging.Logger
}

// NewService creates a submission service.
func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("intake: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger}
}

// Submit writes the session's record. On success the session is cleared and flagged
// as succeeded; on a store failure it keeps its data and carries the failure message.
func (s *Service) Submit(ctx context.Context, sess *survey.Session) (*Result, error) {
	ctx, span := tracer.Start(ctx, "intake.submit")
	defer span.End()
	span.SetAttributes(attribute.Int("intake.step", sess.Step()))

	if sess.IsSubmitting() {
		return nil, ErrSubmitInProgress
	}
	if !sess.Validate(survey.StepEnviar) {
		span.SetAttributes(attribute.String("intake.outcome", "incomplete"))
		return nil, ErrIncomplete
	}
	sess.BeginSubmit()
	record := sess.Record()
	log := s.logger.With("telefono_suffix", logging.PhoneSuffix(record.Telefono))

	patient, err := s.store.SubmitPatient(ctx, survey.ToPatientPayload(record))
	if err != nil {
		serr := &SubmitError{Err: err}
		s.fail(span, sess, serr)
		log.Error("intake submission failed at patient upsert", "error", err)
		return nil, serr
	}

	apptPayload := survey.ToAppointmentPayload(record)
	apptPayload.PatientID = &patient.ID
	appt, err := s.store.CreateAppointment(ctx, apptPayload)
	if err != nil {
		serr := &SubmitError{PatientSaved: true, Err: err}
		s.fail(span, sess, serr)
		log.Warn("intake submission saved patient but not appointment", "patient_id", patient.ID, "error", err)
		return &Result{Patient: patient}, serr
	}

	sess.CompleteSubmit()
	span.SetAttributes(
		attribute.String("intake.outcome", "submitted"),
		attribute.String("intake.patient_id", patient.ID),
		attribute.String("intake.appointment_id", appt.ID),
	)
	log.Info("intake submitted", "patient_id", patient.ID, "appointment_id", appt.ID)
	return &Result{Patient: patient, Appointment: appt}, nil
}

func (s *Service) fail(span trace.Span, sess *survey.Session, serr *SubmitError) {
	sess.FailSubmit(serr.Message())
	span.RecordError(serr)
	span.SetStatus(codes.Error, serr.Message())
	span.SetAttributes(attribute.String("intake.outcome", "failed"), attribute.Bool("intake.patient_saved", serr.PatientSaved))
}

// Lookup pre-fills the session from the patient stored under its phone number and
// reports whether one was found.
func (s *Service) Lookup(ctx context.Context, sess *survey.Session) bool {
	ctx, span := tracer.Start(ctx, "intake.lookup")
	defer span.End()

	phone := sess.Record().Telefono
	if !survey.ValidateTelefono(phone) {
		return false
	}
	patient := s.store.LookupPatientByPhone(ctx, phone)
	if patient == nil {
		span.SetAttributes(attribute.Bool("intake.returning", false))
		return false
	}
	sess.AutoFill(survey.SourceFromPatient(patient))
	span.SetAttributes(attribute.Bool("intake.returning", true))
	s.logger.Debug("returning patient auto-filled", "patient_id", patient.ID)
	return true
}

// BookedSlots lists slots already taken between two dates inclusive.
func (s *Service) BookedSlots(ctx context.Context, startDate, endDate string) []appointments.Slot {
	return s.store.FetchBookedSlots(ctx, startDate, endDate)
}
