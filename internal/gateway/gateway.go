// Package gateway bridges finished intake records and the clinic dashboard to the store.
// Reads fail open: errors are logged and degrade to empty results. Writes surface a
// *WriteError carrying a message fit for the patient.
package gateway

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

var tracer = otel.Tracer("clinicintake.internal.gateway")

type patientStore interface {
	GetByPhone(ctx context.Context, telefono string) (*patients.Patient, error)
	GetByID(ctx context.Context, id string) (*patients.Patient, error)
	Upsert(ctx context.Context, p *patients.Payload) (*patients.Patient, error)
}

type appointmentStore interface {
	Create(ctx context.Context, p *appointments.Payload) (*appointments.Appointment, error)
	BookedSlots(ctx context.Context, startDate, endDate string) ([]appointments.Slot, error)
}

type analysisStore interface {
	Latest(ctx context.Context) (*analyses.Analysis, error)
	LatestMeasurement(ctx context.Context, patientID, deviceType string) (*analyses.Measurement, error)
}

// Gateway performs single round-trip store operations. It holds no mutable state and
// is safe for concurrent use.
type Gateway struct {
	patients     patientStore
	appointments appointmentStore
	analyses     analysisStore
	realtime     AnalysisSource
	metrics      *metrics.GatewayMetrics
	logger       *logging.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMetrics records per-operation outcomes.
func WithMetrics(m *metrics.GatewayMetrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithRealtime enables SubscribeToAnalyses.
func WithRealtime(src AnalysisSource) Option {
	return func(g *Gateway) { g.realtime = src }
}

// New creates a gateway over the three repositories.
func New(patientsRepo patientStore, appointmentsRepo appointmentStore, analysesRepo analysisStore, logger *logging.Logger, opts ...Option) *Gateway {
	if patientsRepo == nil || appointmentsRepo == nil || analysesRepo == nil {
		panic("gateway: repositories cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	g := &Gateway{
		patients:     patientsRepo,
		appointments: appointmentsRepo,
		analyses:     analysesRepo,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LookupPatientByPhone returns the stored patient for phone, or nil when there is none
// or the store could not be reached.
func (g *Gateway) LookupPatientByPhone(ctx context.Context, phone string) *patients.Patient {
	ctx, span := tracer.Start(ctx, "gateway.lookup_patient")
	defer span.End()
	start := time.Now()

	telefono := patients.NormalizePhone(phone)
	if telefono == "" {
		return nil
	}
	p, err := g.patients.GetByPhone(ctx, telefono)
	switch {
	case errors.Is(err, patients.ErrPatientNotFound):
		g.observe("lookup_patient", metrics.OutcomeNotFound, start)
		return nil
	case err != nil:
		span.RecordError(err)
		g.logger.Error("patient lookup failed", "telefono_suffix", logging.PhoneSuffix(telefono), "error", err)
		g.observe("lookup_patient", metrics.OutcomeError, start)
		return nil
	}
	span.SetAttributes(attribute.String("intake.patient_id", p.ID))
	g.observe("lookup_patient", metrics.OutcomeOK, start)
	return p
}

// SubmitPatient upserts the patient keyed by phone.
func (g *Gateway) SubmitPatient(ctx context.Context, payload patients.Payload) (*patients.Patient, error) {
	ctx, span := tracer.Start(ctx, "gateway.submit_patient")
	defer span.End()
	start := time.Now()

	p, err := g.patients.Upsert(ctx, &payload)
	if err != nil {
		span.RecordError(err)
		g.logger.Error("patient upsert failed", "telefono_suffix", logging.PhoneSuffix(payload.Telefono), "error", err)
		g.observe("submit_patient", metrics.OutcomeError, start)
		return nil, newWriteError("submit_patient", err)
	}
	g.observe("submit_patient", metrics.OutcomeOK, start)
	return p, nil
}

// CreateAppointment inserts a scheduled appointment. A booked slot fails with a
// *WriteError whose SlotTaken reports true.
func (g *Gateway) CreateAppointment(ctx context.Context, payload appointments.Payload) (*appointments.Appointment, error) {
	ctx, span := tracer.Start(ctx, "gateway.create_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.String("intake.fecha_cita", payload.FechaCita),
		attribute.String("intake.hora_cita", payload.HoraCita),
	)
	start := time.Now()

	appt, err := g.appointments.Create(ctx, &payload)
	if err != nil {
		span.RecordError(err)
		outcome := metrics.OutcomeError
		if errors.Is(err, appointments.ErrSlotTaken) {
			outcome = metrics.OutcomeConflict
			g.metrics.ObserveSlotCollision()
			g.logger.Warn("appointment slot already booked", "fecha_cita", payload.FechaCita, "hora_cita", payload.HoraCita)
		} else {
			g.logger.Error("appointment insert failed", "fecha_cita", payload.FechaCita, "hora_cita", payload.HoraCita, "error", err)
		}
		g.observe("create_appointment", outcome, start)
		return nil, newWriteError("create_appointment", err)
	}
	g.observe("create_appointment", metrics.OutcomeOK, start)
	return appt, nil
}

// FetchBookedSlots lists scheduled slots between the two dates inclusive. Store errors
// yield an empty list so availability can still be displayed.
func (g *Gateway) FetchBookedSlots(ctx context.Context, startDate, endDate string) []appointments.Slot {
	ctx, span := tracer.Start(ctx, "gateway.booked_slots")
	defer span.End()
	start := time.Now()

	slots, err := g.appointments.BookedSlots(ctx, startDate, endDate)
	if err != nil {
		span.RecordError(err)
		g.logger.Error("booked slots query failed", "start", startDate, "end", endDate, "error", err)
		g.observe("booked_slots", metrics.OutcomeError, start)
		return []appointments.Slot{}
	}
	if slots == nil {
		slots = []appointments.Slot{}
	}
	g.observe("booked_slots", metrics.OutcomeOK, start)
	return slots
}

// LatestAnalysis is what the clinician dashboard shows: the newest analysis, its
// patient, and that patient's most recent readings. Missing readings are nil.
type LatestAnalysis struct {
	Patient       *patients.Patient     `json:"patient"`
	Analysis      *analyses.Analysis    `json:"analysis"`
	Scale         *analyses.Measurement `json:"scale"`
	BloodPressure *analyses.Measurement `json:"blood_pressure"`
}

// FetchLatestAnalysis returns nil when there is no analysis or its patient cannot be loaded.
func (g *Gateway) FetchLatestAnalysis(ctx context.Context) *LatestAnalysis {
	ctx, span := tracer.Start(ctx, "gateway.latest_analysis")
	defer span.End()
	start := time.Now()

	analysis, err := g.analyses.Latest(ctx)
	if err != nil {
		if errors.Is(err, analyses.ErrAnalysisNotFound) {
			g.observe("latest_analysis", metrics.OutcomeNotFound, start)
			return nil
		}
		span.RecordError(err)
		g.logger.Error("latest analysis query failed", "error", err)
		g.observe("latest_analysis", metrics.OutcomeError, start)
		return nil
	}
	out, err := g.expand(ctx, analysis)
	if err != nil {
		span.RecordError(err)
		g.observe("latest_analysis", metrics.OutcomeError, start)
		return nil
	}
	g.observe("latest_analysis", metrics.OutcomeOK, start)
	return out
}

// Expand loads the patient and readings for an analysis delivered by a subscription.
func (g *Gateway) Expand(ctx context.Context, analysis analyses.Analysis) *LatestAnalysis {
	out, err := g.expand(ctx, &analysis)
	if err != nil {
		return nil
	}
	return out
}

func (g *Gateway) expand(ctx context.Context, analysis *analyses.Analysis) (*LatestAnalysis, error) {
	patient, err := g.patients.GetByID(ctx, analysis.PatientID)
	if err != nil {
		g.logger.Error("analysis patient lookup failed", "analysis_id", analysis.ID, "patient_id", analysis.PatientID, "error", err)
		return nil, err
	}
	return &LatestAnalysis{
		Patient:       patient,
		Analysis:      analysis,
		Scale:         g.latestMeasurement(ctx, patient.ID, analyses.DeviceScale),
		BloodPressure: g.latestMeasurement(ctx, patient.ID, analyses.DeviceBloodPressure),
	}, nil
}

func (g *Gateway) latestMeasurement(ctx context.Context, patientID, deviceType string) *analyses.Measurement {
	m, err := g.analyses.LatestMeasurement(ctx, patientID, deviceType)
	if err != nil {
		if !errors.Is(err, analyses.ErrMeasurementNotFound) {
			g.logger.Warn("measurement lookup failed", "patient_id", patientID, "device_type", deviceType, "error", err)
		}
		return nil
	}
	return m
}

func (g *Gateway) observe(op, outcome string, start time.Time) {
	g.metrics.ObserveOperation(op, outcome, time.Since(start).Seconds())
}
