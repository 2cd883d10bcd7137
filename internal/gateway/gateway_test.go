package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type stubPatients struct {
	byPhone  map[string]*patients.Patient
	byID     map[string]*patients.Patient
	err      error
	upserted *patients.Payload
}

func (s *stubPatients) GetByPhone(_ context.Context, telefono string) (*patients.Patient, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.byPhone[telefono]; ok {
		return p, nil
	}
	return nil, patients.ErrPatientNotFound
}

func (s *stubPatients) GetByID(_ context.Context, id string) (*patients.Patient, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, patients.ErrPatientNotFound
}

func (s *stubPatients) Upsert(_ context.Context, p *patients.Payload) (*patients.Patient, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.upserted = p
	return &patients.Patient{ID: "p-new", Payload: *p}, nil
}

type stubAppointments struct {
	slots []appointments.Slot
	err   error
}

func (s *stubAppointments) Create(_ context.Context, p *appointments.Payload) (*appointments.Appointment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &appointments.Appointment{ID: "a-1", Payload: *p}, nil
}

func (s *stubAppointments) BookedSlots(context.Context, string, string) ([]appointments.Slot, error) {
	return s.slots, s.err
}

type stubAnalyses struct {
	latest       *analyses.Analysis
	latestErr    error
	measurements map[string]*analyses.Measurement
	measureErr   error
}

func (s *stubAnalyses) Latest(context.Context) (*analyses.Analysis, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	if s.latest == nil {
		return nil, analyses.ErrAnalysisNotFound
	}
	return s.latest, nil
}

func (s *stubAnalyses) LatestMeasurement(_ context.Context, _ string, deviceType string) (*analyses.Measurement, error) {
	if s.measureErr != nil {
		return nil, s.measureErr
	}
	if m, ok := s.measurements[deviceType]; ok {
		return m, nil
	}
	return nil, analyses.ErrMeasurementNotFound
}

func newTestGateway(p *stubPatients, a *stubAppointments, an *stubAnalyses, buf *bytes.Buffer, opts ...Option) *Gateway {
	if p == nil {
		p = &stubPatients{}
	}
	if a == nil {
		a = &stubAppointments{}
	}
	if an == nil {
		an = &stubAnalyses{}
	}
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return New(p, a, an, logging.NewWithWriter("debug", buf), opts...)
}

func TestLookupPatientByPhoneNormalizes(t *testing.T) {
	stored := &patients.Patient{ID: "p-1", Payload: patients.Payload{Nombre: "Juan Pérez", Telefono: "5551234567"}}
	g := newTestGateway(&stubPatients{byPhone: map[string]*patients.Patient{"5551234567": stored}}, nil, nil, nil)

	got := g.LookupPatientByPhone(context.Background(), "(555) 123-4567")
	require.NotNil(t, got)
	assert.Equal(t, "p-1", got.ID)

	assert.Nil(t, g.LookupPatientByPhone(context.Background(), "5550000000"))
	assert.Nil(t, g.LookupPatientByPhone(context.Background(), "---"))
}

func TestLookupPatientByPhoneFailsOpen(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGateway(&stubPatients{err: errors.New("connection refused")}, nil, nil, &buf)

	assert.Nil(t, g.LookupPatientByPhone(context.Background(), "5551234567"))
	assert.Contains(t, buf.String(), "patient lookup failed")
	assert.Contains(t, buf.String(), "***4567")
	assert.NotContains(t, buf.String(), "5551234567")
}

func TestSubmitPatientSurfacesStoreMessage(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23514", Message: `new row for relation "patients" violates check constraint "patients_intensidad_dolor_check"`}
	g := newTestGateway(&stubPatients{err: fmt.Errorf("patients: upsert: %w", pgErr)}, nil, nil, nil)
	_, err := g.SubmitPatient(context.Background(), patients.Payload{Telefono: "5551234567"})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, pgErr.Message, we.Error())
	assert.Equal(t, "submit_patient", we.Op)
	assert.False(t, we.SlotTaken())
	assert.ErrorIs(t, err, pgErr)
}

func TestSubmitPatientSuccess(t *testing.T) {
	repo := &stubPatients{}
	g := newTestGateway(repo, nil, nil, nil)
	p, err := g.SubmitPatient(context.Background(), patients.Payload{Nombre: "Ana Ruiz", Telefono: "5551234567"})
	require.NoError(t, err)
	assert.Equal(t, "p-new", p.ID)
	require.NotNil(t, repo.upserted)
	assert.Equal(t, "Ana Ruiz", repo.upserted.Nombre)
}

func TestCreateAppointmentSlotCollision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO appointments`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "appointments_scheduled_slot_key"`})

	reg := prometheus.NewRegistry()
	m := metrics.NewGatewayMetrics(reg)
	g := New(&stubPatients{}, appointments.NewPostgresRepositoryWithDB(mock), &stubAnalyses{}, logging.NewWithWriter("error", &bytes.Buffer{}), WithMetrics(m))

	_, err = g.CreateAppointment(context.Background(), appointments.Payload{
		Telefono:  "5551234567",
		FechaCita: "2026-10-22",
		HoraCita:  "10:30",
		Status:    appointments.StatusScheduled,
	})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.True(t, we.SlotTaken())
	assert.Equal(t, appointments.SlotTakenMessage, we.Error())
	assert.ErrorIs(t, err, appointments.ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentOtherErrorPassesMessage(t *testing.T) {
	g := newTestGateway(nil, &stubAppointments{err: errors.New("appointments: insert: network unreachable")}, nil, nil)
	_, err := g.CreateAppointment(context.Background(), appointments.Payload{FechaCita: "2026-10-22", HoraCita: "10:30"})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.False(t, we.SlotTaken())
	assert.Equal(t, "appointments: insert: network unreachable", we.Error())
}

func TestFetchBookedSlotsFailsOpen(t *testing.T) {
	g := newTestGateway(nil, &stubAppointments{err: errors.New("timeout")}, nil, nil)
	slots := g.FetchBookedSlots(context.Background(), "2026-10-18", "2026-10-25")
	require.NotNil(t, slots)
	assert.Empty(t, slots)

	want := []appointments.Slot{{FechaCita: "2026-10-20", HoraCita: "09:00"}}
	g = newTestGateway(nil, &stubAppointments{slots: want}, nil, nil)
	assert.Equal(t, want, g.FetchBookedSlots(context.Background(), "2026-10-18", "2026-10-25"))
}

func TestFetchLatestAnalysis(t *testing.T) {
	patient := &patients.Patient{ID: "p-1", Payload: patients.Payload{Nombre: "Ana Ruiz"}}
	analysis := &analyses.Analysis{ID: "an-1", PatientID: "p-1", NivelUrgencia: "alta", AnalysisData: []byte(`{"resumen":"ok"}`)}
	scale := &analyses.Measurement{ID: "m-1", PatientID: "p-1", DeviceType: analyses.DeviceScale}

	g := newTestGateway(
		&stubPatients{byID: map[string]*patients.Patient{"p-1": patient}},
		nil,
		&stubAnalyses{latest: analysis, measurements: map[string]*analyses.Measurement{analyses.DeviceScale: scale}},
		nil,
	)
	got := g.FetchLatestAnalysis(context.Background())
	require.NotNil(t, got)
	assert.Equal(t, patient, got.Patient)
	assert.Equal(t, analysis, got.Analysis)
	assert.Equal(t, scale, got.Scale)
	assert.Nil(t, got.BloodPressure)
}

func TestFetchLatestAnalysisShortCircuits(t *testing.T) {
	assert.Nil(t, newTestGateway(nil, nil, &stubAnalyses{}, nil).FetchLatestAnalysis(context.Background()))
	assert.Nil(t, newTestGateway(nil, nil, &stubAnalyses{latestErr: errors.New("down")}, nil).FetchLatestAnalysis(context.Background()))

	orphan := &analyses.Analysis{ID: "an-2", PatientID: "missing"}
	assert.Nil(t, newTestGateway(nil, nil, &stubAnalyses{latest: orphan}, nil).FetchLatestAnalysis(context.Background()))
}

func TestFetchLatestAnalysisMeasurementsBestEffort(t *testing.T) {
	patient := &patients.Patient{ID: "p-1"}
	var buf bytes.Buffer
	g := newTestGateway(
		&stubPatients{byID: map[string]*patients.Patient{"p-1": patient}},
		nil,
		&stubAnalyses{latest: &analyses.Analysis{ID: "an-1", PatientID: "p-1"}, measureErr: errors.New("boom")},
		&buf,
	)
	got := g.FetchLatestAnalysis(context.Background())
	require.NotNil(t, got)
	assert.Nil(t, got.Scale)
	assert.Nil(t, got.BloodPressure)
	assert.Contains(t, buf.String(), "measurement lookup failed")
}

type fakeStream struct {
	ch     chan analyses.Analysis
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (f *fakeStream) Events() <-chan analyses.Analysis { return f.ch }

func (f *fakeStream) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.ch)
	})
	return nil
}

type fakeSource struct {
	stream *fakeStream
	err    error
}

func (f *fakeSource) Open(context.Context) (AnalysisStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func TestSubscribeToAnalysesInvokesCallback(t *testing.T) {
	stream := &fakeStream{ch: make(chan analyses.Analysis, 2)}
	g := newTestGateway(nil, nil, nil, nil, WithRealtime(&fakeSource{stream: stream}))

	var mu sync.Mutex
	var got []string
	sub, err := g.SubscribeToAnalyses(context.Background(), func(a analyses.Analysis) {
		mu.Lock()
		got = append(got, a.ID)
		mu.Unlock()
	})
	require.NoError(t, err)

	stream.ch <- analyses.Analysis{ID: "an-1"}
	stream.ch <- analyses.Analysis{ID: "an-2"}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	select {
	case <-sub.Done():
	default:
		t.Fatal("subscription still running after Close")
	}
	assert.True(t, stream.closed)
}

func TestSubscriptionCloseWaitsForInFlightCallback(t *testing.T) {
	stream := &fakeStream{ch: make(chan analyses.Analysis, 1)}
	g := newTestGateway(nil, nil, nil, nil, WithRealtime(&fakeSource{stream: stream}))

	entered := make(chan struct{})
	release := make(chan struct{})
	sub, err := g.SubscribeToAnalyses(context.Background(), func(analyses.Analysis) {
		close(entered)
		<-release
	})
	require.NoError(t, err)

	stream.ch <- analyses.Analysis{ID: "an-1"}
	<-entered

	closed := make(chan struct{})
	go func() {
		_ = sub.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while the callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the callback finished")
	}
}

func TestSubscriptionClosedFromCallbackGoroutine(t *testing.T) {
	stream := &fakeStream{ch: make(chan analyses.Analysis, 1)}
	g := newTestGateway(nil, nil, nil, nil, WithRealtime(&fakeSource{stream: stream}))

	var sub *Subscription
	ready := make(chan struct{})
	var err error
	sub, err = g.SubscribeToAnalyses(context.Background(), func(analyses.Analysis) {
		<-ready
		go sub.Close()
	})
	require.NoError(t, err)
	close(ready)

	stream.ch <- analyses.Analysis{ID: "an-1"}
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop after Close was handed off from the callback")
	}
}

func TestSubscribeToAnalysesErrors(t *testing.T) {
	g := newTestGateway(nil, nil, nil, nil)
	_, err := g.SubscribeToAnalyses(context.Background(), func(analyses.Analysis) {})
	assert.ErrorIs(t, err, ErrRealtimeUnavailable)

	g = newTestGateway(nil, nil, nil, nil, WithRealtime(&fakeSource{err: errors.New("dial")}))
	_, err = g.SubscribeToAnalyses(context.Background(), func(analyses.Analysis) {})
	assert.EqualError(t, err, "dial")
}
