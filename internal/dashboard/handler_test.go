package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-intake/internal/analyses"
	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/gateway"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/patients"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

type memoryPatients map[string]*patients.Patient

func (m memoryPatients) GetByPhone(context.Context, string) (*patients.Patient, error) {
	return nil, patients.ErrPatientNotFound
}

func (m memoryPatients) GetByID(_ context.Context, id string) (*patients.Patient, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, patients.ErrPatientNotFound
}

func (m memoryPatients) Upsert(context.Context, *patients.Payload) (*patients.Patient, error) {
	return nil, nil
}

type noAppointments struct{}

func (noAppointments) Create(context.Context, *appointments.Payload) (*appointments.Appointment, error) {
	return nil, nil
}

func (noAppointments) BookedSlots(context.Context, string, string) ([]appointments.Slot, error) {
	return nil, nil
}

type memoryAnalyses struct {
	latest *analyses.Analysis
}

func (m *memoryAnalyses) Latest(context.Context) (*analyses.Analysis, error) {
	if m.latest == nil {
		return nil, analyses.ErrAnalysisNotFound
	}
	return m.latest, nil
}

func (m *memoryAnalyses) LatestMeasurement(context.Context, string, string) (*analyses.Measurement, error) {
	return nil, analyses.ErrMeasurementNotFound
}

type chanStream struct {
	ch chan analyses.Analysis
}

func (s *chanStream) Events() <-chan analyses.Analysis { return s.ch }

func (s *chanStream) Close() error {
	defer func() { _ = recover() }()
	close(s.ch)
	return nil
}

type chanSource struct {
	stream *chanStream
}

func (s *chanSource) Open(context.Context) (gateway.AnalysisStream, error) {
	return s.stream, nil
}

func newTestDashboard(t *testing.T, an *memoryAnalyses, src *chanSource) (*Handler, *Hub) {
	t.Helper()
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	pats := memoryPatients{"p-1": {ID: "p-1", Payload: patients.Payload{Nombre: "Ana Ruiz", Telefono: "5551234567"}}}
	var opts []gateway.Option
	if src != nil {
		opts = append(opts, gateway.WithRealtime(src))
	}
	gw := gateway.New(pats, noAppointments{}, an, logger, opts...)
	hub := NewHub(metrics.NewDashboardMetrics(prometheus.NewRegistry()), logger)
	return NewHandler(gw, hub, nil, logger), hub
}

func TestLatestNoContent(t *testing.T) {
	h, _ := newTestDashboard(t, &memoryAnalyses{}, nil)
	rec := httptest.NewRecorder()
	h.Latest(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/latest", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestLatestReturnsBundle(t *testing.T) {
	an := &memoryAnalyses{latest: &analyses.Analysis{ID: "an-1", PatientID: "p-1", NivelUrgencia: "media", AnalysisData: json.RawMessage(`{"score":3}`)}}
	h, _ := newTestDashboard(t, an, nil)

	rec := httptest.NewRecorder()
	h.Latest(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body gateway.LatestAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "an-1", body.Analysis.ID)
	assert.Equal(t, "Ana Ruiz", body.Patient.Nombre)
	assert.JSONEq(t, `{"score":3}`, string(body.Analysis.AnalysisData))
	assert.Nil(t, body.Scale)
}

func TestStreamPushesInsertedAnalyses(t *testing.T) {
	src := &chanSource{stream: &chanStream{ch: make(chan analyses.Analysis, 1)}}
	h, hub := newTestDashboard(t, &memoryAnalyses{}, src)

	srv := httptest.NewServer(http.HandlerFunc(h.Stream))
	defer srv.Close()

	sub, err := h.Relay(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	src.stream.ch <- analyses.Analysis{ID: "an-7", PatientID: "p-1", NivelUrgencia: "alta"}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, EventAnalysisInserted, event.Type)
	require.NotNil(t, event.Data)
	assert.Equal(t, "an-7", event.Data.Analysis.ID)
	assert.Equal(t, "p-1", event.Data.Patient.ID)
}

func TestStreamSkipsOrphanAnalyses(t *testing.T) {
	src := &chanSource{stream: &chanStream{ch: make(chan analyses.Analysis, 2)}}
	h, hub := newTestDashboard(t, &memoryAnalyses{}, src)
	c := hub.register()

	sub, err := h.Relay(context.Background())
	require.NoError(t, err)

	src.stream.ch <- analyses.Analysis{ID: "an-x", PatientID: "nobody"}
	src.stream.ch <- analyses.Analysis{ID: "an-y", PatientID: "p-1"}

	select {
	case msg := <-c.send:
		assert.Contains(t, string(msg), `"an-y"`)
		assert.NotContains(t, string(msg), `"an-x"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame broadcast")
	}
	require.NoError(t, sub.Close())
}

func TestHubDropsFramesForSlowClients(t *testing.T) {
	hub := NewHub(nil, logging.NewWithWriter("error", &bytes.Buffer{}))
	hub.buffer = 1
	c := hub.register()

	hub.Broadcast(Event{Type: EventAnalysisInserted})
	hub.Broadcast(Event{Type: EventAnalysisInserted})
	assert.Len(t, c.send, 1)

	hub.unregister(c)
	hub.unregister(c)
	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-c.send
	assert.True(t, open)
	_, open = <-c.send
	assert.False(t, open)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://clinic.example"})
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stream", nil)
	req.Header.Set("Origin", "https://clinic.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker(nil)(req))
	assert.True(t, originChecker([]string{"*"})(req))
}
