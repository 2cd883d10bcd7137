package intake

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/survey"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler serves the survey UI.
type Handler struct {
	service *Service
	logger  *logging.Logger
	now     func() time.Time
}

// NewHandler creates the intake HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("intake: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

type lookupResponse struct {
	Returning bool          `json:"returning"`
	Record    survey.Record `json:"record"`
}

// Lookup handles GET /api/patients/lookup?telefono=.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	telefono := r.URL.Query().Get("telefono")
	if !survey.ValidateTelefono(telefono) {
		writeError(w, http.StatusBadRequest, survey.Messages[survey.FieldTelefono])
		return
	}
	sess := h.newSession()
	sess.Update(func(rec *survey.Record) { rec.Telefono = telefono })
	if !h.service.Lookup(r.Context(), sess) {
		writeError(w, http.StatusNotFound, "patient not found")
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Returning: sess.IsReturningPatient(), Record: sess.Record()})
}

// BookedSlots handles GET /api/slots?start=&end=.
func (h *Handler) BookedSlots(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if !isDate(start) || !isDate(end) {
		writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD dates")
		return
	}
	slots := h.service.BookedSlots(r.Context(), start, end)
	if slots == nil {
		slots = []appointments.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

type validateRequest struct {
	Step   int           `json:"step"`
	Record survey.Record `json:"record"`
}

type validateResponse struct {
	Step     int               `json:"step"`
	StepName string            `json:"step_name"`
	Valid    bool              `json:"valid"`
	Messages map[string]string `json:"messages"`
}

// Validate handles POST /api/intake/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	now := h.now()
	writeJSON(w, http.StatusOK, validateResponse{
		Step:     req.Step,
		StepName: survey.StepName(req.Step),
		Valid:    survey.ValidateStepAt(req.Step, req.Record, now),
		Messages: survey.FieldErrors(req.Step, req.Record, now),
	})
}

type submitRequest struct {
	Record survey.Record `json:"record"`
}

type submitFailure struct {
	Error        string            `json:"error"`
	PatientSaved bool              `json:"patient_saved"`
	Messages     map[string]string `json:"messages,omitempty"`
}

// Submit handles POST /api/intake/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sess := h.newSession()
	sess.Update(func(rec *survey.Record) { *rec = req.Record })
	sess.JumpTo(survey.StepEnviar)

	result, err := h.service.Submit(r.Context(), sess)
	if err == nil {
		writeJSON(w, http.StatusCreated, result)
		return
	}

	var serr *SubmitError
	switch {
	case errors.Is(err, ErrIncomplete):
		writeJSON(w, http.StatusUnprocessableEntity, submitFailure{
			Error:    "record incomplete",
			Messages: survey.FieldErrors(survey.StepEnviar, req.Record, h.now()),
		})
	case errors.Is(err, appointments.ErrSlotTaken) && errors.As(err, &serr):
		writeJSON(w, http.StatusConflict, submitFailure{Error: serr.Message(), PatientSaved: serr.PatientSaved})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusBadGateway, submitFailure{Error: serr.Message(), PatientSaved: serr.PatientSaved})
	default:
		h.logger.Error("unexpected submit failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) newSession() *survey.Session {
	return survey.NewSession(survey.WithClock(h.now))
}

func isDate(v string) bool {
	_, err := time.Parse(time.DateOnly, v)
	return err == nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
