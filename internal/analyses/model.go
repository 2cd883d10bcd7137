package analyses

import (
	"encoding/json"
	"errors"
	"time"
)

// Measurement device types recorded by the clinic's connected devices.
const (
	DeviceScale         = "scale"
	DeviceBloodPressure = "blood_pressure"
)

var (
	// ErrAnalysisNotFound is returned when no analysis row matches
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrMeasurementNotFound is returned when a patient has no measurement for a device type
	ErrMeasurementNotFound = errors.New("measurement not found")
)

// Analysis is an AI triage result produced outside this service.
type Analysis struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patient_id"`
	AnalysisData  json.RawMessage `json:"analysis_data"`
	NivelUrgencia string          `json:"nivel_urgencia"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Measurement is a single device reading for a patient.
type Measurement struct {
	ID         string          `json:"id"`
	PatientID  string          `json:"patient_id"`
	DeviceType string          `json:"device_type"`
	Data       json.RawMessage `json:"data"`
	MeasuredAt time.Time       `json:"measured_at"`
}
