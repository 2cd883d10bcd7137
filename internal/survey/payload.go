package survey

import (
	"strings"

	"github.com/wolfman30/clinic-intake/internal/appointments"
	"github.com/wolfman30/clinic-intake/internal/patients"
)

// ToPatientPayload converts a finished record into the patient row keyed by phone.
func ToPatientPayload(r Record) patients.Payload {
	return patients.Payload{
		Nombre:                    strings.TrimSpace(r.Nombre) + " " + strings.TrimSpace(r.Apellido),
		Telefono:                  patients.NormalizePhone(r.Telefono),
		FechaNacimiento:           r.FechaNacimiento,
		Sexo:                      r.Sexo,
		Altura:                    alturaValue(r.Altura),
		TipoSangre:                answerValue(r.TipoSangre),
		FactorRh:                  answerValue(r.FactorRh),
		HorarioDolor:              r.HorarioDolor,
		InicioDolor:               strings.TrimSpace(r.InicioDolor),
		IntensidadDolor:           r.IntensidadDolor,
		EnfermedadesPreexistentes: optionalText(r.EnfermedadesPreexistentes),
		Alergias:                  optionalText(r.Alergias),
		HistorialFamiliar:         optionalText(r.HistorialFamiliar),
		MedicamentosActuales:      optionalText(r.MedicamentosActuales),
		DispositivosImplantados:   optionalText(r.DispositivosImplantados),
	}
}

// ToAppointmentPayload converts a finished record into a scheduled appointment row.
func ToAppointmentPayload(r Record) appointments.Payload {
	return appointments.Payload{
		Telefono:  patients.NormalizePhone(r.Telefono),
		FechaCita: r.FechaCita,
		HoraCita:  r.HoraCita,
		Status:    appointments.StatusScheduled,
	}
}

// alturaValue is nil for unparseable input and for zero.
func alturaValue(raw string) *float64 {
	num, ok := parseAltura(raw)
	if !ok || num == 0 {
		return nil
	}
	return &num
}

// answerValue stores the unknown marker as NULL. An unanswered field is also NULL;
// a validated record never has one, but records converted before validation do.
func answerValue(v string) *string {
	if v == Unknown || v == "" {
		return nil
	}
	return &v
}

func optionalText(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
