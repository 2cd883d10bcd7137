package survey

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wolfman30/clinic-intake/internal/patients"
)

// Field keys used by Messages and FieldErrors.
const (
	FieldNombre          = "nombre"
	FieldApellido        = "apellido"
	FieldTelefono        = "telefono"
	FieldFechaNacimiento = "fechaNacimiento"
	FieldSexo            = "sexo"
	FieldAltura          = "altura"
	FieldTipoSangre      = "tipoSangre"
	FieldFactorRh        = "factorRh"
	FieldCita            = "cita"
	FieldHorarioDolor    = "horarioDolor"
	FieldInicioDolor     = "inicioDolor"
	FieldIntensidadDolor = "intensidadDolor"
)

// Messages holds the text shown next to a field that fails validation.
var Messages = map[string]string{
	FieldNombre:          "El nombre debe tener entre 2 y 50 caracteres",
	FieldApellido:        "El apellido debe tener entre 2 y 50 caracteres",
	FieldTelefono:        "El número de teléfono debe tener 10 dígitos",
	FieldFechaNacimiento: "Por favor, seleccione una fecha válida",
	FieldSexo:            "Por favor, seleccione su sexo",
	FieldAltura:          "La altura debe estar entre 50 y 250 cm",
	FieldTipoSangre:      "Por favor, seleccione un tipo de sangre",
	FieldFactorRh:        "Por favor, seleccione el factor RH",
	FieldCita:            "Por favor, seleccione una fecha y hora para su cita",
	FieldHorarioDolor:    "Por favor, seleccione el horario del dolor",
	FieldInicioDolor:     "Por favor, ingrese al menos 1 carácter",
	FieldIntensidadDolor: "La intensidad debe estar entre 1 y 10",
}

const accentedLetters = "áéíóúñÁÉÍÓÚÑüÜ"

// ValidateNombre accepts 2-50 characters of letters and spaces after trimming.
func ValidateNombre(value string) bool {
	return validPersonName(value)
}

// ValidateApellido applies the same rule as ValidateNombre.
func ValidateApellido(value string) bool {
	return validPersonName(value)
}

func validPersonName(value string) bool {
	cleaned := strings.TrimSpace(value)
	n := utf8.RuneCountInString(cleaned)
	if n < 2 || n > 50 {
		return false
	}
	for _, r := range cleaned {
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case unicode.IsSpace(r):
		return true
	default:
		return strings.ContainsRune(accentedLetters, r)
	}
}

// ValidateTelefono requires exactly 10 digits once everything else is stripped.
func ValidateTelefono(value string) bool {
	return len(patients.NormalizePhone(value)) == 10
}

// ValidateFechaNacimiento checks a YYYY-MM-DD date from 1900 onwards that is strictly
// before now's calendar day. Day-of-month is range checked (1-31), not checked per month.
func ValidateFechaNacimiento(value string, now time.Time) bool {
	if value == "" {
		return false
	}
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return false
	}
	if year < 1900 || month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	nowYear, nowMonth, nowDay := now.Date()
	switch {
	case year != nowYear:
		return year < nowYear
	case month != int(nowMonth):
		return month < int(nowMonth)
	default:
		return day < nowDay
	}
}

// ValidateSexo accepts masculino or femenino.
func ValidateSexo(value string) bool {
	return value == SexoMasculino || value == SexoFemenino
}

// ValidateAltura accepts a height in centimeters between 50 and 250 inclusive.
func ValidateAltura(value string) bool {
	num, ok := parseAltura(value)
	return ok && num >= 50 && num <= 250
}

// parseAltura requires the whole trimmed value to be a number; "170cm" does not parse.
func parseAltura(value string) (float64, bool) {
	num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// ValidateTipoSangre accepts A, B, O, AB or Unknown.
func ValidateTipoSangre(value string) bool {
	switch value {
	case TipoSangreA, TipoSangreB, TipoSangreO, TipoSangreAB, Unknown:
		return true
	}
	return false
}

// ValidateFactorRh accepts +, - or Unknown.
func ValidateFactorRh(value string) bool {
	switch value {
	case FactorRhPositivo, FactorRhNegativo, Unknown:
		return true
	}
	return false
}

// ValidateCita requires both the appointment date and time.
func ValidateCita(fechaCita, horaCita string) bool {
	return strings.TrimSpace(fechaCita) != "" && strings.TrimSpace(horaCita) != ""
}

// ValidateHorarioDolor requires a non-blank answer.
func ValidateHorarioDolor(value string) bool {
	return strings.TrimSpace(value) != ""
}

// ValidateInicioDolor requires at least one non-space character.
func ValidateInicioDolor(value string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(value)) >= 1
}

// ValidateIntensidadDolor accepts 1 through 10.
func ValidateIntensidadDolor(value int) bool {
	return value >= 1 && value <= 10
}

// ValidateStep reports whether r satisfies the rule for step, using the current time.
func ValidateStep(step int, r Record) bool {
	return ValidateStepAt(step, r, time.Now())
}

// ValidateStepAt is ValidateStep with an explicit clock for the birth date rule.
// Steps outside the sequence are never valid.
func ValidateStepAt(step int, r Record, now time.Time) bool {
	switch step {
	case StepBienvenida:
		return true
	case StepTelefono:
		return ValidateTelefono(r.Telefono)
	case StepNombre:
		return ValidateNombre(r.Nombre) && ValidateApellido(r.Apellido)
	case StepFechaNacimiento:
		return ValidateFechaNacimiento(r.FechaNacimiento, now)
	case StepSexo:
		return ValidateSexo(r.Sexo)
	case StepAltura:
		return ValidateAltura(r.Altura)
	case StepTipoSangre:
		return ValidateTipoSangre(r.TipoSangre)
	case StepFactorRh:
		return ValidateFactorRh(r.FactorRh)
	case StepHorarioDolor:
		return ValidateHorarioDolor(r.HorarioDolor)
	case StepInicioDolor:
		return ValidateInicioDolor(r.InicioDolor)
	case StepIntensidadDolor:
		return ValidateIntensidadDolor(r.IntensidadDolor)
	case StepEnfermedades, StepAlergias, StepHistorialFamiliar, StepMedicamentos, StepDispositivos:
		return true
	case StepCita:
		return ValidateCita(r.FechaCita, r.HoraCita)
	case StepEnviar:
		return ValidateAllRequiredAt(r, now)
	default:
		return false
	}
}

// ValidateAllRequired checks every required field at once, as the final screen does.
func ValidateAllRequired(r Record) bool {
	return ValidateAllRequiredAt(r, time.Now())
}

// ValidateAllRequiredAt is ValidateAllRequired with an explicit clock.
func ValidateAllRequiredAt(r Record, now time.Time) bool {
	return len(requiredFieldErrors(r, now)) == 0
}

// FieldErrors returns the message for each field that blocks step, keyed by field.
// The final step reports every failing required field.
func FieldErrors(step int, r Record, now time.Time) map[string]string {
	all := requiredFieldErrors(r, now)
	out := map[string]string{}
	for _, field := range stepFields(step) {
		if msg, ok := all[field]; ok {
			out[field] = msg
		}
	}
	return out
}

func stepFields(step int) []string {
	switch step {
	case StepTelefono:
		return []string{FieldTelefono}
	case StepNombre:
		return []string{FieldNombre, FieldApellido}
	case StepFechaNacimiento:
		return []string{FieldFechaNacimiento}
	case StepSexo:
		return []string{FieldSexo}
	case StepAltura:
		return []string{FieldAltura}
	case StepTipoSangre:
		return []string{FieldTipoSangre}
	case StepFactorRh:
		return []string{FieldFactorRh}
	case StepHorarioDolor:
		return []string{FieldHorarioDolor}
	case StepInicioDolor:
		return []string{FieldInicioDolor}
	case StepIntensidadDolor:
		return []string{FieldIntensidadDolor}
	case StepCita:
		return []string{FieldCita}
	case StepEnviar:
		return []string{
			FieldNombre, FieldApellido, FieldTelefono, FieldFechaNacimiento, FieldSexo, FieldAltura,
			FieldTipoSangre, FieldFactorRh, FieldCita, FieldHorarioDolor, FieldInicioDolor, FieldIntensidadDolor,
		}
	default:
		return nil
	}
}

func requiredFieldErrors(r Record, now time.Time) map[string]string {
	checks := []struct {
		field string
		ok    bool
	}{
		{FieldNombre, ValidateNombre(r.Nombre)},
		{FieldApellido, ValidateApellido(r.Apellido)},
		{FieldTelefono, ValidateTelefono(r.Telefono)},
		{FieldFechaNacimiento, ValidateFechaNacimiento(r.FechaNacimiento, now)},
		{FieldSexo, ValidateSexo(r.Sexo)},
		{FieldAltura, ValidateAltura(r.Altura)},
		{FieldTipoSangre, ValidateTipoSangre(r.TipoSangre)},
		{FieldFactorRh, ValidateFactorRh(r.FactorRh)},
		{FieldCita, ValidateCita(r.FechaCita, r.HoraCita)},
		{FieldHorarioDolor, ValidateHorarioDolor(r.HorarioDolor)},
		{FieldInicioDolor, ValidateInicioDolor(r.InicioDolor)},
		{FieldIntensidadDolor, ValidateIntensidadDolor(r.IntensidadDolor)},
	}
	errs := map[string]string{}
	for _, c := range checks {
		if !c.ok {
			errs[c.field] = Messages[c.field]
		}
	}
	return errs
}
