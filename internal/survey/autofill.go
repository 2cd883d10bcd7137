package survey

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wolfman30/clinic-intake/internal/patients"
)

// Field is an optional column value that keeps "absent" apart from a stored NULL.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some wraps a present value.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Null marks a column that exists but holds NULL.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Present reports whether the field carries a non-NULL value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// IsNull reports whether the field was supplied as NULL.
func (f Field[T]) IsNull() bool {
	return f.Set && f.Null
}

// UnmarshalJSON records presence; a JSON null becomes Null.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.Value = zero
		f.Null = true
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

// PatientSource is a previously stored patient used to pre-fill a session.
type PatientSource struct {
	Nombre                    Field[string]  `json:"nombre"`
	Sexo                      Field[string]  `json:"sexo"`
	FechaNacimiento           Field[string]  `json:"fecha_nacimiento"`
	Altura                    Field[float64] `json:"altura"`
	TipoSangre                Field[string]  `json:"tipo_sangre"`
	FactorRh                  Field[string]  `json:"factor_rh"`
	HorarioDolor              Field[string]  `json:"horario_dolor"`
	InicioDolor               Field[string]  `json:"inicio_dolor"`
	IntensidadDolor           Field[int]     `json:"intensidad_dolor"`
	EnfermedadesPreexistentes Field[string]  `json:"enfermedades_preexistentes"`
	Alergias                  Field[string]  `json:"alergias"`
	HistorialFamiliar         Field[string]  `json:"historial_familiar"`
	MedicamentosActuales      Field[string]  `json:"medicamentos_actuales"`
	DispositivosImplantados   Field[string]  `json:"dispositivos_implantados"`
}

// SourceFromPatient converts a stored row; every column is present, nullable ones may be Null.
func SourceFromPatient(p *patients.Patient) PatientSource {
	if p == nil {
		return PatientSource{}
	}
	src := PatientSource{
		Nombre:                    Some(p.Nombre),
		Sexo:                      Some(p.Sexo),
		FechaNacimiento:           Some(p.FechaNacimiento),
		TipoSangre:                nullableField(p.TipoSangre),
		FactorRh:                  nullableField(p.FactorRh),
		HorarioDolor:              Some(p.HorarioDolor),
		InicioDolor:               Some(p.InicioDolor),
		IntensidadDolor:           Some(p.IntensidadDolor),
		EnfermedadesPreexistentes: nullableField(p.EnfermedadesPreexistentes),
		Alergias:                  nullableField(p.Alergias),
		HistorialFamiliar:         nullableField(p.HistorialFamiliar),
		MedicamentosActuales:      nullableField(p.MedicamentosActuales),
		DispositivosImplantados:   nullableField(p.DispositivosImplantados),
	}
	if p.Altura != nil {
		src.Altura = Some(*p.Altura)
	} else {
		src.Altura = Null[float64]()
	}
	return src
}

func nullableField(v *string) Field[string] {
	if v == nil {
		return Null[string]()
	}
	return Some(*v)
}

// AutoFill merges a stored patient into the session and marks it as a returning patient.
// The full name is split on whitespace into first name and the remaining surnames; other
// fields keep their current value when the source has nothing for them. The phone number
// is never touched. Applying the same source twice changes nothing further.
func (s *Session) AutoFill(src PatientSource) {
	d := &s.data
	if src.Nombre.Present() && strings.TrimSpace(src.Nombre.Value) != "" {
		d.Nombre, d.Apellido = splitFullName(src.Nombre.Value)
	}
	d.Sexo = textOr(src.Sexo, d.Sexo)
	d.FechaNacimiento = textOr(src.FechaNacimiento, d.FechaNacimiento)
	if src.Altura.Present() {
		d.Altura = strconv.FormatFloat(src.Altura.Value, 'f', -1, 64)
	}
	d.TipoSangre = answerOr(src.TipoSangre, d.TipoSangre)
	d.FactorRh = answerOr(src.FactorRh, d.FactorRh)
	d.HorarioDolor = textOr(src.HorarioDolor, d.HorarioDolor)
	d.InicioDolor = textOr(src.InicioDolor, d.InicioDolor)
	if src.IntensidadDolor.Present() && src.IntensidadDolor.Value != 0 {
		d.IntensidadDolor = src.IntensidadDolor.Value
	}
	d.EnfermedadesPreexistentes = textOr(src.EnfermedadesPreexistentes, d.EnfermedadesPreexistentes)
	d.Alergias = textOr(src.Alergias, d.Alergias)
	d.HistorialFamiliar = textOr(src.HistorialFamiliar, d.HistorialFamiliar)
	d.MedicamentosActuales = textOr(src.MedicamentosActuales, d.MedicamentosActuales)
	d.DispositivosImplantados = textOr(src.DispositivosImplantados, d.DispositivosImplantados)
	s.returning = true
}

func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func textOr(f Field[string], fallback string) string {
	if f.Present() && f.Value != "" {
		return f.Value
	}
	return fallback
}

// answerOr maps a stored NULL to Unknown, the answer that was saved as NULL.
func answerOr(f Field[string], fallback string) string {
	if f.Present() && f.Value != "" {
		return f.Value
	}
	if f.IsNull() {
		return Unknown
	}
	return fallback
}
