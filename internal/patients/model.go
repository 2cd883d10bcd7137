package patients

import (
	"strings"
	"time"
)

// Payload is the patient row written on submission. Telefono is the identity key.
type Payload struct {
	Nombre                    string   `json:"nombre"`
	Telefono                  string   `json:"telefono"`
	FechaNacimiento           string   `json:"fecha_nacimiento"`
	Sexo                      string   `json:"sexo"`
	Altura                    *float64 `json:"altura"`
	TipoSangre                *string  `json:"tipo_sangre"`
	FactorRh                  *string  `json:"factor_rh"`
	HorarioDolor              string   `json:"horario_dolor"`
	InicioDolor               string   `json:"inicio_dolor"`
	IntensidadDolor           int      `json:"intensidad_dolor"`
	EnfermedadesPreexistentes *string  `json:"enfermedades_preexistentes"`
	Alergias                  *string  `json:"alergias"`
	HistorialFamiliar         *string  `json:"historial_familiar"`
	MedicamentosActuales      *string  `json:"medicamentos_actuales"`
	DispositivosImplantados   *string  `json:"dispositivos_implantados"`
}

// Patient is a persisted patient row.
type Patient struct {
	ID string `json:"id"`
	Payload
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePhone strips everything except ASCII digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
