// Package survey holds the patient-intake workflow: the in-progress record, per-step
// validation, navigation between the 18 screens, returning-patient auto-fill and the
// conversion of a finished record into store rows. Nothing here performs I/O.
package survey

// Unknown is the answer recorded when the patient does not know their blood type or Rh factor.
const Unknown = "unknown"

// DefaultIntensidadDolor is the pain intensity a fresh record starts with.
const DefaultIntensidadDolor = 5

// Sex, blood type and Rh factor answers.
const (
	SexoMasculino = "masculino"
	SexoFemenino  = "femenino"

	TipoSangreA  = "A"
	TipoSangreB  = "B"
	TipoSangreO  = "O"
	TipoSangreAB = "AB"

	FactorRhPositivo = "+"
	FactorRhNegativo = "-"
)

// Record is the data collected by one intake session.
type Record struct {
	Nombre          string `json:"nombre"`
	Apellido        string `json:"apellido"`
	Telefono        string `json:"telefono"`
	FechaNacimiento string `json:"fechaNacimiento"`
	Sexo            string `json:"sexo"`
	Altura          string `json:"altura"`
	TipoSangre      string `json:"tipoSangre"`
	FactorRh        string `json:"factorRh"`
	FechaCita       string `json:"fechaCita"`
	HoraCita        string `json:"horaCita"`
	HorarioDolor    string `json:"horarioDolor"`
	InicioDolor     string `json:"inicioDolor"`
	IntensidadDolor int    `json:"intensidadDolor"`

	EnfermedadesPreexistentes string `json:"enfermedadesPreexistentes"`
	Alergias                  string `json:"alergias"`
	HistorialFamiliar         string `json:"historialFamiliar"`
	MedicamentosActuales      string `json:"medicamentosActuales"`
	DispositivosImplantados   string `json:"dispositivosImplantados"`
}

// NewRecord returns the empty record a session starts from.
func NewRecord() Record {
	return Record{IntensidadDolor: DefaultIntensidadDolor}
}
