package survey

// TotalSteps is the number of screens in the intake sequence.
const TotalSteps = 18

// Screen order.
const (
	StepBienvenida = iota
	StepTelefono
	StepNombre
	StepFechaNacimiento
	StepSexo
	StepAltura
	StepTipoSangre
	StepFactorRh
	StepHorarioDolor
	StepInicioDolor
	StepIntensidadDolor
	StepEnfermedades
	StepAlergias
	StepHistorialFamiliar
	StepMedicamentos
	StepDispositivos
	StepCita
	StepEnviar
)

var stepNames = [TotalSteps]string{
	"bienvenida",
	"telefono",
	"nombre",
	"fecha_nacimiento",
	"sexo",
	"altura",
	"tipo_sangre",
	"factor_rh",
	"horario_dolor",
	"inicio_dolor",
	"intensidad_dolor",
	"enfermedades",
	"alergias",
	"historial_familiar",
	"medicamentos",
	"dispositivos",
	"cita",
	"enviar",
}

// StepName labels a screen; out-of-range steps return "".
func StepName(step int) string {
	if !InRange(step) {
		return ""
	}
	return stepNames[step]
}

// InRange reports whether step is a real screen index.
func InRange(step int) bool {
	return step >= 0 && step < TotalSteps
}
