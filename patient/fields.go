package patient

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidRecord is returned when a record violates a form constraint.
var ErrInvalidRecord = errors.New("invalid patient record")

// Kind is how a field is entered on the form.
type Kind string

const (
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindChoice Kind = "choice"
)

// Field describes one input of the risk form.
type Field struct {
	Name    string
	Label   string
	Help    string
	Kind    Kind
	Min     float64
	Max     float64
	Step    float64
	Choices []string
	Default string
	// Categorical fields are one-hot encoded; everything else is numeric.
	Categorical bool
}

var fields = []Field{
	{
		Name: FieldAge, Label: "Age", Help: "Age of the person in years",
		Kind: KindInt, Min: 18, Max: 100, Step: 1, Default: "50",
	},
	{
		Name: FieldSex, Label: "Sex", Help: "Biological sex: M = Male, F = Female",
		Kind: KindChoice, Choices: []string{"M", "F"}, Default: "M", Categorical: true,
	},
	{
		Name: FieldChestPainType, Label: "Chest Pain Type",
		Help: "ATA: Atypical Angina, NAP: Non-Anginal Pain, ASY: Asymptomatic, TA: Typical Angina",
		Kind: KindChoice, Choices: []string{"ATA", "NAP", "ASY", "TA"}, Default: "ATA", Categorical: true,
	},
	{
		Name: FieldRestingBP, Label: "Resting Blood Pressure (mm Hg)", Help: "Resting blood pressure in mm Hg",
		Kind: KindInt, Min: 80, Max: 200, Step: 1, Default: "120",
	},
	{
		Name: FieldCholesterol, Label: "Cholesterol (mg/dl)", Help: "Serum cholesterol level in mg/dl",
		Kind: KindInt, Min: 100, Max: 600, Step: 1, Default: "200",
	},
	{
		Name: FieldFastingBS, Label: "Fasting Blood Sugar > 120 mg/dl", Help: "1 = True, 0 = False",
		Kind: KindChoice, Choices: []string{"0", "1"}, Default: "0",
	},
	{
		Name: FieldRestingECG, Label: "Resting ECG Results",
		Help: "Normal, ST: ST-T wave abnormality, LVH: Left Ventricular Hypertrophy",
		Kind: KindChoice, Choices: []string{"Normal", "ST", "LVH"}, Default: "Normal", Categorical: true,
	},
	{
		Name: FieldMaxHR, Label: "Maximum Heart Rate Achieved", Help: "Maximum heart rate achieved during exercise",
		Kind: KindInt, Min: 60, Max: 220, Step: 1, Default: "150",
	},
	{
		Name: FieldExerciseAngina, Label: "Exercise-Induced Angina", Help: "Y = Yes, N = No",
		Kind: KindChoice, Choices: []string{"Y", "N"}, Default: "Y", Categorical: true,
	},
	{
		Name: FieldOldpeak, Label: "Oldpeak (ST depression)", Help: "ST depression induced by exercise relative to rest",
		Kind: KindFloat, Min: -2.0, Max: 7.0, Step: 0.1, Default: "1.0",
	},
	{
		Name: FieldSTSlope, Label: "ST Slope", Help: "The slope of the peak exercise ST segment",
		Kind: KindChoice, Choices: []string{"Up", "Flat", "Down"}, Default: "Up", Categorical: true,
	},
}

// Fields returns the form fields in record order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup finds a field by name.
func Lookup(name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// NumericFields returns the names of the pass-through fields in record order.
func NumericFields() []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if !f.Categorical {
			names = append(names, f.Name)
		}
	}
	return names
}

// CategoricalFields returns the names of the one-hot encoded fields in
// record order.
func CategoricalFields() []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Categorical {
			names = append(names, f.Name)
		}
	}
	return names
}

// Validate checks the record against the form constraints. It reports
// the first violating field wrapped in ErrInvalidRecord.
func Validate(r Record) error {
	for _, f := range fields {
		if err := f.check(r); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

func (f Field) check(r Record) error {
	if f.Kind == KindChoice {
		value, ok := r.Category(f.Name)
		if !ok {
			n, _ := r.Numeric(f.Name)
			value = strconv.FormatFloat(n, 'f', -1, 64)
		}
		for _, c := range f.Choices {
			if c == value {
				return nil
			}
		}
		return fmt.Errorf("%s: %q is not one of %v", f.Name, value, f.Choices)
	}

	value, _ := r.Numeric(f.Name)
	if math.IsNaN(value) || value < f.Min || value > f.Max {
		return fmt.Errorf("%s: %v outside [%v, %v]", f.Name, value, f.Min, f.Max)
	}
	return nil
}
