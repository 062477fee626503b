// Package patient defines the patient record collected by the risk form
// and the constraints each of its fields must satisfy.
package patient

import (
	"fmt"
	"strconv"
)

// Field names as they appear in the training CSV header and in the
// encoded column names.
const (
	FieldAge            = "Age"
	FieldSex            = "Sex"
	FieldChestPainType  = "ChestPainType"
	FieldRestingBP      = "RestingBP"
	FieldCholesterol    = "Cholesterol"
	FieldFastingBS      = "FastingBS"
	FieldRestingECG     = "RestingECG"
	FieldMaxHR          = "MaxHR"
	FieldExerciseAngina = "ExerciseAngina"
	FieldOldpeak        = "Oldpeak"
	FieldSTSlope        = "ST_Slope"
)

// Record is one patient's health attributes.
type Record struct {
	Age            int     `json:"Age"`
	Sex            string  `json:"Sex"`
	ChestPainType  string  `json:"ChestPainType"`
	RestingBP      int     `json:"RestingBP"`
	Cholesterol    int     `json:"Cholesterol"`
	FastingBS      int     `json:"FastingBS"`
	RestingECG     string  `json:"RestingECG"`
	MaxHR          int     `json:"MaxHR"`
	ExerciseAngina string  `json:"ExerciseAngina"`
	Oldpeak        float64 `json:"Oldpeak"`
	STSlope        string  `json:"ST_Slope"`
}

// Numeric returns the value of a numeric field. FastingBS is numeric: it
// is already a 0/1 indicator and passes through unchanged.
func (r Record) Numeric(field string) (float64, bool) {
	switch field {
	case FieldAge:
		return float64(r.Age), true
	case FieldRestingBP:
		return float64(r.RestingBP), true
	case FieldCholesterol:
		return float64(r.Cholesterol), true
	case FieldFastingBS:
		return float64(r.FastingBS), true
	case FieldMaxHR:
		return float64(r.MaxHR), true
	case FieldOldpeak:
		return r.Oldpeak, true
	default:
		return 0, false
	}
}

// Category returns the value of a categorical field.
func (r Record) Category(field string) (string, bool) {
	switch field {
	case FieldSex:
		return r.Sex, true
	case FieldChestPainType:
		return r.ChestPainType, true
	case FieldRestingECG:
		return r.RestingECG, true
	case FieldExerciseAngina:
		return r.ExerciseAngina, true
	case FieldSTSlope:
		return r.STSlope, true
	default:
		return "", false
	}
}

// Set assigns a field from its textual form, as read from a form post or
// a CSV cell.
func (r *Record) Set(field, value string) error {
	parseInt := func() (int, error) {
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q", field, value)
		}
		return v, nil
	}

	var err error
	switch field {
	case FieldAge:
		r.Age, err = parseInt()
	case FieldRestingBP:
		r.RestingBP, err = parseInt()
	case FieldCholesterol:
		r.Cholesterol, err = parseInt()
	case FieldFastingBS:
		r.FastingBS, err = parseInt()
	case FieldMaxHR:
		r.MaxHR, err = parseInt()
	case FieldOldpeak:
		r.Oldpeak, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("%s: invalid number %q", field, value)
		}
	case FieldSex:
		r.Sex = value
	case FieldChestPainType:
		r.ChestPainType = value
	case FieldRestingECG:
		r.RestingECG = value
	case FieldExerciseAngina:
		r.ExerciseAngina = value
	case FieldSTSlope:
		r.STSlope = value
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return err
}

// Default returns the record the form is pre-filled with.
func Default() Record {
	r := Record{}
	for _, f := range Fields() {
		// Defaults come from the catalogue and always parse.
		_ = r.Set(f.Name, f.Default)
	}
	return r
}
