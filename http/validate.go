package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"heartrisk/patient"
)

const recordSchemaURL = "patient-record.json"

// recordValidator checks JSON payloads before they are decoded into a
// patient.Record. Numeric ranges are enforced here; categorical values
// only need to be non-empty so the encoder decides what unknown values
// mean.
type recordValidator struct {
	schema *jsonschema.Schema
}

func newRecordValidator() (*recordValidator, error) {
	doc, err := json.Marshal(recordSchema())
	if err != nil {
		return nil, err
	}
	schema, err := jsonschema.CompileString(recordSchemaURL, string(doc))
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &recordValidator{schema: schema}, nil
}

func recordSchema() map[string]interface{} {
	properties := make(map[string]interface{})
	required := make([]string, 0)
	for _, f := range patient.Fields() {
		required = append(required, f.Name)
		switch {
		case f.Categorical:
			properties[f.Name] = map[string]interface{}{"type": "string", "minLength": 1}
		case f.Kind == patient.KindChoice:
			choices := make([]json.Number, 0, len(f.Choices))
			for _, c := range f.Choices {
				choices = append(choices, json.Number(c))
			}
			properties[f.Name] = map[string]interface{}{"type": "integer", "enum": choices}
		case f.Kind == patient.KindInt:
			properties[f.Name] = map[string]interface{}{"type": "integer", "minimum": f.Min, "maximum": f.Max}
		default:
			properties[f.Name] = map[string]interface{}{"type": "number", "minimum": f.Min, "maximum": f.Max}
		}
	}
	return map[string]interface{}{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// decode validates payload and decodes it. Every failure wraps
// patient.ErrInvalidRecord.
func (v *recordValidator) decode(payload []byte) (patient.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return patient.Record{}, fmt.Errorf("%w: malformed JSON: %v", patient.ErrInvalidRecord, err)
	}

	if err := v.schema.Validate(raw); err != nil {
		return patient.Record{}, fmt.Errorf("%w: %s", patient.ErrInvalidRecord, describe(err))
	}

	var record patient.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return patient.Record{}, fmt.Errorf("%w: %v", patient.ErrInvalidRecord, err)
	}
	return record, nil
}

// describe reduces a validation error to its first leaf cause, prefixed
// with the offending field.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	field := strings.TrimPrefix(ve.InstanceLocation, "/")
	if field == "" {
		return ve.Message
	}
	return field + ": " + ve.Message
}
