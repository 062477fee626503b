package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"heartrisk/patient"
)

var (
	// ErrUnknownCategory is returned by a strict encoder for a categorical
	// value that was not seen at training time.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrSchemaMismatch is returned when a column cannot be resolved to a
	// record field, or the model and schema disagree on columns.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Schema is the training-time column layout. Columns is the exact order
// of the feature vector; Categories is the full vocabulary seen per
// categorical field, including the dropped first category.
type Schema struct {
	Columns    []string            `json:"columns"`
	Categories map[string][]string `json:"categories,omitempty"`
}

// BuildSchema derives the column layout the way drop-first one-hot
// encoding does over a whole dataset: numeric fields first in record
// order, then per categorical field its sorted distinct values minus the
// first one.
func BuildSchema(records []patient.Record) Schema {
	schema := Schema{
		Columns:    append([]string(nil), patient.NumericFields()...),
		Categories: make(map[string][]string),
	}

	for _, field := range patient.CategoricalFields() {
		seen := make(map[string]struct{})
		for _, r := range records {
			v, _ := r.Category(field)
			seen[v] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)

		schema.Categories[field] = values
		for _, v := range values[min(1, len(values)):] {
			schema.Columns = append(schema.Columns, field+"_"+v)
		}
	}
	return schema
}

// LoadSchema reads a schema written by Save.
func LoadSchema(path string) (Schema, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	var schema Schema
	if err := json.Unmarshal(payload, &schema); err != nil {
		return Schema{}, fmt.Errorf("decode schema %s: %w", path, err)
	}
	if len(schema.Columns) == 0 {
		return Schema{}, fmt.Errorf("schema %s: %w: no columns", path, ErrSchemaMismatch)
	}
	return schema, nil
}

// Save writes the schema as JSON.
func (s Schema) Save(path string) error {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

type column struct {
	field    string
	category string
	numeric  bool
}

// Encoder turns records into feature vectors laid out by a Schema. It is
// immutable after construction and safe for concurrent use.
type Encoder struct {
	schema  Schema
	columns []column
	groups  map[string][]int
	vocab   map[string]map[string]struct{}
	strict  bool
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithStrict makes Encode fail on categorical values outside the
// training vocabulary instead of zero-filling their indicator group.
func WithStrict(strict bool) EncoderOption {
	return func(e *Encoder) {
		e.strict = strict
	}
}

// NewEncoder resolves every schema column to a record field.
func NewEncoder(schema Schema, opts ...EncoderOption) (*Encoder, error) {
	e := &Encoder{
		schema:  schema,
		columns: make([]column, 0, len(schema.Columns)),
		groups:  make(map[string][]int),
		vocab:   make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	// Longest prefix first so that a field name containing an underscore
	// (ST_Slope) wins over any shorter one.
	categorical := patient.CategoricalFields()
	sort.SliceStable(categorical, func(i, j int) bool {
		return len(categorical[i]) > len(categorical[j])
	})

	seen := make(map[string]struct{}, len(schema.Columns))
	for i, name := range schema.Columns {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrSchemaMismatch, name)
		}
		seen[name] = struct{}{}

		col, ok := resolveColumn(name, categorical)
		if !ok {
			return nil, fmt.Errorf("%w: column %q matches no record field", ErrSchemaMismatch, name)
		}
		e.columns = append(e.columns, col)
		if !col.numeric {
			e.groups[col.field] = append(e.groups[col.field], i)
		}
	}

	for field, values := range schema.Categories {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		e.vocab[field] = set
	}
	if e.strict {
		for field := range e.groups {
			if _, ok := e.vocab[field]; !ok {
				return nil, fmt.Errorf("%w: strict encoding needs the vocabulary of %s", ErrSchemaMismatch, field)
			}
		}
	}
	return e, nil
}

func resolveColumn(name string, categorical []string) (column, bool) {
	if f, ok := patient.Lookup(name); ok && !f.Categorical {
		return column{field: name, numeric: true}, true
	}
	for _, field := range categorical {
		if category, ok := strings.CutPrefix(name, field+"_"); ok && category != "" {
			return column{field: field, category: category}, true
		}
	}
	return column{}, false
}

// Encode returns the feature vector of r. The vector always has one entry
// per schema column, in schema order. A categorical value with no
// indicator column leaves its whole group at zero.
func (e *Encoder) Encode(r patient.Record) ([]float64, error) {
	if e.strict {
		for _, field := range patient.CategoricalFields() {
			vocab, ok := e.vocab[field]
			if !ok {
				continue
			}
			v, _ := r.Category(field)
			if _, known := vocab[v]; !known {
				return nil, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, field, v)
			}
		}
	}

	vector := make([]float64, len(e.columns))
	for i, col := range e.columns {
		if col.numeric {
			vector[i], _ = r.Numeric(col.field)
			continue
		}
		if v, _ := r.Category(col.field); v == col.category {
			vector[i] = 1
		}
	}
	return vector, nil
}

// Columns returns the column names in vector order.
func (e *Encoder) Columns() []string {
	return append([]string(nil), e.schema.Columns...)
}

// Group returns the vector positions of a categorical field's indicators.
func (e *Encoder) Group(field string) []int {
	return append([]int(nil), e.groups[field]...)
}
