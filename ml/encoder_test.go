package ml

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartrisk/patient"
)

var heartColumns = []string{
	"Age", "RestingBP", "Cholesterol", "FastingBS", "MaxHR", "Oldpeak",
	"Sex_M",
	"ChestPainType_ATA", "ChestPainType_NAP", "ChestPainType_TA",
	"RestingECG_Normal", "RestingECG_ST",
	"ExerciseAngina_Y",
	"ST_Slope_Flat", "ST_Slope_Up",
}

func exampleRecord() patient.Record {
	return patient.Record{
		Age:            50,
		Sex:            "M",
		ChestPainType:  "ATA",
		RestingBP:      120,
		Cholesterol:    200,
		FastingBS:      0,
		RestingECG:     "Normal",
		MaxHR:          150,
		ExerciseAngina: "N",
		Oldpeak:        1.0,
		STSlope:        "Up",
	}
}

func sampleSchema(t *testing.T) Schema {
	t.Helper()
	samples, err := LoadDataset(filepath.Join("testdata", "heart_sample.csv"))
	require.NoError(t, err)
	return BuildSchema(Records(samples))
}

func TestBuildSchemaDropsFirstCategory(t *testing.T) {
	schema := sampleSchema(t)
	assert.Equal(t, heartColumns, schema.Columns)
	assert.Equal(t, []string{"ASY", "ATA", "NAP", "TA"}, schema.Categories[patient.FieldChestPainType])
	assert.Equal(t, []string{"Down", "Flat", "Up"}, schema.Categories[patient.FieldSTSlope])
}

func TestBuildSchemaSingleCategory(t *testing.T) {
	r := exampleRecord()
	schema := BuildSchema([]patient.Record{r, r})
	assert.Equal(t, patient.NumericFields(), schema.Columns)
}

func TestEncodeExampleRecord(t *testing.T) {
	encoder, err := NewEncoder(Schema{Columns: heartColumns})
	require.NoError(t, err)

	vector, err := encoder.Encode(exampleRecord())
	require.NoError(t, err)
	assert.Equal(t, []float64{
		50, 120, 200, 0, 150, 1,
		1,
		1, 0, 0,
		1, 0,
		0,
		0, 1,
	}, vector)
	assert.Equal(t, heartColumns, encoder.Columns())
}

func TestEncodeIsDeterministic(t *testing.T) {
	encoder, err := NewEncoder(sampleSchema(t))
	require.NoError(t, err)

	first, err := encoder.Encode(exampleRecord())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := encoder.Encode(exampleRecord())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEncodeBaselineCategoriesAreZero(t *testing.T) {
	encoder, err := NewEncoder(Schema{Columns: heartColumns})
	require.NoError(t, err)

	r := exampleRecord()
	r.Sex = "F"
	r.ChestPainType = "ASY"
	r.RestingECG = "LVH"
	r.STSlope = "Down"
	vector, err := encoder.Encode(r)
	require.NoError(t, err)
	for _, v := range vector[6:] {
		assert.Zero(t, v)
	}
}

func TestEncodeUnknownCategoryZeroFillsGroup(t *testing.T) {
	encoder, err := NewEncoder(sampleSchema(t))
	require.NoError(t, err)

	r := exampleRecord()
	r.ChestPainType = "XYZ"
	vector, err := encoder.Encode(r)
	require.NoError(t, err)
	require.Len(t, vector, len(heartColumns))

	group := encoder.Group(patient.FieldChestPainType)
	require.Equal(t, []int{7, 8, 9}, group)
	for _, i := range group {
		assert.Zero(t, vector[i])
	}
	// Other groups are untouched.
	assert.Equal(t, 1.0, vector[6])
	assert.Equal(t, 1.0, vector[14])
}

func TestEncodeStrictRejectsUnknownCategory(t *testing.T) {
	encoder, err := NewEncoder(sampleSchema(t), WithStrict(true))
	require.NoError(t, err)

	r := exampleRecord()
	r.ChestPainType = "XYZ"
	_, err = encoder.Encode(r)
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	// The dropped baseline is still a known category.
	r.ChestPainType = "ASY"
	_, err = encoder.Encode(r)
	assert.NoError(t, err)
}

func TestEncodeStrictReportsFirstFieldInRecordOrder(t *testing.T) {
	encoder, err := NewEncoder(sampleSchema(t), WithStrict(true))
	require.NoError(t, err)

	r := exampleRecord()
	r.Sex = "X"
	r.STSlope = "Sideways"
	for i := 0; i < 20; i++ {
		_, err = encoder.Encode(r)
		require.True(t, errors.Is(err, ErrUnknownCategory))
		assert.Contains(t, err.Error(), `Sex="X"`)
	}
}

func TestStrictEncoderNeedsVocabulary(t *testing.T) {
	_, err := NewEncoder(Schema{Columns: heartColumns}, WithStrict(true))
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestEncodeFollowsSchemaOrder(t *testing.T) {
	// A category the schema has no column for is lost, and columns come
	// out in schema order regardless of record order.
	encoder, err := NewEncoder(Schema{Columns: []string{"ST_Slope_Up", "ChestPainType_NAP", "Oldpeak", "Age"}})
	require.NoError(t, err)

	r := exampleRecord()
	r.ChestPainType = "TA"
	vector, err := encoder.Encode(r)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 1, 50}, vector)
}

func TestNewEncoderRejectsBadColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
	}{
		{name: "unknown field", columns: []string{"Age", "Weight"}},
		{name: "categorical field without category", columns: []string{"Sex"}},
		{name: "empty category", columns: []string{"Sex_"}},
		{name: "duplicate", columns: []string{"Age", "Age"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(Schema{Columns: tt.columns})
			assert.True(t, errors.Is(err, ErrSchemaMismatch))
		})
	}
}

func TestSchemaSaveLoad(t *testing.T) {
	schema := sampleSchema(t)
	path := filepath.Join(t.TempDir(), "columns.json")
	require.NoError(t, schema.Save(path))

	loaded, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, schema, loaded)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, Schema{}.Save(empty))
	_, err = LoadSchema(empty)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}
