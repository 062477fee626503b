package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"heartrisk/patient"
)

// LabelColumn is the CSV column holding the target class.
const LabelColumn = "HeartDisease"

// Sample is one labelled training row.
type Sample struct {
	Record patient.Record
	Label  int
}

// LoadDataset reads a training CSV from disk.
func LoadDataset(path string) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadDataset(file)
}

// ReadDataset parses a CSV whose header names the record fields and the
// label column. Column order is free; extra columns are ignored.
func ReadDataset(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.TrimSpace(name)] = i
	}
	required := append(recordColumns(), LabelColumn)
	for _, name := range required {
		if _, ok := positions[name]; !ok {
			return nil, fmt.Errorf("dataset header is missing column %q", name)
		}
	}

	samples := make([]Sample, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		line, _ := reader.FieldPos(0)

		var s Sample
		for _, name := range recordColumns() {
			if err := s.Record.Set(name, strings.TrimSpace(row[positions[name]])); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		label, err := strconv.Atoi(strings.TrimSpace(row[positions[LabelColumn]]))
		if err != nil || (label != LabelLowRisk && label != LabelHighRisk) {
			return nil, fmt.Errorf("line %d: %s must be 0 or 1, got %q", line, LabelColumn, row[positions[LabelColumn]])
		}
		s.Label = label
		samples = append(samples, s)
	}

	if len(samples) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return samples, nil
}

func recordColumns() []string {
	fields := patient.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Records strips the labels off samples.
func Records(samples []Sample) []patient.Record {
	records := make([]patient.Record, len(samples))
	for i, s := range samples {
		records[i] = s.Record
	}
	return records
}

// EncodeDataset turns samples into a feature matrix and label vector.
func EncodeDataset(encoder *Encoder, samples []Sample) ([][]float64, []int, error) {
	features := make([][]float64, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		vector, err := encoder.Encode(s.Record)
		if err != nil {
			return nil, nil, fmt.Errorf("sample %d: %w", i, err)
		}
		features[i] = vector
		labels[i] = s.Label
	}
	return features, labels, nil
}

// SplitDataset shuffles with the given seed and holds out testRatio of
// the rows. Ratios outside (0, 1) fall back to 0.2.
func SplitDataset(features [][]float64, labels []int, testRatio float64, seed int64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(len(features))

	split := int(math.Round(float64(len(features)) * (1 - testRatio)))
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY
}
