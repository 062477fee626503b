// Package db keeps the prediction and training history in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"heartrisk/patient"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    record TEXT NOT NULL,
    label INTEGER NOT NULL,
    confidence REAL NOT NULL,
    source VARCHAR(20) NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
CREATE TABLE IF NOT EXISTS training_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    model_name VARCHAR(50) NOT NULL,
    accuracy REAL,
    precision REAL,
    recall REAL,
    f1 REAL,
    depth INTEGER,
    leaves INTEGER,
    trained_at DATETIME NOT NULL,
    data_points INTEGER
);
`

// Store is a SQLite-backed history log.
type Store struct {
	db *sql.DB
}

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	ID         int64          `json:"id"`
	Record     patient.Record `json:"record"`
	Label      int            `json:"label"`
	Confidence float64        `json:"confidence"`
	Source     string         `json:"source"`
	CreatedAt  time.Time      `json:"created_at"`
}

// TrainingLog is one offline training run.
type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	F1         float64   `json:"f1"`
	Depth      int       `json:"depth"`
	Leaves     int       `json:"leaves"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

// Open opens or creates the database at path and ensures the tables exist.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &Store{db: database}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePrediction appends a prediction to the log.
func (s *Store) SavePrediction(ctx context.Context, p PredictionRecord) (int64, error) {
	payload, err := json.Marshal(p.Record)
	if err != nil {
		return 0, err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
        INSERT INTO predictions (record, label, confidence, source, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		string(payload), p.Label, p.Confidence, p.Source, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, record, label, confidence, source, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]PredictionRecord, 0)
	for rows.Next() {
		var p PredictionRecord
		var payload string
		if err := rows.Scan(&p.ID, &payload, &p.Label, &p.Confidence, &p.Source, &p.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &p.Record); err != nil {
			return nil, fmt.Errorf("prediction %d: %w", p.ID, err)
		}
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

// SaveTrainingLog appends a training run.
func (s *Store) SaveTrainingLog(ctx context.Context, log TrainingLog) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO training_log (
            model_name, accuracy, precision, recall, f1, depth, leaves, trained_at, data_points
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ModelName, log.Accuracy, log.Precision, log.Recall, log.F1,
		log.Depth, log.Leaves, log.TrainedAt, log.DataPoints)
	return err
}

// LoadTrainingLog returns all training runs, newest first.
func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT model_name, accuracy, precision, recall, f1, depth, leaves, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.Accuracy, &log.Precision, &log.Recall, &log.F1,
			&log.Depth, &log.Leaves, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
