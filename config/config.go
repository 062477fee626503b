// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the whole of config.yaml.
type Config struct {
	HTTP struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		MaxBodyBytes int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Model struct {
		Type       string `yaml:"type"`
		Path       string `yaml:"path"`
		SchemaPath string `yaml:"schema_path"`
		// Strict rejects categorical values not seen in training instead
		// of zero-filling them.
		Strict    bool `yaml:"strict"`
		CacheSize int  `yaml:"cache_size"`
	} `yaml:"model"`
	Training struct {
		DataPath       string  `yaml:"data_path"`
		MaxDepth       int     `yaml:"max_depth"`
		MinSamplesLeaf int     `yaml:"min_samples_leaf"`
		TestRatio      float64 `yaml:"test_ratio"`
		Seed           int64   `yaml:"seed"`
	} `yaml:"training"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	UI struct {
		Title  string `yaml:"title"`
		Locale string `yaml:"locale"`
	} `yaml:"ui"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	c := &Config{}
	c.HTTP.Port = 8080
	c.HTTP.ReadTimeout = 10 * time.Second
	c.HTTP.WriteTimeout = 10 * time.Second
	c.HTTP.MaxBodyBytes = 1 << 20
	c.Model.Type = "decision_tree"
	c.Model.Path = "models/HeartDiseasePredictorV1.json"
	c.Model.SchemaPath = "models/heart_columns.json"
	c.Model.CacheSize = 1024
	c.Training.DataPath = "data/heart.csv"
	c.Training.MaxDepth = 5
	c.Training.MinSamplesLeaf = 1
	c.Training.TestRatio = 0.2
	c.Training.Seed = 42
	c.Database.Path = "data/heartrisk.db"
	c.Log.Level = "info"
	c.UI.Title = "Heart Disease Risk Predictor"
	c.UI.Locale = "en"
	return c
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.Model.Path == "" || c.Model.SchemaPath == "" {
		return errors.New("model.path and model.schema_path are required")
	}
	if c.Training.TestRatio < 0 || c.Training.TestRatio >= 1 {
		return fmt.Errorf("training.test_ratio %v must be in [0, 1)", c.Training.TestRatio)
	}
	return nil
}
