package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"heartrisk/config"
	"heartrisk/logging"
)

var (
	version = "v0.1.0-default"
	commit  = ""

	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML config file (missing file uses defaults)",
		Value:   "config.yaml",
		EnvVars: []string{"HEARTRISK_CONFIG"},
	}
)

func main() {
	app := &cli.App{
		Name:     "heartrisk",
		Version:  fmt.Sprintf("%s - (commit: %s)", version, commit),
		Compiled: time.Now(),
		Usage:    "Heart disease risk prediction service",
		Flags: []cli.Flag{
			configFlag,
		},
		Commands: []*cli.Command{
			serveCmd,
			trainCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(configFlag.Name)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}
