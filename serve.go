package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"heartrisk/config"
	"heartrisk/db"
	qhttp "heartrisk/http"
	"heartrisk/ml"
)

var (
	portFlag = &cli.IntFlag{
		Name:  "port",
		Usage: "Port to listen on (overrides http.port)",
	}

	serveCmd = &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serve the risk form and the predict APIs",
		Action:  cmdServe,
		Flags: []cli.Flag{
			portFlag,
		},
	}
)

func cmdServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet(portFlag.Name) {
		cfg.HTTP.Port = c.Int(portFlag.Name)
	}

	logger := newLogger(cfg)
	defer logger.Close()
	defer func() { _ = logger.Sync() }()

	// The model and schema are loaded once; serving without them is fatal.
	model, schema, err := ml.LoadArtifacts(cfg.Model.Type, cfg.Model.Path, cfg.Model.SchemaPath)
	if err != nil {
		logger.Error("failed to load model artifacts",
			zap.String("model", cfg.Model.Path),
			zap.String("schema", cfg.Model.SchemaPath),
			zap.Error(err),
		)
		return err
	}
	encoder, err := ml.NewEncoder(schema, ml.WithStrict(cfg.Model.Strict))
	if err != nil {
		return fmt.Errorf("build encoder: %w", err)
	}
	predictor, err := ml.NewPredictor(encoder, model, cfg.Model.CacheSize, logger.Logger)
	if err != nil {
		return fmt.Errorf("build predictor: %w", err)
	}

	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	info := qhttp.ModelInfo{
		Type:    cfg.Model.Type,
		Columns: encoder.Columns(),
		Strict:  cfg.Model.Strict,
	}
	if tree, ok := model.(*ml.DecisionTree); ok {
		info.Depth = tree.Depth()
		info.Leaves = tree.Leaves()
	}
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Int("columns", len(info.Columns)),
		zap.Int("depth", info.Depth),
		zap.Int("leaves", info.Leaves),
		zap.Bool("strict", info.Strict),
	)

	handlers, err := qhttp.NewHandlers(qhttp.Options{
		Predictor: predictor,
		Store:     store,
		Model:     info,
		Title:     cfg.UI.Title,
		Locale:    cfg.UI.Locale,
		Logger:    logger.Logger,
	})
	if err != nil {
		return fmt.Errorf("build handlers: %w", err)
	}
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	}, handlers, logger.Logger)

	// Only the log level is applied live; model settings need a restart.
	watcher, err := config.NewWatcher(c.String(configFlag.Name), func(next *config.Config, err error) {
		if err != nil {
			return
		}
		logger.SetLevel(next.Log.Level)
	}, logger.Logger)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
		return err
	}
	logger.Info("exiting")
	return nil
}
