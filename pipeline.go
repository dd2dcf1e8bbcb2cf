package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/metrics"
	"github.com/stupid-simple/medialib/runner"
)

func loadConfig(path string, logger zerolog.Logger) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug().Object("config", cfg).Str("path", path).Msg("config loaded")
	return cfg, nil
}

func newRunner(cfg *config.Config, db *database.Database, console io.Writer, logger zerolog.Logger) *runner.Runner {
	opts := []runner.Option{
		runner.WithNotifier(runner.LogNotifier{Logger: logger}),
		runner.WithLogOutput(console),
	}
	if cfg.Metrics.TextfileDirectory != "" {
		opts = append(opts, runner.WithRecorder(metrics.NewTextfile(cfg.Metrics.TextfileDirectory)))
	}
	return runner.New(cfg, db, logger, opts...)
}

// runOnce loads the config, opens the database and runs the jobs built
// from them one after the other.
func runOnce(
	ctx context.Context,
	cfgPath string,
	console io.Writer,
	logger zerolog.Logger,
	jobs func(cfg *config.Config) ([]runner.Job, error),
) error {
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		return err
	}
	todo, err := jobs(cfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	r := newRunner(cfg, db, console, logger)
	var errs []error
	for _, job := range todo {
		if ctx.Err() != nil {
			break
		}
		if err := r.Run(ctx, job); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
