package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/database"
	"github.com/stupid-simple/medialib/fileutils"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/scheduler"
)

func daemonCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	cfgPath := args.Daemon.Config
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	if err := addStageJobs(ctx, scheduler, cfg, db, console, logger); err != nil {
		return fmt.Errorf("could not add stage jobs: %w", err)
	}

	dbCfg := cfg.Database
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	startConfigFileWatcher(ctx, cfgPath, logger, ticker, func(cfg *config.Config) {
		if cfg.Database != dbCfg {
			logger.Warn().Msg("database settings changed, restart the daemon to apply them")
		}
		scheduler.RemoveJobs()
		if err := addStageJobs(ctx, scheduler, cfg, db, console, logger); err != nil {
			logger.Error().Err(err).Msg("failed to add stage jobs")
		}
	})

	scheduler.Start()
	defer scheduler.Stop()

	<-ctx.Done()

	return nil
}

func addStageJobs(
	ctx context.Context,
	scheduler *scheduler.Scheduler,
	cfg *config.Config,
	db *database.Database,
	console io.Writer,
	logger zerolog.Logger,
) error {
	r := newRunner(cfg, db, console, logger)

	stages := []struct {
		name     string
		schedule string
		jobs     func() ([]runner.Job, error)
	}{
		{"harvest", cfg.Schedule.Harvest, func() ([]runner.Job, error) { return harvestJobs(cfg) }},
		{"offload", cfg.Schedule.Offload, func() ([]runner.Job, error) { return offloadJobs(cfg) }},
		{"masters", cfg.Schedule.Masters, func() ([]runner.Job, error) { return mastersJobs(cfg, logger), nil }},
		{"www", cfg.Schedule.Web, func() ([]runner.Job, error) { return webJobs(cfg, logger), nil }},
		{"cleanup", cfg.Schedule.Cleanup, func() ([]runner.Job, error) { return cleanupJobs(cfg) }},
	}
	for _, stage := range stages {
		if stage.schedule == "" {
			continue
		}
		jobs, err := stage.jobs()
		if err != nil {
			logger.Error().Err(err).Str("stage", stage.name).Msg("skipping stage")
			continue
		}
		job := &stageJob{ctx: ctx, name: stage.name, runner: r, jobs: jobs, logger: logger}
		if err := scheduler.AddJob(stage.name, stage.schedule, job); err != nil {
			return err
		}
	}
	return nil
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, when(ticker.C), func(path string, err error) {
		logger.Error().Err(err).Str("path", path).Msg("could not read config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher:
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := loadConfig(cfgPath, logger)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

func when[T any](ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for range ch {
			out <- struct{}{}
		}
	}()
	return out
}

// stageJob runs the jobs of one pipeline stage on a schedule tick.
type stageJob struct {
	ctx    context.Context
	name   string
	runner *runner.Runner
	jobs   []runner.Job
	logger zerolog.Logger
}

func (s *stageJob) Run() {
	for _, job := range s.jobs {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.runner.Run(s.ctx, job); err != nil {
			s.logger.Error().Err(err).Str("stage", s.name).Msg("scheduled run failed")
		}
	}
}
