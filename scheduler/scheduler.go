package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is run on every tick of its schedule.
type Job interface {
	Run()
}

type SchedulerParams struct {
	Logger zerolog.Logger
}

func NewScheduler(params SchedulerParams) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: params.Logger,
		jobs:   make(map[cron.EntryID]string),
	}
}

// Scheduler runs pipeline stages on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[cron.EntryID]string
	logger zerolog.Logger
}

// Start the scheduler in its own routine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddJob schedules job under name. An empty schedule leaves the job out.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	if schedule == "" {
		s.logger.Debug().Str("job", name).Msg("no schedule, job disabled")
		return nil
	}
	entry, err := s.cron.AddJob(schedule, job)
	if err != nil {
		return fmt.Errorf("could not add %s job: %w", name, err)
	}

	s.jobs[entry] = name
	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("scheduled job")
	return nil
}

// Jobs lists the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) RemoveJobs() {
	for entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, entry)
	}
}
