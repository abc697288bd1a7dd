package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs jobs on standard five-field cron schedules. A panicking
// job is recovered and a job still running when its next tick comes is
// skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  logrus.FieldLogger
	timeout time.Duration
}

func NewScheduler(logger logrus.FieldLogger, timeout time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		timeout: timeout,
	}
}

func (s *Scheduler) Add(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := RunOnce(context.Background(), job, s.logger, s.timeout); err != nil {
			s.logger.WithError(err).WithField("job", job.Name()).Error("job failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name(), schedule, err)
	}

	s.logger.WithFields(logrus.Fields{"job": job.Name(), "schedule": schedule}).Info("job scheduled")
	return nil
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and returns a context done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce runs job with a timeout and logs how it went.
func RunOnce(ctx context.Context, job Job, logger logrus.FieldLogger, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	entry := logger.WithField("job", job.Name())
	start := time.Now()

	if err := job.Run(ctx); err != nil {
		return err
	}

	entry.WithField("duration", time.Since(start)).Info("job finished")
	return nil
}
