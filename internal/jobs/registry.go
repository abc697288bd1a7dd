package jobs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/safar/crm-service/internal/config"
	"github.com/safar/crm-service/internal/logging"
)

// Entry pairs a job with its schedule.
type Entry struct {
	Schedule string
	Job      Job
}

// Registry owns the configured jobs and their log sinks.
type Registry struct {
	entries map[string]Entry
	sinks   []*logging.Sink
}

// NewRegistry builds every job from cfg, opening one append-only log file
// per job.
func NewRegistry(cfg config.JobsConfig, api API) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry)}

	open := func(path, timestampFormat string) (*logrus.Logger, error) {
		sink, err := logging.OpenSink(path, timestampFormat)
		if err != nil {
			return nil, err
		}
		r.sinks = append(r.sinks, sink)
		return sink.Logger, nil
	}

	heartbeatLog, err := open(cfg.HeartbeatLog, HeartbeatTimestamp)
	if err != nil {
		return nil, r.closeWith(err)
	}
	lowStockLog, err := open(cfg.LowStockLog, LogTimestamp)
	if err != nil {
		return nil, r.closeWith(err)
	}
	remindersLog, err := open(cfg.RemindersLog, LogTimestamp)
	if err != nil {
		return nil, r.closeWith(err)
	}
	reportLog, err := open(cfg.ReportLog, LogTimestamp)
	if err != nil {
		return nil, r.closeWith(err)
	}

	r.add(cfg.HeartbeatSchedule, &Heartbeat{API: api, Log: heartbeatLog})
	r.add(cfg.LowStockSchedule, &LowStock{
		API:       api,
		Log:       lowStockLog,
		Threshold: cfg.LowStockThreshold,
		Increment: cfg.LowStockIncrement,
	})
	r.add(cfg.RemindersSchedule, &Reminders{API: api, Log: remindersLog, WindowDays: cfg.ReminderWindowDays})
	r.add(cfg.ReportSchedule, &Report{API: api, Log: reportLog})

	return r, nil
}

func (r *Registry) add(schedule string, job Job) {
	r.entries[job.Name()] = Entry{Schedule: schedule, Job: job}
}

// Names lists the registered job names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Lookup(name string) (Job, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return e.Job, nil
}

// Schedule adds every registered job to s.
func (r *Registry) Schedule(s *Scheduler) error {
	for _, name := range r.Names() {
		e := r.entries[name]
		if err := s.Add(e.Schedule, e.Job); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeWith(err error) error {
	return errors.Join(err, r.Close())
}
