package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/safar/crm-service/internal/client"
	"github.com/safar/crm-service/internal/config"
	"github.com/safar/crm-service/internal/jobs"
	"github.com/safar/crm-service/internal/logging"
)

func main() {
	if err := makeJobsCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeJobsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "jobs [command]",
		Short: "Run the CRM background jobs",
		Long: `Run the CRM background jobs against the CRM HTTP API.

Typical usage:
    jobs run
        Schedule every job and run until interrupted.

    jobs once reminders
        Run a single job now and exit.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	command.AddCommand(makeRunCommand())
	command.AddCommand(makeOnceCommand())
	command.AddCommand(makeListCommand())

	return command
}

func setup() (*config.Config, *jobs.Registry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	api := client.New(cfg.Jobs.APIURL, cfg.Jobs.RequestTimeout)
	registry, err := jobs.NewRegistry(cfg.Jobs, api)
	if err != nil {
		return nil, nil, fmt.Errorf("open job logs: %w", err)
	}
	return cfg, registry, nil
}

func makeRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Schedule every job and block until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := setup()
			if err != nil {
				return err
			}
			defer registry.Close()

			logger := logging.New(cfg.Log)
			scheduler := jobs.NewScheduler(logger, cfg.Jobs.RequestTimeout)
			if err := registry.Schedule(scheduler); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler.Start()
			logger.WithField("jobs", scheduler.Len()).Info("scheduler started")
			<-ctx.Done()

			logger.Info("waiting for running jobs")
			<-scheduler.Stop().Done()
			return nil
		},
	}
}

func makeOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once <job>",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, registry, err := setup()
			if err != nil {
				return err
			}
			defer registry.Close()

			job, err := registry.Lookup(args[0])
			if err != nil {
				return fmt.Errorf("%w (known jobs: %v)", err, registry.Names())
			}

			return jobs.RunOnce(cmd.Context(), job, logging.New(cfg.Log), cfg.Jobs.RequestTimeout)
		},
	}
}

func makeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the job names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, err := setup()
			if err != nil {
				return err
			}
			defer registry.Close()

			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
