package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safar/crm-service/internal/api"
	"github.com/safar/crm-service/internal/cache"
	"github.com/safar/crm-service/internal/config"
	"github.com/safar/crm-service/internal/crm"
	"github.com/safar/crm-service/internal/database"
	"github.com/safar/crm-service/internal/logging"
	"github.com/safar/crm-service/internal/store"
)

func main() {
	if err := makeAPICommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeAPICommand() *cobra.Command {
	var memory bool

	command := &cobra.Command{
		Use:           "api",
		Short:         "Serve the CRM HTTP API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, memory)
		},
	}
	command.Flags().BoolVar(&memory, "memory", false, "keep data in memory instead of Postgres")

	return command
}

func serve(ctx context.Context, cfg *config.Config, memory bool) error {
	logger := logging.New(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if memory {
		st = store.NewMemoryStore()
		logger.Warn("using in-memory store, data is lost on exit")
	} else {
		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		logger.Info("connected to database")
		st = store.NewPostgresStore(db)
	}

	opts := []crm.Option{crm.WithLogger(logger)}
	if cfg.Redis.Addr != "" {
		c, err := cache.NewRedisCache(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer c.Close()
		opts = append(opts, crm.WithCache(c))
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(crm.NewService(st, opts...), logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

