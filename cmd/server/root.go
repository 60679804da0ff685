package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"registro/internal/platform/config"
	"registro/internal/platform/httpserver"
	"registro/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "registro",
		Short:         "Employee registration service",
		Long:          "Accepts employee registrations over HTTP, stores them in PostgreSQL and confirms them by email and SMS.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runServe,
	}
	root.PersistentFlags().String("settings", "",
		"settings file layered under the environment (same as "+config.SettingsFileEnv+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  runServe,
	})
	root.AddCommand(&cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and report which integrations are ready",
		RunE:  runCheckConfig,
	})
	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("settings"); path != "" {
		if err := os.Setenv(config.SettingsFileEnv, path); err != nil {
			return config.Config{}, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer application.Close(log)

	srv := httpserver.New(cfg.Server.Addr(), application.Handler, cfg.Server.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting registro", "addr", cfg.Server.Addr(), "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	writeReport(cmd.OutOrStdout(), cfg)
	return nil
}

func writeReport(w io.Writer, cfg config.Config) {
	status := func(missing []string) string {
		if len(missing) == 0 {
			return "ready"
		}
		return "missing " + strings.Join(missing, ", ")
	}
	fmt.Fprintf(w, "listen:   %s\n", cfg.Server.Addr())
	fmt.Fprintf(w, "database: %s\n", status(cfg.Database.Missing()))
	fmt.Fprintf(w, "email:    %s\n", status(cfg.SMTP.Missing()))
	fmt.Fprintf(w, "sms:      %s\n", status(cfg.SMS.Missing()))
	fmt.Fprintf(w, "cache:    %s\n", cfg.Cache.Backend)
	if cfg.Tracing.Enabled {
		fmt.Fprintf(w, "tracing:  %s\n", cfg.Tracing.Exporter)
	} else {
		fmt.Fprintf(w, "tracing:  disabled\n")
	}
}
