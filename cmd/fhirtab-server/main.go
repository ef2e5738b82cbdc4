package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fhirtab/fhirtab/internal/config"
	"github.com/fhirtab/fhirtab/internal/export"
	"github.com/fhirtab/fhirtab/internal/flatten"
	"github.com/fhirtab/fhirtab/internal/pipeline"
	"github.com/fhirtab/fhirtab/internal/platform/fhir"
	"github.com/fhirtab/fhirtab/internal/platform/sandbox"
	"github.com/fhirtab/fhirtab/internal/platform/telemetry"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/internal/server"
	"github.com/fhirtab/fhirtab/internal/survey"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirtab-server",
		Short: "FHIR resource flattening and aggregation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(flattenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func flattenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatten <resources.json>",
		Short: "Flatten a file of FHIR resources to CSV on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			questionnaire, _ := cmd.Flags().GetString("questionnaire")
			return runFlatten(args[0], out, questionnaire)
		},
	}
	cmd.Flags().String("out", "", "Write CSV to a file instead of stdout")
	cmd.Flags().String("questionnaire", "", "Questionnaire definition JSON for survey responses")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// newLogger builds the process logger. Development gets the console writer,
// everything else structured JSON.
func newLogger(level, env string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func runServer() error {
	bootLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.MustLoad(bootLog)
	logger := newLogger(cfg.LogLevel, cfg.Env)

	reg := registry.New(registry.WithLogger(logger))

	mapper, err := survey.NewMapper(sandbox.PHQ9Definition)
	if err != nil {
		logger.Fatal().Err(err).Msg("build survey mapper")
	}

	flat := flatten.New(reg,
		flatten.WithLogger(logger),
		flatten.WithSurveyMapper(mapper),
	)
	proc := pipeline.New(reg, pipeline.WithLogger(logger))

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	srv := server.New(cfg, logger, reg, flat, proc, tp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return err
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

func runFlatten(path, out, questionnairePath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	resources, err := fhir.ParseResources(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	defs := [][]byte{sandbox.PHQ9Definition}
	if questionnairePath != "" {
		doc, err := os.ReadFile(questionnairePath)
		if err != nil {
			return err
		}
		defs = [][]byte{doc}
	}
	mapper, err := survey.NewMapper(defs...)
	if err != nil {
		return fmt.Errorf("parse questionnaire: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	reg := registry.New()
	flat := flatten.New(reg,
		flatten.WithLogger(logger),
		flatten.WithSurveyMapper(mapper),
	)

	ds, err := flat.Flatten(resources)
	if err != nil {
		return err
	}

	exp := export.New(ds)
	if out != "" {
		return exp.ExportCSV(out)
	}
	return exp.WriteCSV(os.Stdout)
}
