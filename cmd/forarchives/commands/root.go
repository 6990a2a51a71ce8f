package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"forarchives/internal/app"
	"forarchives/internal/components/chrono"
	comptelemetry "forarchives/internal/components/telemetry"
	"forarchives/internal/config"
	"forarchives/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	dumpDir    string
)

// set up by the root command before any subcommand runs
var (
	cfg     config.Config
	engine  *app.App
	otelTel telemetry.Telemetry
	tel     comptelemetry.API = comptelemetry.NewMetricsAPI(comptelemetry.SlogAPI{})
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file, searched upward for "+config.FileName+" by default.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug reports.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-http", "", "Write every http exchange to a file in this directory.")
}

var rootCmd = &cobra.Command{
	Use:           "forarchives",
	Short:         "forarchives searches archived imageboard posts across several archives.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		cfg, path, err = config.Read(configPath)
		if err != nil {
			return err
		}
		telemetry.InitSlog(verbose || cfg.Telemetry.Verbose)
		if path != "" {
			slog.Debug("using config", "path", path)
		}

		otelTel, err = telemetry.Setup(cmd.Context(), "forarchives", telemetry.Config{
			GrpcEndpoint: cfg.Telemetry.OtlpGrpcEndpoint,
			HttpEndpoint: cfg.Telemetry.OtlpHttpEndpoint,
		})
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}

		if dumpDir != "" {
			cfg.HTTP.DumpDir = dumpDir
		}
		engine, err = app.Build(cfg, tel, chrono.NewStandardImpl())
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown()
	},
}

func teardown() error {
	var errs []error
	if engine != nil {
		errs = append(errs, engine.Close())
		engine = nil
	}
	errs = append(errs, otelTel.Shutdown(context.Background()))
	otelTel = telemetry.Telemetry{}
	return errors.Join(errs...)
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRun is skipped when the command fails
		err = errors.Join(err, teardown())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
