package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"semprep/adapters/export"
	"semprep/adapters/sem"
	"semprep/adapters/stats/describe"
	"semprep/adapters/tabular"
	"semprep/app"
	"semprep/domain/core"
	"semprep/internal"
	"semprep/internal/config"
	"semprep/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil {
		internal.DefaultLogger.Debug("no .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error (%s): %v\n", failureKind(err), err)
		stop()
		os.Exit(1)
	}
}

// failureKind names the class of a failed run for the error line on stderr
func failureKind(err error) string {
	switch {
	case core.IsNotFoundError(err):
		return "input not found"
	case core.IsSelectionError(err):
		return "column selection"
	case core.IsComputationError(err):
		return "numeric computation"
	case errors.IsAppError(err):
		return strings.ToLower(errors.GetCode(err))
	default:
		return "unexpected"
	}
}

type options struct {
	input      string
	output     string
	report     string
	configFile string
	logLevel   string
	sheet      string
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "semprep",
		Short: "Prepare the survey SEM excerpt for the interactive teaching page",
		Long: `Load a survey dataset, select the SEM teaching columns, compute descriptive
statistics, fit the teaching SEM model and export everything to one JSON file.

Example: semprep --input BKSPublic.parquet --output data/bks_excerpt.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(opts.input)
			if err != nil {
				return errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrInputNotFound, opts.input))
			}
			if info.IsDir() {
				return errors.InvalidInput(fmt.Sprintf("input %q is a directory", opts.input))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, opts)
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return run(cmd, cfg, opts.input)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "Path to the survey dataset (.csv, .tsv, .xlsx, .parquet)")
	cmd.Flags().StringVar(&opts.output, "output", config.DefaultOutputPath, "Output JSON path")
	cmd.Flags().StringVar(&opts.report, "report", "", "Optional HTML summary path")
	cmd.Flags().StringVar(&opts.configFile, "config", "", "Optional YAML configuration file")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (ERROR, WARN, INFO, DEBUG, TRACE)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "Worksheet to read from an .xlsx input (default: first sheet)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// applyFlags overrides configuration with the flags the user actually set
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output.Path = opts.output
	}
	if flags.Changed("report") {
		cfg.Output.ReportPath = opts.report
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("sheet") {
		cfg.Input.Sheet = opts.sheet
	}
}

func run(cmd *cobra.Command, cfg *config.Config, input string) error {
	level, err := internal.ParseLogLevel(cfg.Logging.Level)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	logger := internal.NewLogger(level)

	service := app.NewPrepareService(app.PrepareDeps{
		Reader: tabular.NewDataReader(
			tabular.WithSheet(cfg.Input.Sheet),
			tabular.WithLogger(logger),
		),
		Describer: describe.NewDescriber(),
		Estimator: sem.NewEstimator(
			sem.WithMaxIterations(cfg.Estimator.MaxIterations),
			sem.WithGradientTolerance(cfg.Estimator.GradientTolerance),
			sem.WithLogger(logger),
		),
		Exporter: export.NewJSONExporter(logger),
		Reporter: export.NewHTMLReporter(logger),
		Out:      cmd.OutOrStdout(),
		Logger:   logger,
	})

	_, err = service.Run(cmd.Context(), app.PrepareRequest{
		InputPath:  input,
		OutputPath: cfg.Output.Path,
		ReportPath: cfg.Output.ReportPath,
	})
	return err
}
