package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"semprep/domain/core"
	"semprep/domain/excerpt"
	"semprep/domain/sem"
	"semprep/internal"
	"semprep/internal/errors"
	"semprep/ports"
)

// PrepareService runs the excerpt pipeline: load, select, describe, fit and
// export. Progress lines go to out; diagnostics go to the logger.
type PrepareService struct {
	reader    ports.TableReaderPort
	describer ports.DescriberPort
	estimator ports.EstimatorPort
	exporter  ports.ExporterPort
	reporter  ports.ReportPort
	out       io.Writer
	logger    *internal.Logger
}

// PrepareDeps are the collaborators of a PrepareService. Reporter is optional.
type PrepareDeps struct {
	Reader    ports.TableReaderPort
	Describer ports.DescriberPort
	Estimator ports.EstimatorPort
	Exporter  ports.ExporterPort
	Reporter  ports.ReportPort
	Out       io.Writer
	Logger    *internal.Logger
}

// PrepareRequest names the input file and the destinations of one run
type PrepareRequest struct {
	InputPath  string
	OutputPath string
	// ReportPath enables the HTML report when set
	ReportPath string
	RunID      core.RunID // optional, will be generated if empty
}

// PrepareResult summarizes a completed run
type PrepareResult struct {
	RunID         core.RunID
	LoadedRows    int
	LoadedColumns int
	CompleteCases int
	Document      *excerpt.Document
	Runtime       time.Duration
}

// NewPrepareService creates the pipeline service
func NewPrepareService(deps PrepareDeps) *PrepareService {
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	logger := deps.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PrepareService{
		reader:    deps.Reader,
		describer: deps.Describer,
		estimator: deps.Estimator,
		exporter:  deps.Exporter,
		reporter:  deps.Reporter,
		out:       out,
		logger:    logger,
	}
}

// Run executes every stage in order. Any failure aborts the run before the
// output file is written.
func (s *PrepareService) Run(ctx context.Context, req PrepareRequest) (*PrepareResult, error) {
	start := time.Now()
	if s.reader == nil || s.describer == nil || s.estimator == nil || s.exporter == nil {
		return nil, errors.InternalError("prepare service is missing a reader, describer, estimator or exporter")
	}
	runID := req.RunID
	if runID.IsEmpty() {
		runID = core.NewRunID()
	}
	logger := s.logger.With("run " + runID.Short())
	if req.OutputPath == "" {
		return nil, errors.InvalidInput("output path is required")
	}

	s.progress("Loading data from %s...", req.InputPath)
	table, err := s.reader.Read(ctx, req.InputPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", req.InputPath)
	}
	s.progress("Loaded %d rows, %d columns", table.NumRows(), table.NumColumns())
	result := &PrepareResult{
		RunID:         runID,
		LoadedRows:    table.NumRows(),
		LoadedColumns: table.NumColumns(),
	}

	s.progress("Selecting SEM columns...")
	selected, err := SelectSEMColumns(table)
	if err != nil {
		return nil, errors.Wrap(err, "column selection failed")
	}
	result.CompleteCases = selected.NumRows()
	s.progress("Selected %d columns, %d complete cases", selected.NumColumns(), selected.NumRows())
	if dropped := table.NumRows() - selected.NumRows(); dropped > 0 {
		logger.Info("dropped %d incomplete rows", dropped)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.progress("Computing descriptive statistics...")
	descriptive, err := s.describer.Describe(selected)
	if err != nil {
		return nil, errors.Wrap(err, "descriptive statistics failed")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.progress("Fitting SEM model...")
	fitStart := time.Now()
	semResult, err := FitSEMModel(ctx, s.estimator, selected, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("SEM fit took %s", time.Since(fitStart).Round(time.Millisecond))
	s.progress("Model fit: CFI=%s", formatIndex(semResult, "cfi"))

	doc := excerpt.NewDocument(descriptive, semResult)
	result.Document = doc

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.progress("Exporting to %s...", req.OutputPath)
	if err := s.exporter.Export(ctx, doc, req.OutputPath); err != nil {
		return nil, errors.Wrapf(err, "failed to export %s", req.OutputPath)
	}

	if req.ReportPath != "" && s.reporter != nil {
		if err := s.reporter.WriteReport(ctx, doc, req.ReportPath); err != nil {
			return nil, errors.Wrapf(err, "failed to write report %s", req.ReportPath)
		}
		logger.Info("report written to %s", req.ReportPath)
	}

	result.Runtime = time.Since(start)
	logger.Info("run completed in %s", result.Runtime.Round(time.Millisecond))
	s.progress("Done!")
	return result, nil
}

func (s *PrepareService) progress(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func formatIndex(result *sem.Result, key string) string {
	if v, ok := result.FitIndex(key); ok {
		return fmt.Sprintf("%g", v)
	}
	return "N/A"
}
