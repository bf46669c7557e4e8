package etl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raaihank/speller/internal/patch"
	"github.com/raaihank/speller/internal/speller"
)

// Checker fetches suggestions for a list of texts.
type Checker interface {
	CheckAll(ctx context.Context, texts []string, progress speller.Progress) ([][]speller.Suggestion, error)
	Provider() string
}

// RunRecorder persists the outcome of a finished run.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *ProcessingResult, corrections []Correction) error
}

// MultiRecorder hands a run to every non-nil recorder and joins their errors.
func MultiRecorder(recorders ...RunRecorder) RunRecorder {
	return multiRecorder(recorders)
}

type multiRecorder []RunRecorder

func (m multiRecorder) RecordRun(ctx context.Context, result *ProcessingResult, corrections []Correction) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordRun(ctx, result, corrections); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pipeline reads records, corrects their text and writes them back out
type Pipeline struct {
	checker  Checker
	applier  *patch.Applier
	recorder RunRecorder
	progress speller.Progress
	logger   *zap.Logger
}

// NewPipeline creates a new correction pipeline. recorder and progress may be nil.
func NewPipeline(
	checker Checker,
	applier *patch.Applier,
	recorder RunRecorder,
	progress speller.Progress,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		checker:  checker,
		applier:  applier,
		recorder: recorder,
		progress: progress,
		logger:   logger,
	}
}

// ProcessFile corrects every selected record of inputPath.
// Nothing is written unless every record was corrected successfully.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath string, opts Options) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{
		RunID:      uuid.NewString(),
		Provider:   p.checker.Provider(),
		InputPath:  inputPath,
		OutputPath: opts.OutputPath,
		LogPath:    opts.LogPath,
		StartedAt:  start,
	}
	logger := p.logger.With(zap.String("run_id", result.RunID))

	logger.Info("Starting correction run",
		zap.String("input", inputPath),
		zap.String("format", string(DetectFileFormat(inputPath))),
		zap.String("output", opts.OutputPath),
		zap.Bool("filter", opts.FilterByCluster),
		zap.Int("limit", opts.Limit))

	records, err := ReadRecords(inputPath)
	if err != nil {
		return nil, err
	}
	result.RecordsRead = int64(len(records))

	if opts.FilterByCluster {
		records = FilterByCluster(records)
		logger.Debug("Filtered records by cluster", zap.Int("kept", len(records)))
	}
	records = Limit(records, opts.Limit)
	result.RecordsChecked = int64(len(records))

	spellerStart := time.Now()
	suggestions, err := p.checker.CheckAll(ctx, Texts(records), p.progress)
	if err != nil {
		return nil, fmt.Errorf("spellcheck failed: %w", err)
	}
	result.SpellerTime = time.Since(spellerStart)

	outcome, err := CorrectRecords(records, suggestions, p.applier)
	if err != nil {
		return nil, fmt.Errorf("applying corrections failed: %w", err)
	}
	result.RecordsChanged = int64(outcome.Changed)
	result.Corrections = int64(len(outcome.Corrections))

	if err := WriteRecords(opts.OutputPath, outcome.Records); err != nil {
		return nil, err
	}
	if opts.LogPath != "" {
		if err := WriteLog(opts.LogPath, outcome.Log()); err != nil {
			return nil, err
		}
	}

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(start)

	if p.recorder != nil {
		if err := p.recorder.RecordRun(ctx, result, outcome.Corrections); err != nil {
			logger.Warn("Failed to record run in audit store", zap.Error(err))
		}
	}

	logger.Info("Correction run completed",
		zap.Int64("records_read", result.RecordsRead),
		zap.Int64("records_checked", result.RecordsChecked),
		zap.Int64("records_changed", result.RecordsChanged),
		zap.Int64("corrections", result.Corrections),
		zap.Duration("speller_time", result.SpellerTime),
		zap.Duration("total_duration", result.Duration))

	return result, nil
}
