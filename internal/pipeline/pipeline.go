package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"compressure/internal/config"
	"compressure/internal/ffmpeg"
	"compressure/internal/journal"
	"compressure/internal/logging"
	"compressure/internal/manifest"
	"compressure/internal/metrics"
	"compressure/internal/services"
)

// Pipeline runs encode, slice, and compose operations against one manifest.
// It is the only component that invokes ffmpeg.
type Pipeline struct {
	cfg      *config.Config
	manifest *manifest.Manifest
	tool     *ffmpeg.Tool
	journal  *journal.Journal
	metrics  *metrics.Recorder
	logger   *slog.Logger

	encodes singleflight.Group
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithJournal records every operation in j.
func WithJournal(j *journal.Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithMetrics reports operation counters to r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = r }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// New wires a pipeline. runner executes the binaries named in cfg.
func New(cfg *config.Config, m *manifest.Manifest, runner ffmpeg.Runner, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config is nil", nil)
	}
	if m == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "manifest is nil", nil)
	}
	if runner == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "runner is nil", nil)
	}
	p := &Pipeline{
		cfg:      cfg,
		manifest: m,
		tool:     ffmpeg.New(cfg.FFmpeg.FFmpegBinary, cfg.FFmpeg.FFprobeBinary, runner),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "pipeline")
	return p, nil
}

// Manifest returns the manifest the pipeline writes to.
func (p *Pipeline) Manifest() *manifest.Manifest {
	return p.manifest
}

// finish journals one operation, updates metrics, and logs its outcome. A
// journal write failure is logged and never masks the operation result.
func (p *Pipeline) finish(ctx context.Context, entry journal.Entry, started time.Time, err error) {
	entry.StartedAt = started
	entry.Duration = time.Since(started)
	if entry.RunID == "" {
		entry.RunID, _ = services.RunIDFromContext(ctx)
	}
	switch {
	case err != nil:
		entry.Status = journal.StatusFailed
		entry.Error = err.Error()
	case entry.Status == "":
		entry.Status = journal.StatusSucceeded
	}

	p.metrics.ObserveOperation(entry.Operation, string(entry.Status), entry.Duration)
	if _, jerr := p.journal.Record(ctx, entry); jerr != nil {
		logging.WarnWithContext(p.logger, "journal write failed", "journal_write_failed",
			logging.String("operation", entry.Operation),
			logging.String(logging.FieldErrorHint, "check journal_path permissions; history will be incomplete"),
			logging.String(logging.FieldImpact, "operation result unaffected"),
			logging.Error(jerr),
		)
	}

	logger := logging.WithContext(ctx, p.logger)
	attrs := []logging.Attr{
		logging.String("operation", entry.Operation),
		logging.String("status", string(entry.Status)),
		logging.Duration("elapsed", entry.Duration),
	}
	if entry.Source != "" {
		attrs = append(attrs, logging.Source(entry.Source))
	}
	if entry.Encode != "" {
		attrs = append(attrs, logging.Encode(entry.Encode))
	}
	if entry.SuperframeSize > 0 {
		attrs = append(attrs, logging.SuperframeSize(entry.SuperframeSize))
	}
	if entry.Artifact != "" {
		attrs = append(attrs, logging.String("artifact", entry.Artifact))
	}
	if err != nil {
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.Error(err),
		)
		logging.ErrorWithContext(logger, "operation failed", "operation_failed", attrs...)
		return
	}
	logger.Info("operation complete", logging.Args(attrs...)...)
}

func isNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
