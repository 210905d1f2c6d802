package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"compressure/internal/ffmpeg"
	"compressure/internal/journal"
	"compressure/internal/logging"
	"compressure/internal/manifest"
	"compressure/internal/params"
	"compressure/internal/services"
	"compressure/internal/workers"
)

// SliceRequest asks for the superframe chunks of one encode. A zero
// SuperframeSize or Workers falls back to the configured value.
type SliceRequest struct {
	Source         string
	Params         params.Set
	SuperframeSize int
	Workers        int
}

// SliceResult is the slice set that satisfied a request.
type SliceResult struct {
	Encode EncodeResult
	Slices manifest.SliceSet
	Cached bool
}

// Slice returns the chunks of the requested encode at the requested
// superframe size, encoding and slicing only what the manifest lacks. A
// failed slice run leaves no directory and no manifest record behind.
func (p *Pipeline) Slice(ctx context.Context, req SliceRequest) (SliceResult, error) {
	size := req.SuperframeSize
	if size == 0 {
		size = p.cfg.Slicing.SuperframeSize
	}
	if size <= 0 {
		return SliceResult{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "slice",
			fmt.Sprintf("superframe size must be positive, got %d", size), nil)
	}

	enc, err := p.Encode(ctx, EncodeRequest{Source: req.Source, Params: req.Params})
	if err != nil {
		return SliceResult{}, err
	}

	started := time.Now()
	ctx = services.WithSource(ctx, enc.Source)
	entry := journal.Entry{Operation: "slice", Source: enc.Source, Encode: enc.Name, SuperframeSize: size}

	set, err := p.manifest.GetSlices(enc.Source, enc.Name, size)
	if err == nil {
		p.metrics.CacheLookup("slices", true)
		entry.Status = journal.StatusCached
		entry.Artifact = set.Dir
		p.finish(ctx, entry, started, nil)
		return SliceResult{Encode: enc, Slices: set, Cached: true}, nil
	}
	if !isNotFound(err) {
		return SliceResult{}, err
	}
	p.metrics.CacheLookup("slices", false)

	set, err = p.slice(ctx, enc, size, req.Workers)
	entry.Artifact = manifest.SliceDir(enc.Artifact, size)
	p.finish(ctx, entry, started, err)
	if err != nil {
		return SliceResult{}, err
	}
	return SliceResult{Encode: enc, Slices: set}, nil
}

func (p *Pipeline) slice(ctx context.Context, enc EncodeResult, size, requestedWorkers int) (manifest.SliceSet, error) {
	probe, err := p.tool.Probe(ctx, enc.Artifact)
	if err != nil {
		return manifest.SliceSet{}, err
	}
	fps, err := probe.FrameRate()
	if err != nil {
		return manifest.SliceSet{}, services.Wrap(services.ErrExternalTool, "pipeline", "slice", enc.Artifact, err)
	}
	frames, err := probe.FrameCount()
	if err != nil {
		return manifest.SliceSet{}, services.Wrap(services.ErrExternalTool, "pipeline", "slice", enc.Artifact, err)
	}
	// Every start frame whose superframe fits, including the last one.
	count := frames - size + 1
	if count <= 0 {
		return manifest.SliceSet{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "slice",
			fmt.Sprintf("%s has %d frames, fewer than superframe size %d", enc.Artifact, frames, size), nil)
	}

	dir := manifest.SliceDir(enc.Artifact, size)
	if err := os.RemoveAll(dir); err != nil {
		return manifest.SliceSet{}, fmt.Errorf("clear slice directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return manifest.SliceSet{}, fmt.Errorf("create slice directory: %w", err)
	}

	poolSize := workers.Resolve(requestedWorkers, p.cfg.Slicing.Workers, count)
	logger := p.logger.With(
		logging.Source(enc.Source),
		logging.Encode(enc.Name),
		logging.SuperframeSize(size),
	)
	logger.Info("slicing encode",
		logging.Int("chunks", count),
		logging.Float64("fps", fps),
		logging.Int("workers", poolSize),
	)

	duration := float64(size) / fps
	chunks := make([]string, count)
	sampler := logging.NewProgressSampler(10)
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize)
	for i := range count {
		chunks[i] = ffmpeg.ChunkPath(dir, i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := p.tool.Slice(gctx, enc.Artifact, chunks[i], float64(i)/fps, duration); err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			p.metrics.ChunkWritten()
			if ok, percent := sampler.Observe(int(done.Add(1)), count); ok {
				logger.Info("slicing progress", logging.Float64("percent", percent))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logging.WarnWithContext(logger, "failed to remove partial slice directory", "slice_cleanup_failed",
				logging.String("dir", dir),
				logging.String(logging.FieldImpact, "the partial directory is cleared on the next slice attempt"),
				logging.Error(rmErr),
			)
		}
		return manifest.SliceSet{}, err
	}

	return p.manifest.AddSlices(enc.Source, enc.Name, size, chunks)
}
