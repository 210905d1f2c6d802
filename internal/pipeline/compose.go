package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"compressure/internal/journal"
	"compressure/internal/logging"
	"compressure/internal/params"
	"compressure/internal/sequence"
	"compressure/internal/services"
	"compressure/internal/timeline"
)

// BufferSpec names the sources of one sequence buffer. The backward
// sequence comes from Backward when set, otherwise from the reversed encode
// of Source.
type BufferSpec struct {
	Source   string
	Backward string
}

// ComposeRequest drives one compose run. Timeline.SuperframeSize and
// Timeline.BufferLength are filled in from the sliced buffers.
type ComposeRequest struct {
	Buffers         []BufferSpec
	Params          params.Set
	SuperframeSize  int
	Workers         int
	Timeline        timeline.Params
	StayProbability float64
	Seed            uint64
	// Random overrides the seeded source when set.
	Random timeline.Source
	Output string
}

// ComposeResult reports the play path and the chunks concatenated into Output.
type ComposeResult struct {
	Output     string
	Timeline   []int
	Chunks     []string
	Invocation string
}

// Compose slices every buffer, walks the generated timeline across them, and
// concatenates the visited chunks into req.Output.
func (p *Pipeline) Compose(ctx context.Context, req ComposeRequest) (ComposeResult, error) {
	if len(req.Buffers) == 0 {
		return ComposeResult{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "compose", "no buffers", nil)
	}
	if strings.TrimSpace(req.Output) == "" {
		return ComposeResult{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "compose", "output path is empty", nil)
	}
	size := req.SuperframeSize
	if size == 0 {
		size = p.cfg.Slicing.SuperframeSize
	}
	if size < 1 {
		return ComposeResult{}, services.Wrap(services.ErrInvalidParameter, "pipeline", "compose",
			fmt.Sprintf("superframe size must be positive, got %d", size), nil)
	}
	if err := req.Timeline.ValidateWaveform(); err != nil {
		return ComposeResult{}, err
	}
	src := req.Random
	if src == nil {
		src = timeline.NewSource(req.Seed)
	}
	switcher, err := timeline.NewSwitcher(len(req.Buffers), req.StayProbability, src)
	if err != nil {
		return ComposeResult{}, err
	}

	forward := make([][]string, len(req.Buffers))
	backward := make([][]string, len(req.Buffers))
	length := -1
	for i, spec := range req.Buffers {
		fwd, bwd, err := p.bufferChunks(ctx, spec, req.Params, size, req.Workers)
		if err != nil {
			return ComposeResult{}, err
		}
		forward[i], backward[i] = fwd, bwd
		for _, n := range []int{len(fwd), len(bwd)} {
			if length < 0 || n < length {
				length = n
			}
		}
	}

	buffers := make([]*sequence.Buffer, len(req.Buffers))
	for i, spec := range req.Buffers {
		if len(forward[i]) != length || len(backward[i]) != length {
			logging.WarnWithContext(p.logger, "truncating buffer to shortest sequence", "buffer_truncated",
				logging.Source(filepath.Base(spec.Source)),
				logging.Int("forward", len(forward[i])),
				logging.Int("backward", len(backward[i])),
				logging.Int("length", length),
				logging.String(logging.FieldImpact, "trailing chunks are never visited"),
			)
		}
		buf, err := sequence.New(forward[i][:length], backward[i][:length], size)
		if err != nil {
			return ComposeResult{}, err
		}
		buffers[i] = buf
	}

	// Generate re-checks the length-dependent rules against the truncated buffers.
	tp := req.Timeline
	tp.SuperframeSize = size
	tp.BufferLength = length
	positions, err := timeline.Generate(tp)
	if err != nil {
		return ComposeResult{}, err
	}

	started := time.Now()
	chunks := walk(buffers, switcher, positions)
	p.metrics.ComposeSamples(len(chunks))

	entry := journal.Entry{
		Operation:      "compose",
		Source:         filepath.Base(req.Buffers[0].Source),
		SuperframeSize: size,
		Artifact:       req.Output,
	}
	invocation, err := p.tool.Concat(ctx, chunks, req.Output)
	entry.Invocation = invocation
	p.finish(ctx, entry, started, err)
	if err != nil {
		return ComposeResult{}, err
	}
	return ComposeResult{Output: req.Output, Timeline: positions, Chunks: chunks, Invocation: invocation}, nil
}

// walk emits the initial head of the active buffer unless the play path
// starts at position 0, then steps every buffer to each position and takes
// the active buffer's chunk. The switcher advances after every sample.
func walk(buffers []*sequence.Buffer, switcher *timeline.Switcher, positions []int) []string {
	chunks := make([]string, 0, len(positions)+1)
	if len(positions) == 0 || positions[0] != buffers[switcher.Active()].Position() {
		chunks = append(chunks, buffers[switcher.Active()].Head())
	}
	for _, loc := range positions {
		active := switcher.Active()
		var chunk string
		for i, buf := range buffers {
			head := buf.Step(&loc)
			if i == active {
				chunk = head
			}
		}
		chunks = append(chunks, chunk)
		switcher.Next()
	}
	return chunks
}

func (p *Pipeline) bufferChunks(ctx context.Context, spec BufferSpec, set params.Set, size, workerCount int) ([]string, []string, error) {
	fwd, err := p.Slice(ctx, SliceRequest{Source: spec.Source, Params: set.Forward(), SuperframeSize: size, Workers: workerCount})
	if err != nil {
		return nil, nil, fmt.Errorf("forward buffer %s: %w", filepath.Base(spec.Source), err)
	}

	backReq := SliceRequest{Source: spec.Source, Params: set.Forward(), SuperframeSize: size, Workers: workerCount}
	if strings.TrimSpace(spec.Backward) != "" {
		backReq.Source = spec.Backward
	} else {
		backReq.Params.Reversed = true
	}
	bwd, err := p.Slice(ctx, backReq)
	if err != nil {
		return nil, nil, fmt.Errorf("backward buffer %s: %w", filepath.Base(backReq.Source), err)
	}
	return fwd.Slices.Chunks, bwd.Slices.Chunks, nil
}
