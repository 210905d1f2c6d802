package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"compressure/internal/config"
	"compressure/internal/journal"
	"compressure/internal/manifest"
	"compressure/internal/metrics"
	"compressure/internal/params"
	"compressure/internal/pipeline"
	"compressure/internal/services"
	"compressure/internal/testsupport"
	"compressure/internal/timeline"
)

// fakeRunner stands in for ffmpeg and ffprobe. ffmpeg calls create their
// output file; ffprobe reports a 25 fps stream whose frame count comes from
// framesFor.
type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int

	framesFor func(path string) int
	failChunk string
	failOp    string

	started chan struct{}
	release chan struct{}
}

func newFakeRunner(frames int) *fakeRunner {
	return &fakeRunner{
		calls:     make(map[string]int),
		framesFor: func(string) int { return frames },
	}
}

func (r *fakeRunner) Run(_ context.Context, binary string, args ...string) ([]byte, error) {
	op := classify(binary, args)
	r.mu.Lock()
	r.calls[op]++
	failOp, failChunk := r.failOp, r.failChunk
	r.mu.Unlock()

	if op == "probe" {
		path := args[len(args)-1]
		return fmt.Appendf(nil, `{"streams":[{"codec_type":"video","r_frame_rate":"25/1","nb_frames":"%d"}],"format":{}}`, r.framesFor(path)), nil
	}
	if op == "encode" && r.started != nil {
		r.started <- struct{}{}
		<-r.release
	}

	output := args[len(args)-1]
	if err := os.WriteFile(output, []byte(op), 0o644); err != nil {
		return nil, err
	}
	if op == failOp || (failChunk != "" && filepath.Base(output) == failChunk) {
		return nil, &services.ToolError{Command: append([]string{binary}, args...), ExitCode: 1, Stderr: "simulated failure"}
	}
	return nil, nil
}

func (r *fakeRunner) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func classify(binary string, args []string) string {
	switch {
	case strings.Contains(binary, "ffprobe"):
		return "probe"
	case slices.Contains(args, "-copyinkf"):
		return "slice"
	case slices.Contains(args, "reverse"):
		return "reverse"
	case slices.ContainsFunc(args, func(a string) bool { return strings.HasPrefix(a, "concat:") }):
		return "concat"
	default:
		return "encode"
	}
}

type harness struct {
	cfg      *config.Config
	manifest *manifest.Manifest
	pipeline *pipeline.Pipeline
	runner   *fakeRunner
}

func newHarness(t *testing.T, runner *fakeRunner, opts ...pipeline.Option) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	m, err := manifest.Open(cfg.Paths.ManifestPath, manifest.Options{})
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	p, err := pipeline.New(cfg, m, runner, opts...)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return &harness{cfg: cfg, manifest: m, pipeline: p, runner: runner}
}

func (h *harness) source(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(h.cfg), "media", name)
	testsupport.WriteFile(t, path, 64)
	return path
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := pipeline.New(nil, nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	m, err := manifest.Open(cfg.Paths.ManifestPath, manifest.Options{})
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	defer m.Close()
	if _, err := pipeline.New(cfg, m, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for nil runner, got %v", err)
	}
}

func TestEncodeIsCachedAcrossEquivalentRequests(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()

	first, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: params.New("libx264", 0, nil)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if first.Cached {
		t.Fatal("first encode should not be cached")
	}
	if _, err := os.Stat(first.Artifact); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	spelled := params.New("libx264", 6000, map[string]string{"preset": "veryfast", "bf": "0"})
	second, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: spelled})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !second.Cached || second.Artifact != first.Artifact || second.Name != first.Name {
		t.Fatalf("expected cached hit on %s, got %+v", first.Artifact, second)
	}
	if got := runner.count("encode"); got != 1 {
		t.Fatalf("expected one ffmpeg encode, got %d", got)
	}

	entries, err := os.ReadDir(h.cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the artifact in the work dir, got %d entries", len(entries))
	}
}

func TestEncodeOverwriteReencodes(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	set := params.New("mpeg4", 0, nil)

	if _, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set, Overwrite: true})
	if err != nil {
		t.Fatalf("Encode overwrite: %v", err)
	}
	if again.Cached || runner.count("encode") != 2 {
		t.Fatalf("expected overwrite to re-encode, cached=%v calls=%d", again.Cached, runner.count("encode"))
	}
}

func TestEncodeRebuildsMissingArtifact(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	set := params.New("mpeg4", 0, nil)

	first, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := os.Remove(first.Artifact); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	second, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if second.Cached || runner.count("encode") != 2 {
		t.Fatalf("expected missing artifact to be rebuilt, got %+v", second)
	}
}

func TestEncodeRejectsInvalidParamsBeforeIO(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")

	_, err := h.pipeline.Encode(context.Background(), pipeline.EncodeRequest{
		Source: src,
		Params: params.New("libx264", 0, map[string]string{"crf": "18"}),
	})
	if !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("expected no external calls, got %v", runner.calls)
	}
	if sources := h.manifest.Sources(); len(sources) != 0 {
		t.Fatalf("expected no registered sources, got %d", len(sources))
	}
}

func TestEncodeSourceErrors(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	ctx := context.Background()

	missing := filepath.Join(testsupport.BaseDir(h.cfg), "media", "absent.mp4")
	if _, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: missing, Params: params.New("mpeg4", 0, nil)}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing source, got %v", err)
	}

	src := h.source(t, "clip.mp4")
	if _, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: params.New("mpeg4", 0, nil)}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	other := filepath.Join(testsupport.BaseDir(h.cfg), "elsewhere", "clip.mp4")
	testsupport.WriteFile(t, other, 16)
	if _, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: other, Params: params.New("mpeg4", 0, nil)}); !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for basename collision, got %v", err)
	}
}

func TestEncodeFailureRecordsNothing(t *testing.T) {
	runner := newFakeRunner(20)
	runner.failOp = "encode"
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	set := params.New("mpeg4", 0, nil)

	_, err := h.pipeline.Encode(context.Background(), pipeline.EncodeRequest{Source: src, Params: set})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	name, _ := set.Name()
	if _, err := h.manifest.GetEncode(src, name); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no encode record, got %v", err)
	}
	entries, _ := os.ReadDir(h.cfg.Paths.WorkDir)
	if len(entries) != 0 {
		t.Fatalf("expected partial output to be removed, found %d entries", len(entries))
	}
}

func TestReversedEncodeReusesForwardEncode(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()

	set := params.New("mpeg4", 0, nil)
	set.Reversed = true
	rev, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set})
	if err != nil {
		t.Fatalf("Encode reversed: %v", err)
	}
	if !strings.HasSuffix(rev.Name, "_reversed") {
		t.Fatalf("unexpected reversed name %q", rev.Name)
	}
	if runner.count("encode") != 1 || runner.count("reverse") != 1 {
		t.Fatalf("unexpected calls %v", runner.calls)
	}

	fwd, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: set.Forward()})
	if err != nil {
		t.Fatalf("Encode forward: %v", err)
	}
	if !fwd.Cached || fwd.Artifact == rev.Artifact {
		t.Fatalf("expected cached distinct forward encode, got %+v", fwd)
	}
}

func TestConcurrentEncodesShareOneTranscode(t *testing.T) {
	runner := newFakeRunner(20)
	runner.started = make(chan struct{}, 1)
	runner.release = make(chan struct{})
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")

	const n = 4
	results := make([]pipeline.EncodeResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = h.pipeline.Encode(context.Background(), pipeline.EncodeRequest{Source: src, Params: params.New("mpeg4", 0, nil)})
		}()
	}
	<-runner.started
	close(runner.release)
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("Encode %d: %v", i, errs[i])
		}
		if results[i].Artifact != results[0].Artifact {
			t.Fatalf("results disagree: %+v vs %+v", results[i], results[0])
		}
	}
	if got := runner.count("encode"); got != 1 {
		t.Fatalf("expected one transcode, got %d", got)
	}
}

func TestSliceIsCachedAndOrdered(t *testing.T) {
	runner := newFakeRunner(20)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	req := pipeline.SliceRequest{Source: src, Params: params.New("mpeg4", 0, nil), SuperframeSize: 6, Workers: 3}

	first, err := h.pipeline.Slice(ctx, req)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if first.Cached || len(first.Slices.Chunks) != 15 {
		t.Fatalf("expected 15 fresh chunks, got cached=%v n=%d", first.Cached, len(first.Slices.Chunks))
	}
	for i, chunk := range first.Slices.Chunks {
		if filepath.Base(chunk) != fmt.Sprintf("chunk_%d.avi", i) {
			t.Fatalf("chunk %d out of order: %s", i, chunk)
		}
	}
	if first.Slices.Dir != manifest.SliceDir(first.Encode.Artifact, 6) {
		t.Fatalf("unexpected slice dir %s", first.Slices.Dir)
	}

	second, err := h.pipeline.Slice(ctx, req)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if !second.Cached || !slices.Equal(second.Slices.Chunks, first.Slices.Chunks) {
		t.Fatalf("expected cached identical slice set, got %+v", second)
	}
	if runner.count("slice") != 15 || runner.count("probe") != 1 || runner.count("encode") != 1 {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
}

func TestSliceIsAllOrNothing(t *testing.T) {
	runner := newFakeRunner(20)
	runner.failChunk = "chunk_3.avi"
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	req := pipeline.SliceRequest{Source: src, Params: params.New("mpeg4", 0, nil), SuperframeSize: 6, Workers: 2}

	if _, err := h.pipeline.Slice(ctx, req); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	enc, err := h.pipeline.Encode(ctx, pipeline.EncodeRequest{Source: src, Params: req.Params})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := h.manifest.GetSlices(enc.Source, enc.Name, 6); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected no slice record after failure, got %v", err)
	}
	if _, err := os.Stat(manifest.SliceDir(enc.Artifact, 6)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected partial slice directory to be removed, got %v", err)
	}

	runner.mu.Lock()
	runner.failChunk = ""
	runner.mu.Unlock()
	retry, err := h.pipeline.Slice(ctx, req)
	if err != nil {
		t.Fatalf("Slice retry: %v", err)
	}
	if retry.Cached || len(retry.Slices.Chunks) != 15 {
		t.Fatalf("expected a fresh slice set on retry, got %+v", retry)
	}
}

func TestSliceRejectsShortEncode(t *testing.T) {
	runner := newFakeRunner(4)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")

	_, err := h.pipeline.Slice(context.Background(), pipeline.SliceRequest{Source: src, Params: params.New("mpeg4", 0, nil), SuperframeSize: 6})
	if !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if runner.count("slice") != 0 {
		t.Fatalf("expected no chunk extraction, got %d", runner.count("slice"))
	}
}

func TestComposeWalksTimeline(t *testing.T) {
	runner := newFakeRunner(15)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	set := params.New("mpeg4", 0, nil)
	output := filepath.Join(t.TempDir(), "out.avi")

	result, err := h.pipeline.Compose(ctx, pipeline.ComposeRequest{
		Buffers:        []pipeline.BufferSpec{{Source: src}},
		Params:         set,
		SuperframeSize: 6,
		Timeline: timeline.Params{
			Samples:   5,
			Frequency: 1,
			Mode:      timeline.ModeRectified,
		},
		StayProbability: 0.9,
		Seed:            7,
		Output:          output,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !slices.Equal(result.Timeline, []int{9, 0, 9, 0, 9}) {
		t.Fatalf("unexpected timeline %v", result.Timeline)
	}

	fwd, err := h.pipeline.Slice(ctx, pipeline.SliceRequest{Source: src, Params: set, SuperframeSize: 6})
	if err != nil {
		t.Fatalf("Slice forward: %v", err)
	}
	reversed := set
	reversed.Reversed = true
	bwd, err := h.pipeline.Slice(ctx, pipeline.SliceRequest{Source: src, Params: reversed, SuperframeSize: 6})
	if err != nil {
		t.Fatalf("Slice backward: %v", err)
	}
	if !fwd.Cached || !bwd.Cached {
		t.Fatal("expected compose to have sliced both directions")
	}

	f, b := fwd.Slices.Chunks, bwd.Slices.Chunks
	want := []string{f[0], f[9], b[9], f[9], b[9], f[9]}
	if !slices.Equal(result.Chunks, want) {
		t.Fatalf("unexpected chunk walk\n got %v\nwant %v", result.Chunks, want)
	}
	if runner.count("concat") != 1 {
		t.Fatalf("expected one concat, got %d", runner.count("concat"))
	}
	if _, err := os.Stat(output); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestComposeTruncatesUnequalBuffers(t *testing.T) {
	runner := newFakeRunner(15)
	runner.framesFor = func(path string) int {
		if strings.Contains(filepath.Base(path), "other") {
			return 12
		}
		return 15
	}
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")
	back := h.source(t, "other.mp4")

	result, err := h.pipeline.Compose(context.Background(), pipeline.ComposeRequest{
		Buffers:        []pipeline.BufferSpec{{Source: src, Backward: back}},
		Params:         params.New("mpeg4", 0, nil),
		SuperframeSize: 6,
		Timeline: timeline.Params{
			Samples:   40,
			Frequency: 2,
			Mode:      timeline.ModeRectified,
		},
		StayProbability: 1,
		Output:          filepath.Join(t.TempDir(), "out.avi"),
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if slices.Max(result.Timeline) != 6 {
		t.Fatalf("expected timeline bounded by the 7-chunk buffer, got max %d", slices.Max(result.Timeline))
	}
	for _, chunk := range result.Chunks {
		var index int
		if _, err := fmt.Sscanf(filepath.Base(chunk), "chunk_%d.avi", &index); err != nil || index > 6 {
			t.Fatalf("chunk %s lies beyond the truncated length", chunk)
		}
	}
	if runner.count("reverse") != 0 {
		t.Fatal("explicit backward source should not be reversed")
	}
}

func TestComposeValidatesRequest(t *testing.T) {
	h := newHarness(t, newFakeRunner(15))
	ctx := context.Background()

	if _, err := h.pipeline.Compose(ctx, pipeline.ComposeRequest{Output: "out.avi"}); !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter without buffers, got %v", err)
	}
	src := h.source(t, "clip.mp4")
	if _, err := h.pipeline.Compose(ctx, pipeline.ComposeRequest{Buffers: []pipeline.BufferSpec{{Source: src}}}); !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter without output, got %v", err)
	}
	if _, err := h.pipeline.Compose(ctx, pipeline.ComposeRequest{
		Buffers:         []pipeline.BufferSpec{{Source: src}},
		Timeline:        timeline.Params{Samples: 5, Frequency: 1, Mode: timeline.ModeRectified},
		StayProbability: 2,
		Output:          "out.avi",
	}); !errors.Is(err, services.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for stay probability, got %v", err)
	}
}

func TestComposeRejectsInvalidTimelineBeforeIO(t *testing.T) {
	runner := newFakeRunner(15)
	h := newHarness(t, runner)
	src := h.source(t, "clip.mp4")

	tests := map[string]timeline.Params{
		"zero samples":  {Samples: 0, Frequency: 1, Mode: timeline.ModeRectified},
		"nan frequency": {Samples: 5, Frequency: math.NaN(), Mode: timeline.ModeRectified},
		"missing mode":  {Samples: 5, Frequency: 1},
		"unknown mode":  {Samples: 5, Frequency: 1, Mode: "sawtooth"},
	}
	for name, tp := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.pipeline.Compose(context.Background(), pipeline.ComposeRequest{
				Buffers:        []pipeline.BufferSpec{{Source: src}},
				Params:         params.New("mpeg4", 0, nil),
				SuperframeSize: 6,
				Timeline:       tp,
				Output:         filepath.Join(t.TempDir(), "out.avi"),
			})
			if !errors.Is(err, services.ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	for _, op := range []string{"encode", "reverse", "probe", "slice", "concat"} {
		if got := runner.count(op); got != 0 {
			t.Fatalf("expected no %s calls, got %d", op, got)
		}
	}
	if sources := h.manifest.Sources(); len(sources) != 0 {
		t.Fatalf("expected manifest untouched, got %d sources", len(sources))
	}
}

func TestReverseLoop(t *testing.T) {
	runner := newFakeRunner(15)
	h := newHarness(t, runner)
	input := h.source(t, "clip.avi")
	outDir := t.TempDir()
	output := filepath.Join(outDir, "loop.avi")

	invocation, err := h.pipeline.ReverseLoop(context.Background(), input, output)
	if err != nil {
		t.Fatalf("ReverseLoop: %v", err)
	}
	if !strings.Contains(invocation, "concat:"+input+"|") {
		t.Fatalf("expected concat of input and its reverse, got %q", invocation)
	}
	if runner.count("reverse") != 1 || runner.count("concat") != 1 {
		t.Fatalf("unexpected calls %v", runner.calls)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "loop.avi" {
		t.Fatalf("expected only the loop output, got %v", entries)
	}
}

func TestRemoveDeletesEncodeAndJournals(t *testing.T) {
	runner := newFakeRunner(20)
	cfg := testsupport.NewConfig(t)
	j, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()
	m, err := manifest.Open(cfg.Paths.ManifestPath, manifest.Options{})
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	defer m.Close()
	p, err := pipeline.New(cfg, m, runner, pipeline.WithJournal(j))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h := &harness{cfg: cfg, manifest: m, pipeline: p, runner: runner}
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	set := params.New("mpeg4", 0, nil)

	sliced, err := p.Slice(ctx, pipeline.SliceRequest{Source: src, Params: set, SuperframeSize: 6})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if err := p.Remove(ctx, src, set); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(sliced.Encode.Artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected artifact removed, got %v", err)
	}
	if _, err := os.Stat(manifest.SliceRoot(sliced.Encode.Artifact)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected slices removed, got %v", err)
	}
	if _, err := m.GetEncode(src, sliced.Encode.Name); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected encode entry dropped, got %v", err)
	}
	if err := p.Remove(ctx, src, set); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected second remove to be ErrNotFound, got %v", err)
	}

	history, err := j.List(ctx, journal.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ops := make([]string, 0, len(history))
	for _, entry := range history {
		ops = append(ops, entry.Operation+"/"+string(entry.Status))
	}
	want := []string{"remove/failed", "remove/succeeded", "slice/succeeded", "encode/succeeded"}
	if !slices.Equal(ops, want) {
		t.Fatalf("unexpected journal %v, want %v", ops, want)
	}
}

func TestMetricsCountCacheHits(t *testing.T) {
	runner := newFakeRunner(20)
	recorder := metrics.New()
	h := newHarness(t, runner, pipeline.WithMetrics(recorder))
	src := h.source(t, "clip.mp4")
	ctx := context.Background()
	req := pipeline.SliceRequest{Source: src, Params: params.New("mpeg4", 0, nil), SuperframeSize: 6}

	for range 2 {
		if _, err := h.pipeline.Slice(ctx, req); err != nil {
			t.Fatalf("Slice: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "compressure.prom")
	if err := recorder.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, line := range []string{
		`compressure_cache_lookups_total{kind="encode",result="hit"} 1`,
		`compressure_cache_lookups_total{kind="slices",result="hit"} 1`,
		`compressure_slice_chunks_written_total 15`,
	} {
		if !strings.Contains(string(data), line) {
			t.Fatalf("textfile missing %q:\n%s", line, data)
		}
	}
}
