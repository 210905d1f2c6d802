package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"compressure/internal/ffmpeg"
	"compressure/internal/fileutil"
	"compressure/internal/journal"
	"compressure/internal/manifest"
	"compressure/internal/params"
)

// Concat joins chunks, in order, into output.
func (p *Pipeline) Concat(ctx context.Context, chunks []string, output string) (string, error) {
	started := time.Now()
	invocation, err := p.tool.Concat(ctx, chunks, output)
	p.finish(ctx, journal.Entry{Operation: "concat", Artifact: output, Invocation: invocation}, started, err)
	return invocation, err
}

// Reverse writes input played backwards to output. Reversals of arbitrary
// files are not cached; use an encode with reversal for that.
func (p *Pipeline) Reverse(ctx context.Context, input, output string) (string, error) {
	started := time.Now()
	invocation, err := p.tool.Reverse(ctx, input, output)
	p.finish(ctx, journal.Entry{
		Operation:  "reverse",
		Source:     filepath.Base(input),
		Artifact:   output,
		Invocation: invocation,
	}, started, err)
	return invocation, err
}

// ReverseLoop writes input followed by its reverse to output, so the result
// plays seamlessly on repeat.
func (p *Pipeline) ReverseLoop(ctx context.Context, input, output string) (string, error) {
	started := time.Now()
	entry := journal.Entry{Operation: "reverse_loop", Source: filepath.Base(input), Artifact: output}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		err = fmt.Errorf("ensure output directory: %w", err)
		p.finish(ctx, entry, started, err)
		return "", err
	}
	reversed := fileutil.TempSibling(output)
	defer func() { _ = fileutil.RemoveIfExists(reversed) }()

	if _, err := p.tool.Reverse(ctx, input, reversed); err != nil {
		p.finish(ctx, entry, started, err)
		return "", err
	}
	invocation, err := p.tool.Concat(ctx, []string{input, reversed}, output)
	entry.Invocation = invocation
	p.finish(ctx, entry, started, err)
	return invocation, err
}

// Probe returns ffprobe metadata for path.
func (p *Pipeline) Probe(ctx context.Context, path string) (ffmpeg.ProbeResult, error) {
	return p.tool.Probe(ctx, path)
}

// Remove deletes the encode of source under set, with its artifact and slices.
func (p *Pipeline) Remove(ctx context.Context, source string, set params.Set) error {
	name, err := set.Name()
	if err != nil {
		return err
	}
	return p.RemoveByName(ctx, source, name)
}

// RemoveByName deletes the encode of source recorded under name.
func (p *Pipeline) RemoveByName(ctx context.Context, source, name string) error {
	started := time.Now()
	key := manifest.SourceKey(source)
	entry := journal.Entry{Operation: "remove", Source: key, Encode: name}
	if enc, err := p.manifest.GetEncode(key, name); err == nil {
		entry.Artifact = enc.Artifact
	}
	err := p.manifest.RemoveEncode(key, name)
	p.finish(ctx, entry, started, err)
	return err
}
