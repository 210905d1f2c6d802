package ffmpeg

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"compressure/internal/params"
	"compressure/internal/services"
)

// Tool binds the ffmpeg and ffprobe binaries to a Runner.
type Tool struct {
	FFmpeg  string
	FFprobe string
	Runner  Runner
}

// New returns a Tool. Blank binaries fall back to ffmpeg and ffprobe on PATH.
func New(ffmpegBinary, ffprobeBinary string, runner Runner) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Tool{FFmpeg: ffmpegBinary, FFprobe: ffprobeBinary, Runner: runner}
}

// EncodeArgs builds the transcode arguments for set. Reversal is not part of
// the transcode; see ReverseArgs.
func EncodeArgs(input, output string, set params.Set) ([]string, error) {
	norm, err := set.Normalize()
	if err != nil {
		return nil, err
	}
	encoderArgs, err := norm.EncoderArgs()
	if err != nil {
		return nil, err
	}

	args := []string{
		"-y", "-v", "error",
		"-i", input,
		"-g", strconv.Itoa(norm.GOPSize),
		"-strict", "-2",
		"-c:v", norm.Encoder,
	}
	args = append(args, encoderArgs...)
	if norm.PixelFormat != "" {
		args = append(args, "-pix_fmt", norm.PixelFormat)
	}
	if norm.Framerate != "" {
		args = append(args, "-r", norm.Framerate)
	}
	if norm.CropSquare {
		args = append(args, "-filter:v", "crop=ih:ih")
	}
	return append(args, output), nil
}

// SliceArgs builds the arguments that copy duration seconds starting at
// start out of input. Seeking happens on the output side so the chunk keeps
// the non-key frames that precede the next key frame.
func SliceArgs(input, output string, start, duration float64) []string {
	return []string{
		"-y", "-v", "error",
		"-i", input,
		"-c", "copy",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-copyinkf",
		output,
	}
}

// ConcatArgs builds the arguments that join chunks, in order, into output
// using the concat protocol.
func ConcatArgs(chunks []string, output string) []string {
	return []string{
		"-y", "-v", "error",
		"-i", "concat:" + strings.Join(chunks, "|"),
		"-c:a", "copy",
		"-c:v", "copy",
		output,
	}
}

// ReverseArgs builds the arguments that write input played backwards.
func ReverseArgs(input, output string) []string {
	return []string{"-y", "-v", "error", "-i", input, "-vf", "reverse", output}
}

// ChunkPath names chunk index i inside dir.
func ChunkPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk_%d.avi", i))
}

// Encode transcodes input into output and returns the invocation used.
func (t *Tool) Encode(ctx context.Context, input, output string, set params.Set) (string, error) {
	args, err := EncodeArgs(input, output, set)
	if err != nil {
		return "", err
	}
	return t.run(ctx, "encode", args)
}

// Slice extracts one chunk.
func (t *Tool) Slice(ctx context.Context, input, output string, start, duration float64) error {
	_, err := t.run(ctx, "slice", SliceArgs(input, output, start, duration))
	return err
}

// Concat joins chunks into output and returns the invocation used.
func (t *Tool) Concat(ctx context.Context, chunks []string, output string) (string, error) {
	if len(chunks) == 0 {
		return "", services.Wrap(services.ErrInvalidParameter, "ffmpeg", "concat", "no chunks to concatenate", nil)
	}
	return t.run(ctx, "concat", ConcatArgs(chunks, output))
}

// Reverse writes input played backwards to output and returns the invocation
// used.
func (t *Tool) Reverse(ctx context.Context, input, output string) (string, error) {
	return t.run(ctx, "reverse", ReverseArgs(input, output))
}

func (t *Tool) run(ctx context.Context, op string, args []string) (string, error) {
	invocation := Invocation(t.FFmpeg, args)
	if _, err := t.Runner.Run(ctx, t.FFmpeg, args...); err != nil {
		return invocation, services.Wrap(services.ErrExternalTool, "ffmpeg", op, invocation, err)
	}
	return invocation, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
