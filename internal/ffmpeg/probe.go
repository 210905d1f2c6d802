package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"compressure/internal/params"
	"compressure/internal/services"
)

// ProbeResult represents the parsed output from an ffprobe inspection.
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	PixFmt       string `json:"pix_fmt"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// ProbeArgs builds the ffprobe arguments for path.
func ProbeArgs(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", "--", path}
}

// Probe runs ffprobe against path and decodes the JSON response.
func (t *Tool) Probe(ctx context.Context, path string) (ProbeResult, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe inspect: empty path")
	}
	args := ProbeArgs(path)
	output, err := t.Runner.Run(ctx, t.FFprobe, args...)
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", Invocation(t.FFprobe, args), err)
	}
	return ParseProbe(output)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(output []byte) (ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r ProbeResult) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStream returns the first video stream.
func (r ProbeResult) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// FrameRate returns the video frame rate, preferring r_frame_rate.
func (r ProbeResult) FrameRate() (float64, error) {
	stream, ok := r.VideoStream()
	if !ok {
		return 0, errors.New("no video stream")
	}
	for _, candidate := range []string{stream.RFrameRate, stream.AvgFrameRate} {
		if fps, err := params.ParseRate(candidate); err == nil {
			return fps, nil
		}
	}
	return 0, fmt.Errorf("no usable frame rate (r_frame_rate=%q avg_frame_rate=%q)", stream.RFrameRate, stream.AvgFrameRate)
}

// DurationSeconds returns the video stream duration, falling back to the
// container duration, or 0 when neither is available.
func (r ProbeResult) DurationSeconds() float64 {
	if stream, ok := r.VideoStream(); ok {
		if d := parseFloat(stream.Duration); d > 0 {
			return d
		}
	}
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	return 0
}

// FrameCount returns nb_frames when ffprobe reports it, otherwise the
// duration multiplied by the frame rate, rounded down.
func (r ProbeResult) FrameCount() (int, error) {
	if stream, ok := r.VideoStream(); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(stream.NBFrames)); err == nil && n > 0 {
			return n, nil
		}
	}
	fps, err := r.FrameRate()
	if err != nil {
		return 0, err
	}
	duration := r.DurationSeconds()
	if duration <= 0 {
		return 0, errors.New("no usable duration")
	}
	return int(math.Floor(duration*fps + 1e-9)), nil
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r ProbeResult) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r ProbeResult) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
