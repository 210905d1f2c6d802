package timeline

import (
	"fmt"
	"math"
	"strings"

	"compressure/internal/services"
)

// Mode selects how the raw waveform is mapped onto buffer indices.
type Mode string

const (
	// ModeRectified mirrors the waveform through zero and scales it into
	// [0, length-1].
	ModeRectified Mode = "rectified"
	// ModeScaled min-max normalizes the waveform into [1, length-2], leaving
	// the first and last chunk as the loop seam.
	ModeScaled Mode = "scaled"
)

// ParseMode accepts a mode name case-insensitively.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeRectified:
		return ModeRectified, nil
	case ModeScaled:
		return ModeScaled, nil
	default:
		return "", services.Wrap(services.ErrInvalidParameter, "timeline", "parse mode",
			fmt.Sprintf("unknown mode %q (want %q or %q)", value, ModeScaled, ModeRectified), nil)
	}
}

// ModeFromFlags resolves a pair of mutually exclusive mode switches. Neither
// switch selects rectified.
func ModeFromFlags(scaled, rectified bool) (Mode, error) {
	switch {
	case scaled && rectified:
		return "", services.Wrap(services.ErrInvalidParameter, "timeline", "select mode",
			"scaled and rectified modes are mutually exclusive", nil)
	case scaled:
		return ModeScaled, nil
	default:
		return ModeRectified, nil
	}
}

// Params describes one play path. Frequency is the number of primary cycles
// over the whole path; SecondaryAmplitude scales the secondary sine relative
// to the primary.
type Params struct {
	SuperframeSize     int
	BufferLength       int
	Samples            int
	Frequency          float64
	SecondaryFrequency float64
	SecondaryAmplitude float64
	Mode               Mode
}

// Validate reports the first invalid field.
func (p Params) Validate() error {
	switch {
	case p.SuperframeSize < 1:
		return invalidParams("superframe size must be positive, got %d", p.SuperframeSize)
	case p.BufferLength < 1:
		return invalidParams("buffer length must be positive, got %d", p.BufferLength)
	}
	if err := p.ValidateWaveform(); err != nil {
		return err
	}
	if p.Mode == ModeScaled && p.BufferLength < 3 {
		return invalidParams("scaled mode needs a buffer of at least 3 chunks, got %d", p.BufferLength)
	}
	return nil
}

// ValidateWaveform checks the fields that do not depend on the buffers:
// samples, frequencies, amplitude and mode. Callers that only learn
// BufferLength after slicing run it first.
func (p Params) ValidateWaveform() error {
	switch {
	case p.Samples < 1:
		return invalidParams("samples must be positive, got %d", p.Samples)
	case !finite(p.Frequency) || !finite(p.SecondaryFrequency) || !finite(p.SecondaryAmplitude):
		return invalidParams("frequencies and amplitude must be finite")
	case p.Mode != ModeRectified && p.Mode != ModeScaled:
		return invalidParams("unknown mode %q", p.Mode)
	}
	return nil
}

func invalidParams(format string, args ...any) error {
	return services.Wrap(services.ErrInvalidParameter, "timeline", "validate", fmt.Sprintf(format, args...), nil)
}

// Generate returns Samples target indices over a buffer of BufferLength
// chunks. The primary waveform is -cos over [0, 2π·Frequency]; a secondary
// sine over [0, 2π·SecondaryFrequency] is added when SecondaryAmplitude is
// non-zero. Equal params always produce equal output.
func Generate(p Params) ([]int, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	primary := linspace(0, 2*math.Pi*p.Frequency, p.Samples)
	secondary := linspace(0, 2*math.Pi*p.SecondaryFrequency, p.Samples)
	wave := make([]float64, p.Samples)
	for i := range wave {
		wave[i] = -math.Cos(primary[i])
		if p.SecondaryAmplitude != 0 {
			wave[i] += p.SecondaryAmplitude * math.Sin(secondary[i])
		}
	}

	if p.Mode == ModeScaled {
		return scaled(wave, p.BufferLength), nil
	}
	return rectified(wave, p.BufferLength, 1+math.Abs(p.SecondaryAmplitude)), nil
}

func rectified(wave []float64, length int, peak float64) []int {
	top := length - 1
	out := make([]int, len(wave))
	for i, w := range wave {
		out[i] = clamp(int(math.Floor(math.Abs(w)/peak*float64(top))), 0, top)
	}
	return out
}

func scaled(wave []float64, length int) []int {
	lo, hi := wave[0], wave[0]
	for _, w := range wave[1:] {
		lo = math.Min(lo, w)
		hi = math.Max(hi, w)
	}
	span := hi - lo
	out := make([]int, len(wave))
	for i, w := range wave {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = clamp(1+int(math.Floor((w-lo)/span*float64(length-3))), 1, length-2)
	}
	return out
}

// linspace matches the usual inclusive-endpoint definition: n evenly spaced
// points from start to stop, with the last point exactly stop.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
