package main

import (
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"compressure/internal/config"
	"compressure/internal/params"
	"compressure/internal/timeline"
)

// encodeFlags are shared by every command that derives an encode.
type encodeFlags struct {
	encoder    string
	gop        int
	options    []string
	pixFmt     string
	framerate  string
	cropSquare bool
	reverse    bool
}

func (f *encodeFlags) bind(cmd *cobra.Command, withReverse bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.encoder, "encoder", "", "Encoder (defaults to encoding.encoder)")
	flags.IntVarP(&f.gop, "gop", "g", 0, "Group of pictures size (defaults to encoding.gop_size)")
	flags.StringArrayVar(&f.options, "opt", nil, "Encoder option as key=value (repeatable)")
	flags.StringVar(&f.pixFmt, "pix-fmt", "", "Target pixel format")
	flags.StringVar(&f.framerate, "framerate", "", "Target framerate, e.g. 24 or 30000/1001")
	flags.BoolVar(&f.cropSquare, "crop-square", false, "Crop to a centred ih:ih square")
	if withReverse {
		flags.BoolVar(&f.reverse, "reverse", false, "Derive the reversed encode")
	}
}

func (f *encodeFlags) params(cfg *config.Config) (params.Set, error) {
	options, err := params.ParseOptions(f.options)
	if err != nil {
		return params.Set{}, err
	}
	encoder := strings.TrimSpace(f.encoder)
	if encoder == "" {
		encoder = cfg.Encoding.Encoder
	}
	gop := f.gop
	if gop == 0 {
		gop = cfg.Encoding.GOPSize
	}
	set := params.New(encoder, gop, options)
	set.PixelFormat = f.pixFmt
	set.Framerate = f.framerate
	set.CropSquare = f.cropSquare
	set.Reversed = f.reverse
	return set, nil
}

// timelineFlags shape the play path for compose and timeline.
type timelineFlags struct {
	samples            int
	frequency          float64
	secondaryFrequency float64
	secondaryAmplitude float64
	scaled             bool
	rectified          bool
}

func (f *timelineFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVarP(&f.samples, "samples", "n", 0, "Number of timeline samples (defaults to timeline.samples)")
	flags.Float64VarP(&f.frequency, "frequency", "f", 0, "Oscillation frequency (defaults to timeline.frequency)")
	flags.Float64Var(&f.secondaryFrequency, "secondary-frequency", 0, "Frequency of the secondary sine term")
	flags.Float64Var(&f.secondaryAmplitude, "secondary-amplitude", 0, "Amplitude of the secondary sine term")
	flags.BoolVar(&f.scaled, "scaled", false, "Min-max scale the waveform, keeping the first and last chunk unused")
	flags.BoolVar(&f.rectified, "rectified", false, "Rectify the waveform across the whole buffer")
}

// params merges explicitly set flags over the configured timeline defaults.
func (f *timelineFlags) params(cmd *cobra.Command, cfg *config.Config) (timeline.Params, error) {
	flags := cmd.Flags()
	p := timeline.Params{
		Samples:            cfg.Timeline.Samples,
		Frequency:          cfg.Timeline.Frequency,
		SecondaryFrequency: cfg.Timeline.SecondaryFrequency,
		SecondaryAmplitude: cfg.Timeline.SecondaryAmplitude,
	}
	if flags.Changed("samples") {
		p.Samples = f.samples
	}
	if flags.Changed("frequency") {
		p.Frequency = f.frequency
	}
	if flags.Changed("secondary-frequency") {
		p.SecondaryFrequency = f.secondaryFrequency
	}
	if flags.Changed("secondary-amplitude") {
		p.SecondaryAmplitude = f.secondaryAmplitude
	}

	var err error
	if f.scaled || f.rectified {
		p.Mode, err = timeline.ModeFromFlags(f.scaled, f.rectified)
	} else {
		p.Mode, err = timeline.ParseMode(cfg.Timeline.Mode)
	}
	if err != nil {
		return timeline.Params{}, err
	}
	return p, nil
}

func newSeed() uint64 {
	return rand.Uint64()
}
