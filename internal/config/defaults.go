package config

const (
	defaultConfigPath         = "~/.config/compressure/config.toml"
	defaultWorkDir            = "~/.cache/compressure/work"
	defaultManifestPath       = "~/.cache/compressure/manifest.json"
	defaultJournalPath        = "~/.local/state/compressure/history.db"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultEncoder            = "libx264"
	defaultGOPSize            = 6000
	defaultSuperframeSize     = 6
	defaultTimelineFrequency  = 0.5
	defaultTimelineSamples    = 400
	defaultTimelineMode       = "scaled"
	defaultStayProbability    = 0.9
	defaultSecondaryFrequency = 0
	defaultSecondaryAmplitude = 0
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:      defaultWorkDir,
			ManifestPath: defaultManifestPath,
			JournalPath:  defaultJournalPath,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Encoding: Encoding{
			Encoder: defaultEncoder,
			GOPSize: defaultGOPSize,
		},
		Slicing: Slicing{
			SuperframeSize: defaultSuperframeSize,
		},
		Timeline: Timeline{
			Frequency:          defaultTimelineFrequency,
			Samples:            defaultTimelineSamples,
			SecondaryFrequency: defaultSecondaryFrequency,
			SecondaryAmplitude: defaultSecondaryAmplitude,
			Mode:               defaultTimelineMode,
			StayProbability:    defaultStayProbability,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
