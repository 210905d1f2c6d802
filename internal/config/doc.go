// Package config loads, normalizes, and validates compressure configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// COMPRESSURE_WORK_DIR and COMPRESSURE_SLICE_WORKERS. The Config type
// centralizes every knob the CLI and pipeline need: where derived artifacts and
// the manifest live, which ffmpeg binaries to run, and the default encode,
// slice, and timeline parameters.
package config
