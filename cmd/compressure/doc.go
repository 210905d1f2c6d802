// Package main hosts the compressure CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the logger, opens the
// manifest and history journal, and hands each request to the pipeline
// package. Commands print results on stdout (tables, or JSON with --json) and
// logs on stderr, so output can be piped safely.
//
// Keep this package thin: new behaviour belongs in the internal packages and
// is only surfaced here through flags.
package main
