// Package workers sizes the bounded pools used for external tool fan-out.
//
// Slicing runs one ffmpeg process per chunk. The pool bound comes from, in
// order: the request, the [slicing] workers setting (which the
// COMPRESSURE_SLICE_WORKERS environment variable overrides), and a default
// derived from GOMAXPROCS.
package workers
