// Package preflight provides readiness checks for the filesystem paths and
// external binaries that compressure depends on.
//
// These checks run in two contexts:
//   - Pipeline commands call RunAll after EnsureDirectories and refuse to
//     start when a check fails, rather than failing halfway through a slice.
//   - The CLI "compressure status" command renders every result as a table.
package preflight
