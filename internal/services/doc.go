// Package services defines shared utilities consumed by the pipeline stages and
// the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and source names for
//     logging.
//   - Structured error markers plus the Wrap helper, and ToolError for failed
//     external commands with their captured stderr.
//   - Hint, which turns a classified failure into an operator-facing next step.
package services
