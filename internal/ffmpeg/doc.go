// Package ffmpeg drives the ffmpeg and ffprobe command-line tools.
//
// Argument construction is kept in pure functions (EncodeArgs, SliceArgs,
// ConcatArgs, ReverseArgs, ProbeArgs) so the exact command lines can be
// tested and recorded in the manifest. Execution goes through the Runner
// interface; tests substitute a fake, production code uses ExecRunner.
// Failures are never retried and surface as services.ErrExternalTool with
// the captured stderr attached.
package ffmpeg
