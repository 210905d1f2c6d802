package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"compressure/internal/logging"
	"compressure/internal/services"
)

// Runner executes an external binary and returns its standard output. A
// failed command returns a *services.ToolError carrying the captured stderr.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner returns a Runner that logs each invocation to logger.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{logger: logging.NewComponentLogger(logger, "ffmpeg")}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	logger := logging.WithContext(ctx, r.logger)
	invocation := Invocation(binary, args)
	logger.Debug("running external command", logging.String(logging.FieldCommand, invocation))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		toolErr := &services.ToolError{
			Command:  append([]string{binary}, args...),
			ExitCode: exitCode,
			Stderr:   stderr.String(),
			Err:      err,
		}
		// The caller reports the failure; this line keeps the raw exit details.
		logger.Debug("external command failed",
			logging.String(logging.FieldCommand, invocation),
			logging.Int("exit_code", exitCode),
			logging.Duration("elapsed", elapsed),
			logging.String("stderr", strings.TrimSpace(stderr.String())),
		)
		return stdout.Bytes(), toolErr
	}
	logger.Debug("external command finished",
		logging.String(logging.FieldCommand, invocation),
		logging.Duration("elapsed", elapsed),
	)
	return stdout.Bytes(), nil
}

// Invocation renders a command line for logs and for the manifest audit
// trail. Arguments containing whitespace or shell metacharacters are quoted.
func Invocation(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binary))
	for _, arg := range args {
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return `""`
	}
	if strings.ContainsAny(arg, " \t\n\"'\\$`|&;<>()*?[]#~") {
		return strconv.Quote(arg)
	}
	return arg
}
