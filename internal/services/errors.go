package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool         = errors.New("external tool error")
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrConfiguration        = errors.New("configuration error")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrPersistenceOverwrite = errors.New("persistence overwrite")
	ErrMalformedManifest    = errors.New("malformed manifest")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ToolError captures a failed external command along with its diagnostic output.
type ToolError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	var b strings.Builder
	b.WriteString(strings.Join(e.Command, " "))
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ToolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExternalTool}
	}
	return []error{ErrExternalTool, e.Err}
}

// Hint maps an error to the operator action most likely to resolve it.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedManifest):
		return "inspect or move the manifest file aside; it is never repaired automatically"
	case errors.Is(err, ErrPersistenceOverwrite):
		return "rerun with --overwrite to replace the existing artifact"
	case errors.Is(err, ErrAlreadyExists):
		return "a different source with the same file name is already registered; rename one of them"
	case errors.Is(err, ErrInvalidParameter):
		return "check encoder options and timeline flags"
	case errors.Is(err, ErrConfiguration):
		return "run compressure config validate"
	case errors.Is(err, ErrExternalTool):
		return "rerun the logged command manually to reproduce"
	case errors.Is(err, ErrNotFound):
		return "create the missing artifact first"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
