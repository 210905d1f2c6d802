package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

const (
	defaultFFmpeg  = "ffmpeg"
	defaultFFprobe = "ffprobe"
)

// Requirement is an external binary compressure shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one Requirement. Path holds the
// executable LookPath found; Detail explains an unavailable binary.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// MediaRequirements lists the binaries every pipeline operation needs. Blank
// commands fall back to the bare names resolved from PATH.
func MediaRequirements(ffmpegCommand, ffprobeCommand string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     orDefault(ffmpegCommand, defaultFFmpeg),
			Description: "encoding, slicing, reversal and concatenation",
		},
		{
			Name:        "FFprobe",
			Command:     orDefault(ffprobeCommand, defaultFFprobe),
			Description: "frame rate and duration inspection",
		},
	}
}

// CheckMediaTools resolves ffmpeg and ffprobe.
func CheckMediaTools(ffmpegCommand, ffprobeCommand string) []Status {
	return Check(MediaRequirements(ffmpegCommand, ffprobeCommand))
}

// Check resolves every requirement against PATH (or as a path, when the
// command contains a separator).
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Available = true
			status.Path = resolved
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required statuses that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
