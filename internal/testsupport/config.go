package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"compressure/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig returns a default config whose paths all live under a fresh
// temp directory. Directories are not created; call EnsureDirectories when a
// test needs them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		WorkDir:      filepath.Join(base, "work"),
		ManifestPath: filepath.Join(base, "state", "manifest.json"),
		JournalPath:  filepath.Join(base, "state", "history.db"),
		LogDir:       filepath.Join(base, "logs"),
	}
	cfg.Slicing.Workers = 2

	b := &configBuilder{t: t, baseDir: base, cfg: &cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b.cfg
}

// WithSuperframeSize overrides the default superframe size.
func WithSuperframeSize(size int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Slicing.SuperframeSize = size
	}
}

// WithMetricsTextfile enables the Prometheus textfile export under the base dir.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.Textfile = filepath.Join(b.baseDir, "metrics", "compressure.prom")
	}
}

// WithStubbedBinaries writes no-op executables for names (ffmpeg and
// ffprobe when empty) and prepends their directory to PATH for the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "exit 0\n")
		}
		prependPath(b.t, binDir)
	}
}

// WithMediaStubs points the ffmpeg and ffprobe binaries at working stand-ins
// (see WriteMediaStubs) so pipeline commands can run end to end.
func WithMediaStubs(frames int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FFmpeg.FFmpegBinary, b.cfg.FFmpeg.FFprobeBinary =
			WriteMediaStubs(b.t, filepath.Join(b.baseDir, "tools"), frames)
	}
}

func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
