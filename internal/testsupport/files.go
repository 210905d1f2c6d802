package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and its parents, holding size filler bytes. A size
// <= 0 writes a single byte. The stub tools never decode media, so content
// only has to exist.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteExecutable writes a /bin/sh script named name into dir and returns its path.
func WriteExecutable(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// stubFFmpegBody creates the file named by its last argument, which is the
// output path for every command compressure builds.
const stubFFmpegBody = `for last; do :; done
: > "$last"
`

// stubFFprobeBody reports one video stream of %d frames at 24 fps.
const stubFFprobeBody = `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"mpeg4","pix_fmt":"yuv420p","width":64,"height":64,"r_frame_rate":"24/1","nb_frames":"%d"}],"format":{"format_name":"avi","duration":"1.000000","size":"2048","bit_rate":"16384"}}
JSON
`

// WriteMediaStubs writes ffmpeg and ffprobe stand-ins into dir. Every probed
// file reports frames frames.
func WriteMediaStubs(t testing.TB, dir string, frames int) (ffmpegPath, ffprobePath string) {
	t.Helper()
	ffmpegPath = WriteExecutable(t, dir, "ffmpeg", stubFFmpegBody)
	ffprobePath = WriteExecutable(t, dir, "ffprobe", fmt.Sprintf(stubFFprobeBody, frames))
	return ffmpegPath, ffprobePath
}
