package manifest_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"compressure/internal/manifest"
)

func openManifest(t *testing.T, path string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Open(path, manifest.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func writeChunks(t *testing.T, dir string, n int) []string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	chunks := make([]string, n)
	for i := range n {
		chunks[i] = filepath.Join(dir, fmt.Sprintf("chunk_%d.avi", i))
		if err := os.WriteFile(chunks[i], []byte("chunk"), 0o644); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}
	return chunks
}

func TestOpenInitializesVersionedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "manifest.json")
	openManifest(t, path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["version"] != float64(manifest.Version) {
		t.Fatalf("unexpected version %v", raw["version"])
	}
	if sources, ok := raw["sources"].(map[string]any); !ok || len(sources) != 0 {
		t.Fatalf("expected empty sources object, got %v", raw["sources"])
	}
}

func TestOpenExpectExistingMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	_, err := manifest.Open(path, manifest.Options{ExpectExisting: true})
	if !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("expected no file to be created")
	}
}

func TestOpenRejectsMalformedManifest(t *testing.T) {
	tests := map[string]string{
		"garbage":        "{not json",
		"no version":     `{"sources":{}}`,
		"wrong version":  `{"version":2,"sources":{}}`,
		"string version": `{"version":"0.1","sources":{}}`,
		"no sources":     `{"version":1}`,
		"unknown field":  `{"version":1,"sources":{},"extra":true}`,
		"name mismatch":  `{"version":1,"sources":{"a.mp4":{"name":"b.mp4","path":"/a.mp4","encodes":{}}}}`,
		"bad slices":     `{"version":1,"sources":{"a.mp4":{"name":"a.mp4","path":"/a.mp4","encodes":{"x":{"artifact":"/x.avi","slices":{"6":{"dir":"d","chunks":0}}}}}}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "manifest.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := manifest.Open(path, manifest.Options{})
			if !errors.Is(err, manifest.ErrMalformedManifest) {
				t.Fatalf("expected ErrMalformedManifest, got %v", err)
			}
			after, _ := os.ReadFile(path)
			if string(after) != content {
				t.Fatal("malformed manifest must not be rewritten")
			}
		})
	}
}

func TestOpenIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	first := openManifest(t, path)

	if _, err := manifest.Open(path, manifest.Options{}); !errors.Is(err, manifest.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	second := openManifest(t, path)
	if second.Path() != path {
		t.Fatalf("unexpected path %q", second.Path())
	}
}

func TestSourceRegistration(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, filepath.Join(dir, "manifest.json"))
	sourcePath := filepath.Join(dir, "in", "clip.mp4")

	if _, err := m.GetSource(sourcePath); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	src, err := m.AddSource(sourcePath)
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if src.Name != "clip.mp4" || src.Path != sourcePath {
		t.Fatalf("unexpected source %+v", src)
	}

	got, err := m.GetSource("/elsewhere/clip.mp4")
	if err != nil {
		t.Fatalf("GetSource by basename: %v", err)
	}
	if got.Path != sourcePath {
		t.Fatalf("expected stored path %q, got %q", sourcePath, got.Path)
	}

	if _, err := m.AddSource(filepath.Join(dir, "other", "clip.mp4")); !errors.Is(err, manifest.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for basename collision, got %v", err)
	}
	if _, err := m.AddSource(sourcePath); !errors.Is(err, manifest.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for repeat registration, got %v", err)
	}
}

func TestAddEncodeRefusesSilentOverwrite(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, filepath.Join(dir, "manifest.json"))
	source := filepath.Join(dir, "clip.mp4")
	if _, err := m.AddSource(source); err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	input := manifest.EncodeInput{
		Artifact:   filepath.Join(dir, "work", "clip_transcoded_mpeg4_g=6000.avi"),
		Parameters: map[string]string{"encoder": "mpeg4", "gop": "6000"},
		Invocation: "ffmpeg -y -i clip.mp4 out.avi",
	}
	if _, err := m.AddEncode("/missing.mp4", "mpeg4_g=6000", input, false); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown source, got %v", err)
	}

	enc, err := m.AddEncode(source, "mpeg4_g=6000", input, false)
	if err != nil {
		t.Fatalf("AddEncode: %v", err)
	}
	if enc.Artifact != input.Artifact || enc.Parameters["gop"] != "6000" {
		t.Fatalf("unexpected encode %+v", enc)
	}

	if _, err := m.AddEncode(source, "mpeg4_g=6000", input, false); !errors.Is(err, manifest.ErrPersistenceOverwrite) {
		t.Fatalf("expected ErrPersistenceOverwrite, got %v", err)
	}

	input.Invocation = "ffmpeg -y -i clip.mp4 replaced.avi"
	if _, err := m.AddEncode(source, "mpeg4_g=6000", input, true); err != nil {
		t.Fatalf("overwrite AddEncode: %v", err)
	}
	got, err := m.GetEncode(source, "mpeg4_g=6000")
	if err != nil {
		t.Fatalf("GetEncode: %v", err)
	}
	if got.Invocation != input.Invocation {
		t.Fatalf("expected overwritten invocation, got %q", got.Invocation)
	}

	if _, err := m.AddEncode(source, "../escape", input, false); err == nil {
		t.Fatal("expected invalid encode name to be rejected")
	}
	if _, err := m.GetEncode(source, "libx264_g=6000"); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSlicesAreAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, filepath.Join(dir, "manifest.json"))
	source := filepath.Join(dir, "clip.mp4")
	artifact := filepath.Join(dir, "work", "clip_transcoded.avi")
	if _, err := m.AddSource(source); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := m.AddEncode(source, "enc", manifest.EncodeInput{Artifact: artifact}, false); err != nil {
		t.Fatalf("AddEncode: %v", err)
	}

	sliceDir := manifest.SliceDir(artifact, 6)
	if want := filepath.Join(dir, "work", "clip_transcoded.slices", "superframe=6"); sliceDir != want {
		t.Fatalf("SliceDir = %q, want %q", sliceDir, want)
	}
	chunks := writeChunks(t, sliceDir, 12)

	missing := append(slices.Clone(chunks), filepath.Join(sliceDir, "chunk_12.avi"))
	if _, err := m.AddSlices(source, "enc", 6, missing); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected missing chunk to fail, got %v", err)
	}
	if _, err := m.GetSlices(source, "enc", 6); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected no slice set after failed add, got %v", err)
	}

	outside := writeChunks(t, filepath.Join(dir, "elsewhere"), 1)
	if _, err := m.AddSlices(source, "enc", 6, append(slices.Clone(chunks), outside...)); err == nil {
		t.Fatal("expected chunk outside the slice directory to be rejected")
	}

	shuffled := slices.Clone(chunks)
	slices.Reverse(shuffled)
	set, err := m.AddSlices(source, "enc", 6, shuffled)
	if err != nil {
		t.Fatalf("AddSlices: %v", err)
	}
	if !slices.Equal(set.Chunks, chunks) {
		t.Fatalf("expected natural chunk order, got %v", set.Chunks)
	}

	got, err := m.GetSlices(source, "enc", 6)
	if err != nil {
		t.Fatalf("GetSlices: %v", err)
	}
	if got.Dir != sliceDir || !slices.Equal(got.Chunks, chunks) {
		t.Fatalf("unexpected slice set %+v", got)
	}
	if _, err := m.GetSlices(source, "enc", 12); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other size, got %v", err)
	}

	if err := os.Remove(chunks[3]); err != nil {
		t.Fatalf("remove chunk: %v", err)
	}
	if _, err := m.GetSlices(source, "enc", 6); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected stale slice set to report ErrNotFound, got %v", err)
	}
}

func TestRemoveEncode(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, filepath.Join(dir, "manifest.json"))
	source := filepath.Join(dir, "clip.mp4")
	artifact := filepath.Join(dir, "work", "clip.avi")
	if _, err := m.AddSource(source); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(artifact, []byte("encoded"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if _, err := m.AddEncode(source, "enc", manifest.EncodeInput{Artifact: artifact}, false); err != nil {
		t.Fatalf("AddEncode: %v", err)
	}
	chunks := writeChunks(t, manifest.SliceDir(artifact, 6), 3)
	if _, err := m.AddSlices(source, "enc", 6, chunks); err != nil {
		t.Fatalf("AddSlices: %v", err)
	}

	if err := m.RemoveEncode(source, "enc"); err != nil {
		t.Fatalf("RemoveEncode: %v", err)
	}
	if _, err := os.Stat(artifact); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected artifact to be deleted")
	}
	if _, err := os.Stat(manifest.SliceRoot(artifact)); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected slice directories to be deleted")
	}
	if _, err := m.GetEncode(source, "enc"); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected encode entry removed, got %v", err)
	}
	if err := m.RemoveEncode(source, "enc"); !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second removal, got %v", err)
	}
}

func TestRemoveEncodeRetainsEntryWhenDeletionFails(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, filepath.Join(dir, "manifest.json"))
	source := filepath.Join(dir, "clip.mp4")
	// A non-empty directory at the artifact path makes os.Remove fail.
	artifact := filepath.Join(dir, "work", "clip.avi")
	if err := os.MkdirAll(filepath.Join(artifact, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := m.AddSource(source); err != nil {
		t.Fatalf("AddSource: %v", err)
	}
	if _, err := m.AddEncode(source, "enc", manifest.EncodeInput{Artifact: artifact}, false); err != nil {
		t.Fatalf("AddEncode: %v", err)
	}

	if err := m.RemoveEncode(source, "enc"); err == nil {
		t.Fatal("expected RemoveEncode to fail")
	}
	if _, err := m.GetEncode(source, "enc"); err != nil {
		t.Fatalf("expected entry to be retained, got %v", err)
	}
}

type summary struct {
	source   string
	path     string
	encode   string
	artifact string
	params   string
	sizes    string
}

func summarize(sources []manifest.Source) []summary {
	var out []summary
	for _, src := range sources {
		for _, enc := range src.Encodes {
			keys := make([]string, 0, len(enc.Parameters))
			for k, v := range enc.Parameters {
				keys = append(keys, k+"="+v)
			}
			slices.Sort(keys)
			out = append(out, summary{
				source:   src.Name,
				path:     src.Path,
				encode:   enc.Name,
				artifact: enc.Artifact,
				params:   strings.Join(keys, ","),
				sizes:    fmt.Sprint(enc.SuperframeSizes),
			})
		}
	}
	return out
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	m, err := manifest.Open(path, manifest.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	const nSources, nEncodes, nSizes = 3, 2, 3
	for s := range nSources {
		source := filepath.Join(dir, "in", fmt.Sprintf("source_%d.mp4", s))
		if _, err := m.AddSource(source); err != nil {
			t.Fatalf("AddSource: %v", err)
		}
		for e := range nEncodes {
			name := fmt.Sprintf("mpeg4_g=%d", 6000+e)
			artifact := filepath.Join(dir, "work", fmt.Sprintf("source_%d_%s.avi", s, name))
			input := manifest.EncodeInput{
				Artifact:   artifact,
				Parameters: map[string]string{"encoder": "mpeg4", "gop": fmt.Sprint(6000 + e)},
				Invocation: "ffmpeg -i " + source,
			}
			if _, err := m.AddEncode(source, name, input, false); err != nil {
				t.Fatalf("AddEncode: %v", err)
			}
			for k := range nSizes {
				size := 6 * (k + 1)
				chunks := writeChunks(t, manifest.SliceDir(artifact, size), k+2)
				if _, err := m.AddSlices(source, name, size, chunks); err != nil {
					t.Fatalf("AddSlices: %v", err)
				}
			}
		}
	}
	before := summarize(m.Sources())
	if len(before) != nSources*nEncodes {
		t.Fatalf("expected %d encodes, got %d", nSources*nEncodes, len(before))
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := openManifest(t, path)
	after := summarize(reopened.Sources())
	if !slices.Equal(before, after) {
		t.Fatalf("round trip mismatch:\nbefore %+v\nafter  %+v", before, after)
	}
	for _, row := range after {
		if row.sizes != "[6 12 18]" {
			t.Fatalf("unexpected slice sizes %s", row.sizes)
		}
	}
	set, err := reopened.GetSlices(filepath.Join(dir, "in", "source_1.mp4"), "mpeg4_g=6001", 18)
	if err != nil {
		t.Fatalf("GetSlices after reopen: %v", err)
	}
	if len(set.Chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(set.Chunks))
	}
}
