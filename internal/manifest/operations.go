package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"compressure/internal/fileutil"
	"compressure/internal/logging"
	"compressure/internal/services"
	"compressure/internal/textutil"
)

// SourceKey returns the manifest key for a source path: its NFC-normalized
// basename.
func SourceKey(path string) string {
	return textutil.NormalizeName(filepath.Base(path))
}

// SliceRoot returns the directory holding every slice set of an encode artifact.
func SliceRoot(artifact string) string {
	base := filepath.Base(artifact)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(artifact), stem+".slices")
}

// SliceDir returns the chunk directory for an encode artifact at one
// superframe size. It is derived, never stored, so relocating the artifact
// directory relocates its slices.
func SliceDir(artifact string, superframeSize int) string {
	return filepath.Join(SliceRoot(artifact), "superframe="+strconv.Itoa(superframeSize))
}

// GetSource returns the source registered under the basename of path.
func (m *Manifest) GetSource(path string) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.doc.Sources[SourceKey(path)]
	if !ok {
		return Source{}, services.Wrap(ErrNotFound, "manifest", "get source", SourceKey(path), nil)
	}
	return src.view(), nil
}

// AddSource registers path. A source with the same basename, from any
// directory, is a collision and fails with ErrAlreadyExists.
func (m *Manifest) AddSource(path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, fmt.Errorf("resolve source path: %w", err)
	}
	key := SourceKey(abs)
	if key == "" || key == "." || key == string(filepath.Separator) {
		return Source{}, services.Wrap(services.ErrInvalidParameter, "manifest", "add source", fmt.Sprintf("invalid source path %q", path), nil)
	}

	var added *sourceRecord
	err = m.mutate(func(doc *document) error {
		if existing, ok := doc.Sources[key]; ok {
			return services.Wrap(ErrAlreadyExists, "manifest", "add source",
				fmt.Sprintf("%s is already registered from %s", key, existing.Path), nil)
		}
		added = &sourceRecord{
			Name:    key,
			Path:    abs,
			AddedAt: time.Now().UTC(),
			Encodes: make(map[string]*encodeRecord),
		}
		doc.Sources[key] = added
		return nil
	})
	if err != nil {
		return Source{}, err
	}
	m.logger.Info("source registered", logging.Source(key), logging.String("path", abs))
	return added.view(), nil
}

// GetEncode returns the encode of source with the given canonical name.
func (m *Manifest) GetEncode(source, name string) (Encode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, enc, err := m.lookupEncode(m.doc, source, name, "get encode")
	if err != nil {
		return Encode{}, err
	}
	return enc.view(key, name), nil
}

// AddEncode records an encode under source. An existing encode of the same
// name fails with ErrPersistenceOverwrite unless overwrite is set; an
// overwrite drops the previous slice sets.
func (m *Manifest) AddEncode(source, name string, input EncodeInput, overwrite bool) (Encode, error) {
	if err := validateEncodeName(name); err != nil {
		return Encode{}, err
	}
	if strings.TrimSpace(input.Artifact) == "" {
		return Encode{}, services.Wrap(services.ErrInvalidParameter, "manifest", "add encode", "artifact path is empty", nil)
	}
	artifact, err := filepath.Abs(input.Artifact)
	if err != nil {
		return Encode{}, fmt.Errorf("resolve artifact path: %w", err)
	}

	key := SourceKey(source)
	var added *encodeRecord
	err = m.mutate(func(doc *document) error {
		src, ok := doc.Sources[key]
		if !ok {
			return services.Wrap(ErrNotFound, "manifest", "add encode", "source "+key, nil)
		}
		if _, exists := src.Encodes[name]; exists && !overwrite {
			return services.Wrap(ErrPersistenceOverwrite, "manifest", "add encode",
				fmt.Sprintf("%s already has encode %s", key, name), nil)
		}
		added = &encodeRecord{
			Artifact:   artifact,
			Parameters: maps.Clone(input.Parameters),
			Invocation: input.Invocation,
			CreatedAt:  time.Now().UTC(),
			Slices:     make(map[int]sliceRecord),
		}
		src.Encodes[name] = added
		return nil
	})
	if err != nil {
		return Encode{}, err
	}
	m.logger.Info("encode recorded",
		logging.Source(key),
		logging.Encode(name),
		logging.Bool("overwrite", overwrite),
	)
	return added.view(key, name), nil
}

// GetSlices returns the slice set of an encode at superframeSize. Chunks are
// listed from the derived directory in natural order; a directory that no
// longer holds the recorded number of chunks reports ErrNotFound so callers
// re-slice.
func (m *Manifest) GetSlices(source, name string, superframeSize int) (SliceSet, error) {
	m.mu.RLock()
	key, enc, err := m.lookupEncode(m.doc, source, name, "get slices")
	var rec sliceRecord
	var ok bool
	if err == nil {
		rec, ok = enc.Slices[superframeSize]
	}
	m.mu.RUnlock()
	if err != nil {
		return SliceSet{}, err
	}
	if !ok {
		return SliceSet{}, services.Wrap(ErrNotFound, "manifest", "get slices",
			fmt.Sprintf("%s/%s has no slices at superframe size %d", key, name, superframeSize), nil)
	}

	dir := SliceDir(enc.Artifact, superframeSize)
	chunks, err := ListChunks(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return SliceSet{}, fmt.Errorf("list slices: %w", err)
	}
	if len(chunks) != rec.Chunks {
		m.logger.Warn("slice directory disagrees with manifest",
			logging.String(logging.FieldEventType, "slice_set_stale"),
			logging.String(logging.FieldErrorHint, "the slice set will be rebuilt on the next slice request"),
			logging.Source(key),
			logging.Encode(name),
			logging.Int("recorded", rec.Chunks),
			logging.Int("found", len(chunks)),
		)
		return SliceSet{}, services.Wrap(ErrNotFound, "manifest", "get slices",
			fmt.Sprintf("%s holds %d chunks, manifest records %d", dir, len(chunks), rec.Chunks), nil)
	}
	return SliceSet{Source: key, Encode: name, SuperframeSize: superframeSize, Dir: dir, Chunks: chunks}, nil
}

// AddSlices records a completed slice set. Every chunk must exist inside the
// derived slice directory, otherwise nothing is recorded. A previous record
// for the same size is replaced.
func (m *Manifest) AddSlices(source, name string, superframeSize int, chunks []string) (SliceSet, error) {
	if superframeSize <= 0 {
		return SliceSet{}, services.Wrap(services.ErrInvalidParameter, "manifest", "add slices",
			fmt.Sprintf("superframe size must be positive, got %d", superframeSize), nil)
	}
	if len(chunks) == 0 {
		return SliceSet{}, services.Wrap(services.ErrInvalidParameter, "manifest", "add slices", "no chunks", nil)
	}

	m.mu.RLock()
	key, enc, err := m.lookupEncode(m.doc, source, name, "add slices")
	m.mu.RUnlock()
	if err != nil {
		return SliceSet{}, err
	}

	dir := SliceDir(enc.Artifact, superframeSize)
	ordered := make([]string, len(chunks))
	for i, chunk := range chunks {
		clean := filepath.Clean(chunk)
		if filepath.Dir(clean) != dir {
			return SliceSet{}, services.Wrap(services.ErrInvalidParameter, "manifest", "add slices",
				fmt.Sprintf("chunk %s is outside %s", chunk, dir), nil)
		}
		if !fileutil.FileExists(clean) {
			return SliceSet{}, services.Wrap(ErrNotFound, "manifest", "add slices", "missing chunk "+clean, nil)
		}
		ordered[i] = clean
	}
	fileutil.SortNatural(ordered)

	rel, err := filepath.Rel(filepath.Dir(enc.Artifact), dir)
	if err != nil {
		rel = dir
	}
	err = m.mutate(func(doc *document) error {
		_, current, err := m.lookupEncode(doc, source, name, "add slices")
		if err != nil {
			return err
		}
		if current.Artifact != enc.Artifact {
			return services.Wrap(ErrPersistenceOverwrite, "manifest", "add slices",
				"encode was replaced while slicing", nil)
		}
		current.Slices[superframeSize] = sliceRecord{Dir: rel, Chunks: len(ordered)}
		return nil
	})
	if err != nil {
		return SliceSet{}, err
	}
	m.logger.Info("slice set recorded",
		logging.Source(key),
		logging.Encode(name),
		logging.SuperframeSize(superframeSize),
		logging.Int("chunks", len(ordered)),
	)
	return SliceSet{Source: key, Encode: name, SuperframeSize: superframeSize, Dir: dir, Chunks: ordered}, nil
}

// RemoveEncode deletes the encode artifact and its slice directories, then
// drops the manifest entry. If any deletion fails the entry is retained.
func (m *Manifest) RemoveEncode(source, name string) error {
	m.mu.RLock()
	key, enc, err := m.lookupEncode(m.doc, source, name, "remove encode")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := fileutil.RemoveIfExists(enc.Artifact); err != nil {
		return fmt.Errorf("remove artifact %s: %w", enc.Artifact, err)
	}
	if err := os.RemoveAll(SliceRoot(enc.Artifact)); err != nil {
		return fmt.Errorf("remove slices of %s: %w", enc.Artifact, err)
	}

	err = m.mutate(func(doc *document) error {
		src, ok := doc.Sources[key]
		if !ok {
			return services.Wrap(ErrNotFound, "manifest", "remove encode", "source "+key, nil)
		}
		delete(src.Encodes, name)
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("encode removed",
		logging.Source(key),
		logging.Encode(name),
	)
	return nil
}

// Sources returns every registered source ordered by name.
func (m *Manifest) Sources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Source, 0, len(m.doc.Sources))
	for _, src := range m.doc.Sources {
		out = append(out, src.view())
	}
	slices.SortFunc(out, func(a, b Source) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// ListChunks returns the regular, non-hidden files of dir in natural order.
func ListChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		chunks = append(chunks, filepath.Join(dir, entry.Name()))
	}
	fileutil.SortNatural(chunks)
	return chunks, nil
}

func (m *Manifest) lookupEncode(doc *document, source, name, op string) (string, *encodeRecord, error) {
	key := SourceKey(source)
	src, ok := doc.Sources[key]
	if !ok {
		return key, nil, services.Wrap(ErrNotFound, "manifest", op, "source "+key, nil)
	}
	enc, ok := src.Encodes[name]
	if !ok {
		return key, nil, services.Wrap(ErrNotFound, "manifest", op, fmt.Sprintf("%s has no encode %s", key, name), nil)
	}
	return key, enc, nil
}

func validateEncodeName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return services.Wrap(services.ErrInvalidParameter, "manifest", "add encode",
			fmt.Sprintf("invalid encode name %q", name), nil)
	}
	return nil
}

func (s *sourceRecord) view() Source {
	out := Source{Name: s.Name, Path: s.Path, AddedAt: s.AddedAt}
	names := make([]string, 0, len(s.Encodes))
	for name := range s.Encodes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		out.Encodes = append(out.Encodes, s.Encodes[name].view(s.Name, name))
	}
	return out
}

func (e *encodeRecord) view(source, name string) Encode {
	sizes := make([]int, 0, len(e.Slices))
	for size := range e.Slices {
		sizes = append(sizes, size)
	}
	slices.Sort(sizes)
	return Encode{
		Source:          source,
		Name:            name,
		Artifact:        e.Artifact,
		Parameters:      maps.Clone(e.Parameters),
		Invocation:      e.Invocation,
		CreatedAt:       e.CreatedAt,
		SuperframeSizes: sizes,
	}
}
