package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"compressure/internal/fileutil"
	"compressure/internal/logging"
	"compressure/internal/services"
)

var (
	ErrNotFound             = services.ErrNotFound
	ErrAlreadyExists        = services.ErrAlreadyExists
	ErrPersistenceOverwrite = services.ErrPersistenceOverwrite
	ErrMalformedManifest    = services.ErrMalformedManifest
	// ErrLocked reports that another process holds the manifest.
	ErrLocked = errors.New("manifest locked by another process")
)

// Options controls how Open treats the backing file.
type Options struct {
	// ExpectExisting makes a missing manifest file an ErrNotFound failure
	// instead of initializing an empty manifest.
	ExpectExisting bool
	Logger         *slog.Logger
}

// Manifest is the single-writer handle on a persisted derivation manifest.
// Every mutation is written through to disk before it returns.
type Manifest struct {
	path   string
	logger *slog.Logger
	lock   *flock.Flock

	mu  sync.RWMutex
	doc *document
}

// Open loads the manifest at path and takes an exclusive lock on it for the
// lifetime of the handle. Close releases the lock.
func Open(path string, opts Options) (*Manifest, error) {
	logger := logging.NewComponentLogger(opts.Logger, "manifest")
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "open", "manifest path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire manifest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	m := &Manifest{path: path, logger: logger, lock: lock}
	if err := m.load(opts.ExpectExisting); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return m, nil
}

// Path returns the backing file location.
func (m *Manifest) Path() string {
	return m.path
}

// Close releases the manifest lock. It is safe to call more than once.
func (m *Manifest) Close() error {
	if m == nil || m.lock == nil {
		return nil
	}
	return m.lock.Unlock()
}

func (m *Manifest) load(expectExisting bool) error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		if expectExisting {
			return services.Wrap(ErrNotFound, "manifest", "load", m.path, nil)
		}
		m.doc = newDocument()
		m.logger.Info("initialized empty manifest", logging.String("path", m.path))
		return m.save(m.doc)
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	doc, err := decode(data)
	if err != nil {
		return services.Wrap(ErrMalformedManifest, "manifest", "load", m.path, err)
	}
	m.doc = doc
	m.logger.Debug("manifest loaded",
		logging.String("path", m.path),
		logging.Int("sources", len(doc.Sources)),
	)
	return nil
}

func decode(data []byte) (*document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("trailing data after manifest document")
	}
	if doc.Version == nil {
		return nil, errors.New("manifest has no version")
	}
	if *doc.Version != Version {
		return nil, fmt.Errorf("manifest version %d is not supported (expected %d); migrate it manually", *doc.Version, Version)
	}
	if doc.Sources == nil {
		return nil, errors.New("manifest has no sources object")
	}
	for key, src := range doc.Sources {
		if err := validateSource(key, src); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func validateSource(key string, src *sourceRecord) error {
	if src == nil {
		return fmt.Errorf("source %q is null", key)
	}
	if src.Name != key {
		return fmt.Errorf("source %q records name %q", key, src.Name)
	}
	if src.Path == "" {
		return fmt.Errorf("source %q has no path", key)
	}
	if src.Encodes == nil {
		src.Encodes = make(map[string]*encodeRecord)
	}
	for name, enc := range src.Encodes {
		if enc == nil || enc.Artifact == "" {
			return fmt.Errorf("encode %q of source %q has no artifact", name, key)
		}
		if enc.Slices == nil {
			enc.Slices = make(map[int]sliceRecord)
		}
		for size, rec := range enc.Slices {
			if size <= 0 || rec.Chunks <= 0 {
				return fmt.Errorf("encode %q of source %q has invalid slice set %d", name, key, size)
			}
		}
	}
	return nil
}

func (m *Manifest) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// mutate applies fn to a copy of the document, persists the copy, and only
// then makes it current. A failed fn or save leaves the manifest unchanged.
func (m *Manifest) mutate(fn func(doc *document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.doc.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := m.save(next); err != nil {
		return err
	}
	m.doc = next
	return nil
}
