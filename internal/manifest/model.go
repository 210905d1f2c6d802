package manifest

import (
	"maps"
	"time"
)

// Version is the only manifest schema version this build reads and writes.
const Version = 1

type document struct {
	Version *int                     `json:"version"`
	Sources map[string]*sourceRecord `json:"sources"`
}

type sourceRecord struct {
	Name    string                   `json:"name"`
	Path    string                   `json:"path"`
	AddedAt time.Time                `json:"added_at"`
	Encodes map[string]*encodeRecord `json:"encodes"`
}

type encodeRecord struct {
	Artifact   string              `json:"artifact"`
	Parameters map[string]string   `json:"parameters"`
	Invocation string              `json:"invocation"`
	CreatedAt  time.Time           `json:"created_at"`
	Slices     map[int]sliceRecord `json:"slices"`
}

type sliceRecord struct {
	// Dir is informational; lookups always recompute it with SliceDir.
	Dir    string `json:"dir"`
	Chunks int    `json:"chunks"`
}

// Source is a registered input media file.
type Source struct {
	Name    string
	Path    string
	AddedAt time.Time
	Encodes []Encode
}

// Encode is one transcoding of a Source under a canonical parameter name.
type Encode struct {
	Source     string
	Name       string
	Artifact   string
	Parameters map[string]string
	Invocation string
	CreatedAt  time.Time
	// SuperframeSizes lists the sizes with a registered SliceSet, ascending.
	SuperframeSizes []int
}

// EncodeInput carries the attributes recorded by AddEncode.
type EncodeInput struct {
	Artifact   string
	Parameters map[string]string
	Invocation string
}

// SliceSet is the ordered chunk list of one Encode at one superframe size.
type SliceSet struct {
	Source         string
	Encode         string
	SuperframeSize int
	Dir            string
	Chunks         []string
}

func newDocument() *document {
	v := Version
	return &document{Version: &v, Sources: make(map[string]*sourceRecord)}
}

func (d *document) clone() *document {
	out := newDocument()
	for key, src := range d.Sources {
		out.Sources[key] = src.clone()
	}
	return out
}

func (s *sourceRecord) clone() *sourceRecord {
	out := *s
	out.Encodes = make(map[string]*encodeRecord, len(s.Encodes))
	for name, enc := range s.Encodes {
		out.Encodes[name] = enc.clone()
	}
	return &out
}

func (e *encodeRecord) clone() *encodeRecord {
	out := *e
	out.Parameters = maps.Clone(e.Parameters)
	out.Slices = maps.Clone(e.Slices)
	if out.Slices == nil {
		out.Slices = make(map[int]sliceRecord)
	}
	return &out
}
