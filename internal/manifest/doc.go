// Package manifest persists the derivation cache: which sources have been
// registered, which encodes exist for each, and which slice sets exist for
// each encode.
//
// The manifest is a versioned JSON document. A Manifest handle is the single
// writer for its file: Open takes an exclusive file lock, every mutation is
// applied to a copy and written atomically before it becomes visible, and a
// failed write leaves both the file and the in-memory state untouched. A
// document that does not parse, carries no version, or carries a different
// version fails with ErrMalformedManifest and is never repaired.
//
// Slice directories are derived from the encode artifact path and the
// superframe size (see SliceDir) rather than trusted from the file.
package manifest
