// Package params normalizes transcode parameter sets and derives their
// canonical names.
//
// A Set names identically whenever two requests mean the same encode: option
// keys are case-folded and sorted, encoder defaults are filled in, and values
// that are not path safe are replaced and disambiguated with a short digest.
// The name is the manifest's cache key for an encode and is embedded in the
// artifact file name. Unknown encoders and options fail with
// services.ErrInvalidParameter before any I/O happens.
package params
