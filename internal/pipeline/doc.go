// Package pipeline orchestrates the derivation chain: encode a source, slice
// the encode into superframe chunks, and compose an output by walking a
// generated timeline over forward and backward chunk sequences.
//
// Every expensive step consults the manifest first and is skipped when its
// exact parameters were seen before. Encodes are produced in a temp sibling
// and renamed into place; slice sets are recorded only after every chunk
// exists. Each operation is journaled and counted, and logs one INFO line on
// completion.
package pipeline
