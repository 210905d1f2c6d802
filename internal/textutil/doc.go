// Package textutil provides name normalization and filename sanitization
// helpers shared by the parameter namer and the manifest.
package textutil
