package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

var keyFolder = cases.Fold()

// NormalizeName returns the NFC form of a trimmed name so that visually
// identical file names decomposed differently by the filesystem compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is NFC-normalized and trimmed.
func SanitizeFileName(name string) string {
	name = NormalizeName(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// FoldKey case-folds an identifier so option names compare case-insensitively.
func FoldKey(key string) string {
	return keyFolder.String(strings.TrimSpace(key))
}

// PathSafeToken maps every rune outside [A-Za-z0-9.+=-] to '-'. The boolean
// reports whether any rune was replaced.
func PathSafeToken(value string) (string, bool) {
	changed := false
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '+' || r == '=' || r == '-':
			return r
		default:
			changed = true
			return '-'
		}
	}, value)
	return safe, changed
}
