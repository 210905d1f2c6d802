package fileutil

import (
	"slices"

	"github.com/maruel/natural"
)

// SortNatural sorts values in place so that embedded decimal runs compare by
// numeric value: chunk_2 sorts before chunk_10. Values that compare equal
// numerically, such as chunk_1 and chunk_01, keep their input order.
func SortNatural(values []string) {
	slices.SortStableFunc(values, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		default:
			return 0
		}
	})
}
