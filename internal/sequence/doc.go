// Package sequence implements the reversible chunk buffer that compose walks
// along a timeline.
package sequence
