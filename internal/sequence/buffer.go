package sequence

import (
	"fmt"

	"compressure/internal/services"
)

// Buffer is a reversible traversal over two equally long chunk sequences.
//
// The forward sequence is kept as given and the backward sequence is stored
// reversed, so both are read through one shared head index: moving the head
// keeps the two views aligned in time, and a change of direction resumes from
// the matching chunk of the other sequence. The arenas are never resized.
type Buffer struct {
	forward  []string
	backward []string

	head     int
	position int

	// velocity is numerator/denominator; the denominator is the superframe size
	numerator   int
	denominator int

	isForward bool
}

// New builds a buffer from the forward chunk list and the backward chunk list
// in its natural order.
func New(forward, backward []string, superframeSize int) (*Buffer, error) {
	if superframeSize <= 0 {
		return nil, services.Wrap(services.ErrInvalidParameter, "sequence", "new",
			fmt.Sprintf("superframe size must be positive, got %d", superframeSize), nil)
	}
	if len(forward) == 0 {
		return nil, services.Wrap(services.ErrInvalidParameter, "sequence", "new", "forward sequence is empty", nil)
	}
	if len(forward) != len(backward) {
		return nil, services.Wrap(services.ErrInvalidParameter, "sequence", "new",
			fmt.Sprintf("forward has %d chunks, backward has %d", len(forward), len(backward)), nil)
	}

	fwd := make([]string, len(forward))
	copy(fwd, forward)
	bwd := make([]string, len(backward))
	for i, chunk := range backward {
		bwd[len(backward)-1-i] = chunk
	}

	return &Buffer{
		forward:     fwd,
		backward:    bwd,
		numerator:   superframeSize,
		denominator: superframeSize,
		isForward:   true,
	}, nil
}

// Step advances the buffer and returns the chunk now under the head.
//
// With a target, the buffer moves by target minus the current position and
// the velocity becomes +1, -1 or 0 to match. Without one, it moves by the
// current velocity numerator, which is floor(superframe size * velocity).
//
// A zero move keeps the current direction: a stationary buffer moving forward
// keeps showing the forward sequence and a stationary buffer moving backward
// keeps showing the backward one.
func (b *Buffer) Step(target *int) string {
	var delta int
	if target != nil {
		delta = *target - b.position
		b.setVelocity(sign(delta) * b.denominator)
	} else {
		delta = b.numerator
		b.updateDirection()
	}

	b.head = mod(b.head+delta, len(b.forward))
	b.position += delta
	return b.Head()
}

// Accelerate changes the velocity by degree/superframe size and takes an
// unaddressed step.
func (b *Buffer) Accelerate(degree int) string {
	b.numerator += degree
	return b.Step(nil)
}

// Head returns the chunk under the head in the current direction.
func (b *Buffer) Head() string {
	if b.isForward {
		return b.forward[b.head]
	}
	return b.backward[b.head]
}

// Len is the number of chunks in each sequence.
func (b *Buffer) Len() int {
	return len(b.forward)
}

// Position is the logical index into the forward ordering. It is not bounded
// to the buffer length.
func (b *Buffer) Position() int {
	return b.position
}

// Velocity returns the velocity as numerator and denominator.
func (b *Buffer) Velocity() (int, int) {
	return b.numerator, b.denominator
}

// Forward reports whether the buffer is reading the forward sequence.
func (b *Buffer) Forward() bool {
	return b.isForward
}

func (b *Buffer) setVelocity(numerator int) {
	b.numerator = numerator
	b.updateDirection()
}

func (b *Buffer) updateDirection() {
	switch {
	case b.numerator > 0:
		b.isForward = true
	case b.numerator < 0:
		b.isForward = false
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
