// Package timeline generates play paths: the sequence of buffer positions a
// compose run visits.
//
// Generate is a pure function of its Params. The only randomness in a compose
// run is the Switcher, which draws from an injected Source so that a seeded run
// can be replayed exactly.
package timeline
