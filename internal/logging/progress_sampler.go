package logging

import "sync"

// ProgressSampler suppresses repetitive progress logs for batch work such as
// chunk extraction, emitting only when completion crosses a percentage bucket.
// It is safe for concurrent use by pool workers.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// Observe records that done of total units are complete and reports whether
// the caller should log, along with the completion percentage. The final unit
// always logs.
func (s *ProgressSampler) Observe(done, total int) (bool, float64) {
	if total <= 0 {
		return false, 0
	}
	percent := float64(done) / float64(total) * 100
	if s == nil {
		return true, percent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := int(percent / s.bucketSize)
	if done >= total {
		bucket = int(100/s.bucketSize) + 1
	}
	if bucket <= s.lastBucket {
		return false, percent
	}
	s.lastBucket = bucket
	return true, percent
}

// Reset clears the sampler state when a new batch starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.lastBucket = -1
	s.mu.Unlock()
}
