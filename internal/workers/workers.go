package workers

import "runtime"

// Count returns a worker count scaled from the CPUs available to the process.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks such as transcoding
//   - 2.0 for I/O-bound tasks such as stream-copy chunk extraction
//
// The limit parameter caps the worker count. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Resolve picks the pool size for a batch: an explicit request wins, then the
// configured value, then ForIO. Non-positive values mean "not set". The result
// never exceeds the number of tasks.
func Resolve(requested, configured, tasks int) int {
	n := requested
	if n <= 0 {
		n = configured
	}
	if n <= 0 {
		n = ForIO(0)
	}
	if tasks > 0 && n > tasks {
		n = tasks
	}
	return max(n, 1)
}
