package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Window is a bounded, in-process sample of recent durations used for the
// percentiles in the health report.
type Window struct {
	mu      sync.RWMutex
	samples []float64 // milliseconds
	maxSize int
}

// Summary is a percentile snapshot in milliseconds.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Max   float64 `json:"max_ms"`
}

// NewWindow creates a window holding at most maxSize samples.
func NewWindow(maxSize int) *Window {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Window{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a sample, dropping the oldest fifth when full.
func (w *Window) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, float64(d.Microseconds())/1000.0)
	if len(w.samples) > w.maxSize {
		w.samples = w.samples[w.maxSize/5:]
	}
}

// Summary returns the current percentile snapshot.
func (w *Window) Summary() Summary {
	w.mu.RLock()
	sorted := slices.Clone(w.samples)
	w.mu.RUnlock()

	if len(sorted) == 0 {
		return Summary{}
	}
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return Summary{
		Count: len(sorted),
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
