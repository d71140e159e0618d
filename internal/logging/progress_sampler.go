package logging

import (
	"math"
	"strings"
)

// ProgressSampler suppresses repetitive progress logs. It emits when the
// phase changes or the fraction crosses into a new bucket.
type ProgressSampler struct {
	bucket     float64
	lastPhase  string
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width as a
// fraction of 1 (default 0.05).
func NewProgressSampler(bucket float64) *ProgressSampler {
	if bucket <= 0 || bucket > 1 {
		bucket = 0.05
	}
	return &ProgressSampler{bucket: bucket, lastBucket: -1}
}

// ShouldLog reports whether a progress event for phase at fraction should be
// logged. A negative fraction means unknown and only a phase change emits.
func (s *ProgressSampler) ShouldLog(phase string, fraction float64) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		emit = true
	}
	if fraction < 0 {
		return emit
	}
	if fraction > 1 {
		fraction = 1
	}
	bucket := int(math.Floor(fraction/s.bucket + 1e-9))
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state when a new job starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
}
