package feature

import (
	"fmt"
	"math"
)

// Normalizer keeps exponentially-weighted running mean and variance per
// vector component and turns raw vectors into clipped z-scores. It is a
// plain value owned by its extractor: construct, snapshot, and restore
// explicitly, nothing is shared through package state.
type Normalizer struct {
	decay  float64 // weight of the newest observation
	clip   float64 // z-scores clamp to [-clip, clip]
	minStd float64 // floor for the divisor

	mean         []float64
	variance     []float64
	observations int64
}

// NewNormalizer creates a normalizer for vectors of the given width.
func NewNormalizer(width int, decay, clip, minStd float64) *Normalizer {
	return &Normalizer{
		decay:    decay,
		clip:     clip,
		minStd:   minStd,
		mean:     make([]float64, width),
		variance: make([]float64, width),
	}
}

// Width returns the vector width the normalizer was built for.
func (n *Normalizer) Width() int {
	return len(n.mean)
}

// Observations returns how many vectors have been absorbed.
func (n *Normalizer) Observations() int64 {
	return n.observations
}

// Observe folds one raw vector into the running statistics. The first
// observation seeds the mean directly so it normalizes to zero.
func (n *Normalizer) Observe(raw []float64) {
	if len(raw) != len(n.mean) {
		return // width is fixed at construction, ignore malformed input
	}
	if n.observations == 0 {
		copy(n.mean, raw)
		n.observations++
		return
	}
	for i, x := range raw {
		diff := x - n.mean[i]
		incr := n.decay * diff
		n.mean[i] += incr
		n.variance[i] = (1 - n.decay) * (n.variance[i] + diff*incr)
	}
	n.observations++
}

// Apply returns the clipped z-score of a raw vector against the current
// statistics without touching them.
func (n *Normalizer) Apply(raw []float64) []float64 {
	out := make([]float64, len(n.mean))
	for i := range n.mean {
		if i >= len(raw) {
			break
		}
		std := math.Sqrt(n.variance[i])
		if std < n.minStd {
			std = n.minStd
		}
		z := (raw[i] - n.mean[i]) / std
		if z > n.clip {
			z = n.clip
		} else if z < -n.clip {
			z = -n.clip
		}
		out[i] = z
	}
	return out
}

// Reset clears the statistics back to the freshly-constructed state.
func (n *Normalizer) Reset() {
	for i := range n.mean {
		n.mean[i] = 0
		n.variance[i] = 0
	}
	n.observations = 0
}

// Snapshot returns copies of the running statistics for checkpointing.
func (n *Normalizer) Snapshot() (mean, variance []float64, observations int64) {
	mean = make([]float64, len(n.mean))
	variance = make([]float64, len(n.variance))
	copy(mean, n.mean)
	copy(variance, n.variance)
	return mean, variance, n.observations
}

// Restore replaces the running statistics with checkpointed ones. The
// widths must match the construction width.
func (n *Normalizer) Restore(mean, variance []float64, observations int64) error {
	if len(mean) != len(n.mean) || len(variance) != len(n.variance) {
		return fmt.Errorf("normalizer width mismatch: have %d, restoring %d/%d",
			len(n.mean), len(mean), len(variance))
	}
	copy(n.mean, mean)
	copy(n.variance, variance)
	n.observations = observations
	return nil
}
