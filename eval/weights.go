package eval

import (
	"fmt"
	"math"

	prismerrors "github.com/ravivarmakumar/prism/errors"
)

// weightTolerance is the allowed deviation from 1.0 for a profile sum.
const weightTolerance = 1e-9

// Weights maps metric name to its contribution to the overall score.
type Weights map[string]float64

// DefaultCourseWeights returns the weight profile for course-grounded answers.
func DefaultCourseWeights() Weights {
	return Weights{
		MetricRelevance:   0.30,
		MetricReadability: 0.25,
		MetricCoherence:   0.20,
		MetricCoverage:    0.25,
	}
}

// DefaultWebWeights returns the weight profile for web-grounded answers,
// which adds the three trust metrics.
func DefaultWebWeights() Weights {
	return Weights{
		MetricRelevance:   0.20,
		MetricReadability: 0.15,
		MetricCoherence:   0.15,
		MetricCoverage:    0.15,
		MetricCredibility: 0.15,
		MetricConsensus:   0.10,
		MetricConsistency: 0.10,
	}
}

// Validate checks that every weight is in [0,1] and the profile sums to 1.0.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("empty weight profile: %w", prismerrors.ErrConfiguration)
	}
	var sum float64
	for name, weight := range w {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("weight %q = %v outside [0,1]: %w", name, weight, prismerrors.ErrConfiguration)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weight profile sums to %v, want 1.0: %w", sum, prismerrors.ErrConfiguration)
	}
	return nil
}

// Aggregate computes the weighted sum of the metric set under the profile.
// A missing metric key is a programming-contract violation: the metric
// engine's failure-safe defaults guarantee a complete key set, so this never
// fires on the normal path.
func Aggregate(metrics MetricSet, weights Weights) (float64, error) {
	var overall float64
	for name, weight := range weights {
		value, ok := metrics[name]
		if !ok {
			return 0, fmt.Errorf("metric set missing %q: %w", name, prismerrors.ErrConfiguration)
		}
		overall += weight * value
	}
	return clamp01(overall), nil
}
