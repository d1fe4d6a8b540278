package eval

import "context"

// The consensus and consistency metrics ship with simplified default
// strategies. Each is behind an interface so a real entailment or
// contradiction model can be swapped in without touching the aggregator.

// PerplexitySource supplies a raw language-model perplexity for a text.
// Raw values are clamped to [10,150] and rescaled so lower perplexity means
// a higher coherence contribution.
type PerplexitySource interface {
	Perplexity(ctx context.Context, text string) (float64, error)
}

// EntailmentScorer scores directional agreement between two source texts in
// [-1, 1], where 1 means full entailment and -1 contradiction.
type EntailmentScorer interface {
	Entail(ctx context.Context, premise, hypothesis string) (float64, error)
}

// ContradictionDetector reports the fraction of claims in an answer that
// contradict each other, in [0, 1].
type ContradictionDetector interface {
	ContradictionRate(ctx context.Context, answer string) (float64, error)
}

// Decomposer splits a query into an ordered list of sub-questions for
// coverage scoring.
type Decomposer interface {
	Decompose(ctx context.Context, query string) ([]string, error)
}

const (
	// Coherence perplexity term when no perplexity source is wired in.
	defaultPerplexityTerm = 0.7
	// Consistency when no contradiction detector is wired in. This is an
	// approximation, not a measurement.
	defaultConsistency = 0.8
)

// countConsensusProxy approximates consensus from the number of independent
// corroborating sources when no entailment model is wired in. More sources
// means a higher score, capped well below certainty.
func countConsensusProxy(sourceCount int) float64 {
	switch {
	case sourceCount >= 5:
		return 0.8
	case sourceCount >= 3:
		return 0.7
	case sourceCount >= 1:
		return 0.5
	default:
		return 0.3
	}
}

// normalizePerplexity clamps a raw perplexity to [10,150] and rescales it
// linearly so 10 maps to 1.0 and 150 maps to 0.0.
func normalizePerplexity(raw float64) float64 {
	if raw < 10 {
		raw = 10
	}
	if raw > 150 {
		raw = 150
	}
	return (150 - raw) / 140
}
