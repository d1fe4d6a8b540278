package eval

import (
	"context"
	"fmt"
	"log/slog"

	prismerrors "github.com/ravivarmakumar/prism/errors"
	"github.com/ravivarmakumar/prism/pkg/logging"
)

// DefaultThreshold is the minimum overall score for a candidate to pass.
const DefaultThreshold = 0.70

// Gate scores a candidate against the profile for its source type and
// compares the aggregate to the pass threshold. Evaluate never returns an
// error: a pipeline must never abort because a scoring sub-call failed.
type Gate struct {
	engine        *Engine
	threshold     float64
	courseWeights Weights
	webWeights    Weights
	logger        *slog.Logger
}

// GateOption configures the gate at construction time.
type GateOption func(*Gate)

// WithThreshold overrides the pass threshold.
func WithThreshold(t float64) GateOption {
	return func(g *Gate) { g.threshold = t }
}

// WithCourseWeights overrides the course weight profile.
func WithCourseWeights(w Weights) GateOption {
	return func(g *Gate) { g.courseWeights = w }
}

// WithWebWeights overrides the web weight profile.
func WithWebWeights(w Weights) GateOption {
	return func(g *Gate) { g.webWeights = w }
}

// NewGate validates configuration up front and fails fast on a malformed
// weight profile or out-of-range threshold.
func NewGate(engine *Engine, opts ...GateOption) (*Gate, error) {
	if engine == nil {
		return nil, fmt.Errorf("metric engine is required: %w", prismerrors.ErrConfiguration)
	}
	g := &Gate{
		engine:        engine,
		threshold:     DefaultThreshold,
		courseWeights: DefaultCourseWeights(),
		webWeights:    DefaultWebWeights(),
		logger:        logging.WithComponent("eval.gate"),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.threshold < 0 || g.threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]: %w", g.threshold, prismerrors.ErrConfiguration)
	}
	if err := g.courseWeights.Validate(); err != nil {
		return nil, fmt.Errorf("course profile: %w", err)
	}
	if err := g.webWeights.Validate(); err != nil {
		return nil, fmt.Errorf("web profile: %w", err)
	}
	return g, nil
}

// Threshold returns the configured pass threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Evaluate scores the candidate and produces a verdict. An undetermined
// source type falls back to the course profile with a warning rather than
// blocking the run.
func (g *Gate) Evaluate(ctx context.Context, query *Query, candidate *Candidate) *Verdict {
	sourceType := candidate.SourceType
	if sourceType != SourceCourse && sourceType != SourceWeb {
		g.logger.Warn("source type undetermined, defaulting to course profile",
			"source_type", string(sourceType))
		sourceType = SourceCourse
	}

	weights := g.courseWeights
	if sourceType == SourceWeb {
		weights = g.webWeights
	}

	contextText := candidate.ContextText()
	metrics := MetricSet{
		MetricRelevance:   g.engine.Relevance(ctx, query.Text, candidate.Text, contextText),
		MetricReadability: g.engine.Readability(ctx, candidate.Text, query.DegreeLevel),
		MetricCoherence:   g.engine.Coherence(ctx, candidate.Text),
		MetricCoverage:    g.engine.Coverage(ctx, query.Text, candidate.Text),
	}
	if sourceType == SourceWeb {
		metrics[MetricCredibility] = g.engine.Credibility(ctx, candidate.Context)
		metrics[MetricConsensus] = g.engine.Consensus(ctx, candidate.Context)
		metrics[MetricConsistency] = g.engine.Consistency(ctx, candidate.Text)
	}

	overall, err := Aggregate(metrics, weights)
	if err != nil {
		// Unreachable when the metric set above stays in sync with the
		// profiles; kept as a guard for custom profiles.
		g.logger.Error("aggregation failed, filling defaults", "error", err)
		for name := range weights {
			if _, ok := metrics[name]; !ok {
				metrics[name] = DefaultMetricValue(name)
			}
		}
		overall, _ = Aggregate(metrics, weights)
	}

	verdict := &Verdict{
		SourceType: sourceType,
		Metrics:    metrics,
		Overall:    overall,
		Passed:     overall >= g.threshold,
		Weakest:    rankWeakest(metrics),
	}

	g.logger.Info("candidate evaluated",
		"source_type", string(sourceType),
		"overall", verdict.Overall,
		"passed", verdict.Passed,
		"attempt", candidate.Attempt)
	return verdict
}
