package eval

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ravivarmakumar/prism/pkg/logging"
	"github.com/ravivarmakumar/prism/vector"
)

// Per-metric defaults applied when an external capability fails mid-scoring.
// Evaluation must never abort because a scoring sub-call failed, so every
// metric is total and falls back to these values.
var metricDefaults = map[string]float64{
	MetricRelevance:   0.5,
	MetricReadability: 0.5,
	MetricCoherence:   0.5,
	MetricCoverage:    0.5,
	MetricCredibility: 0.5,
	MetricConsensus:   0.5,
	MetricConsistency: defaultConsistency,
}

// DefaultMetricValue returns the documented fallback for a metric.
func DefaultMetricValue(name string) float64 {
	if v, ok := metricDefaults[name]; ok {
		return v
	}
	return 0.5
}

// subQuestionAddressedThreshold is the minimum answer similarity for a
// sub-question to count as addressed in coverage scoring.
const subQuestionAddressedThreshold = 0.5

// Engine computes the atomic quality metrics for one (query, answer,
// context) triple. All scoring functions are total: an upstream failure is
// logged and replaced by the metric's documented default.
type Engine struct {
	embedder      vector.Embedder
	decomposer    Decomposer
	perplexity    PerplexitySource
	entailment    EntailmentScorer
	contradiction ContradictionDetector
	logger        *slog.Logger
}

// EngineOption configures optional scoring strategies.
type EngineOption func(*Engine)

// WithDecomposer wires a sub-question decomposition capability for coverage.
func WithDecomposer(d Decomposer) EngineOption {
	return func(e *Engine) { e.decomposer = d }
}

// WithPerplexitySource wires a language-model perplexity source for coherence.
func WithPerplexitySource(p PerplexitySource) EngineOption {
	return func(e *Engine) { e.perplexity = p }
}

// WithEntailmentScorer wires an entailment model for consensus.
func WithEntailmentScorer(s EntailmentScorer) EngineOption {
	return func(e *Engine) { e.entailment = s }
}

// WithContradictionDetector wires a contradiction model for consistency.
func WithContradictionDetector(d ContradictionDetector) EngineOption {
	return func(e *Engine) { e.contradiction = d }
}

// NewEngine creates a metric engine backed by the given embedder.
func NewEngine(embedder vector.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder: embedder,
		logger:   logging.WithComponent("eval.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Relevance scores how well the answer addresses the query and stays
// grounded in its context: 0.5*cos(query, answer) + 0.5*cos(answer, context).
// An empty context contributes a neutral 0.5 for the second term.
func (e *Engine) Relevance(ctx context.Context, query, answer, contextText string) float64 {
	qVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return e.fallback(MetricRelevance, "embed query", err)
	}
	aVec, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return e.fallback(MetricRelevance, "embed answer", err)
	}

	queryTerm := float64(vector.CosineSimilarity(qVec, aVec))

	contextTerm := 0.5
	if strings.TrimSpace(contextText) != "" {
		cVec, err := e.embedder.Embed(ctx, contextText)
		if err != nil {
			return e.fallback(MetricRelevance, "embed context", err)
		}
		contextTerm = float64(vector.CosineSimilarity(aVec, cVec))
	}

	return clamp01(0.5*clamp01(queryTerm) + 0.5*clamp01(contextTerm))
}

// Readability scores how well the answer's grade level matches the student's
// degree level.
func (e *Engine) Readability(_ context.Context, answer string, degree DegreeLevel) float64 {
	if strings.TrimSpace(answer) == "" {
		return DefaultMetricValue(MetricReadability)
	}
	return readabilityScore(answer, degree)
}

// Coherence combines normalized perplexity with mean adjacent-sentence
// similarity. Without a perplexity source the first term is a fixed 0.7;
// single-sentence answers score 1.0 on local coherence.
func (e *Engine) Coherence(ctx context.Context, answer string) float64 {
	perplexityTerm := defaultPerplexityTerm
	if e.perplexity != nil {
		raw, err := e.perplexity.Perplexity(ctx, answer)
		if err != nil {
			e.logger.Warn("perplexity source failed, using default term",
				"error", err)
		} else {
			perplexityTerm = normalizePerplexity(raw)
		}
	}

	sentences := splitSentences(answer)
	localTerm := 1.0
	if len(sentences) > 1 {
		vecs, err := e.embedder.EmbedBatch(ctx, sentences)
		if err != nil {
			return e.fallback(MetricCoherence, "embed sentences", err)
		}
		var sum float64
		for i := 1; i < len(vecs); i++ {
			sum += float64(vector.CosineSimilarity(vecs[i-1], vecs[i]))
		}
		localTerm = clamp01(sum / float64(len(vecs)-1))
	}

	return clamp01(0.5*perplexityTerm + 0.5*localTerm)
}

// Coverage scores the fraction of the query's sub-questions that the answer
// addresses. A query yielding zero sub-questions is vacuously covered.
func (e *Engine) Coverage(ctx context.Context, query, answer string) float64 {
	subQuestions, err := e.decompose(ctx, query)
	if err != nil {
		return e.fallback(MetricCoverage, "decompose query", err)
	}
	if len(subQuestions) == 0 {
		return 1.0
	}

	aVec, err := e.embedder.Embed(ctx, answer)
	if err != nil {
		return e.fallback(MetricCoverage, "embed answer", err)
	}

	addressed := 0
	for _, sub := range subQuestions {
		sVec, err := e.embedder.Embed(ctx, sub)
		if err != nil {
			return e.fallback(MetricCoverage, "embed sub-question", err)
		}
		if float64(vector.CosineSimilarity(sVec, aVec)) >= subQuestionAddressedThreshold {
			addressed++
		}
	}
	return clamp01(float64(addressed) / float64(len(subQuestions)))
}

func (e *Engine) decompose(ctx context.Context, query string) ([]string, error) {
	if e.decomposer != nil {
		return e.decomposer.Decompose(ctx, query)
	}
	// Fallback: treat each question mark as a sub-question boundary.
	parts := strings.Split(query, "?")
	subs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			subs = append(subs, p+"?")
		}
	}
	return subs, nil
}

// Credibility averages five per-source sub-scores over the web sources
// backing the answer: venue, author, recency, citation count, integrity.
// An empty source list scores a neutral 0.5.
func (e *Engine) Credibility(_ context.Context, sources []Passage) float64 {
	if len(sources) == 0 {
		return 0.5
	}
	var sum float64
	for _, src := range sources {
		sum += credibilityOf(src)
	}
	return clamp01(sum / float64(len(sources)))
}

// Sub-score constants for signals the pipeline does not yet extract from
// pages. Venue is the only sub-score currently derived from the source.
const (
	authorSubScore    = 0.5
	recencySubScore   = 0.8
	citationSubScore  = 0.5
	integritySubScore = 0.6
)

func credibilityOf(src Passage) float64 {
	venue := venueScore(src.URL)
	return (venue + authorSubScore + recencySubScore + citationSubScore + integritySubScore) / 5
}

func venueScore(rawURL string) float64 {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, ".edu") || strings.Contains(host, ".ac.") || strings.Contains(host, ".gov"):
		return 0.9
	case strings.Contains(host, ".org") || strings.Contains(host, "wikipedia") || strings.Contains(host, "scholar"):
		return 0.7
	case strings.Contains(host, "blogspot") || strings.Contains(host, "wordpress.com"):
		return 0.4
	default:
		return 0.5
	}
}

// Consensus scores cross-source agreement. With an entailment model it is
// the mean of (entailment+1)/2 over source pairs; otherwise it falls back to
// a monotonic source-count proxy.
func (e *Engine) Consensus(ctx context.Context, sources []Passage) float64 {
	if e.entailment == nil || len(sources) < 2 {
		return countConsensusProxy(len(sources))
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			score, err := e.entailment.Entail(ctx, sources[i].Text, sources[j].Text)
			if err != nil {
				e.logger.Warn("entailment scorer failed, using count proxy",
					"error", err)
				return countConsensusProxy(len(sources))
			}
			sum += (score + 1) / 2
			pairs++
		}
	}
	return clamp01(sum / float64(pairs))
}

// Consistency scores internal agreement of the answer: 1 minus the
// contradiction rate. Without a detector it is a fixed 0.8.
func (e *Engine) Consistency(ctx context.Context, answer string) float64 {
	if e.contradiction == nil {
		return defaultConsistency
	}
	rate, err := e.contradiction.ContradictionRate(ctx, answer)
	if err != nil {
		return e.fallback(MetricConsistency, "contradiction detection", err)
	}
	return clamp01(1 - rate)
}

func (e *Engine) fallback(metric, op string, err error) float64 {
	e.logger.Warn("metric computation failed, applying default",
		"metric", metric,
		"op", op,
		"default", DefaultMetricValue(metric),
		"error", err)
	return DefaultMetricValue(metric)
}
