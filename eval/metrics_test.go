package eval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type keywordEmbedder struct{}

var keywordSpace = []string{"neuron", "resting", "potential", "membrane", "voltage", "ion"}

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(keywordSpace))
	lower := strings.ToLower(text)
	for idx, kw := range keywordSpace {
		if strings.Contains(lower, kw) {
			vec[idx] = 1
		}
	}
	return vec, nil
}

func (k *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := k.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (k *keywordEmbedder) Dimension() int { return len(keywordSpace) }

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (f *failingEmbedder) Dimension() int { return 0 }

type fixedPerplexity struct{ value float64 }

func (p *fixedPerplexity) Perplexity(context.Context, string) (float64, error) {
	return p.value, nil
}

type fixedEntailment struct{ score float64 }

func (e *fixedEntailment) Entail(context.Context, string, string) (float64, error) {
	return e.score, nil
}

type fixedContradiction struct{ rate float64 }

func (c *fixedContradiction) ContradictionRate(context.Context, string) (float64, error) {
	return c.rate, nil
}

func TestRelevanceEmptyContextNeutralTerm(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	ctx := context.Background()

	query := "What is a neuron resting potential?"
	answer := "The resting potential of a neuron is the membrane voltage at rest."

	withContext := engine.Relevance(ctx, query, answer, "Neuron resting potential and membrane voltage.")
	noContext := engine.Relevance(ctx, query, answer, "")

	if withContext <= noContext {
		t.Fatalf("expected matching context to raise relevance: %v <= %v", withContext, noContext)
	}
	for _, v := range []float64{withContext, noContext} {
		if v < 0 || v > 1 {
			t.Fatalf("relevance %v out of bounds", v)
		}
	}
}

func TestRelevanceFailureUsesDefault(t *testing.T) {
	engine := NewEngine(&failingEmbedder{})
	got := engine.Relevance(context.Background(), "q", "a", "c")
	if got != DefaultMetricValue(MetricRelevance) {
		t.Fatalf("expected default %v, got %v", DefaultMetricValue(MetricRelevance), got)
	}
}

func TestCoherenceSingleSentence(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	got := engine.Coherence(context.Background(), "A neuron has a resting potential")
	// Single sentence: local term is 1.0, perplexity term defaults to 0.7.
	want := 0.5*0.7 + 0.5*1.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected coherence %v, got %v", want, got)
	}
}

func TestCoherenceWithPerplexitySource(t *testing.T) {
	low := NewEngine(&keywordEmbedder{}, WithPerplexitySource(&fixedPerplexity{value: 10}))
	high := NewEngine(&keywordEmbedder{}, WithPerplexitySource(&fixedPerplexity{value: 150}))

	text := "A single sentence"
	if l, h := low.Coherence(context.Background(), text), high.Coherence(context.Background(), text); l <= h {
		t.Fatalf("expected low perplexity to score higher: %v <= %v", l, h)
	}
}

func TestNormalizePerplexityClamps(t *testing.T) {
	if got := normalizePerplexity(5); got != 1.0 {
		t.Fatalf("expected clamp to 1.0 below range, got %v", got)
	}
	if got := normalizePerplexity(200); got != 0.0 {
		t.Fatalf("expected clamp to 0.0 above range, got %v", got)
	}
	mid := normalizePerplexity(80)
	if mid <= 0 || mid >= 1 {
		t.Fatalf("expected mid-range value in (0,1), got %v", mid)
	}
}

func TestCoverageVacuousWhenNoSubQuestions(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	// No question mark and no decomposer sub-questions beyond the raw text;
	// the statement itself counts as one sub-question, so use an empty query
	// to get zero sub-questions.
	got := engine.Coverage(context.Background(), "", "any answer")
	if got != 1.0 {
		t.Fatalf("expected vacuous coverage 1.0, got %v", got)
	}
}

func TestCoverageCountsAddressedSubQuestions(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	ctx := context.Background()

	query := "What is the resting potential? How does membrane voltage change with ion flow?"
	fullAnswer := "The resting potential is the neuron membrane voltage. Ion flow across the membrane shifts that voltage."
	partialAnswer := "The resting potential is defined for a neuron."

	full := engine.Coverage(ctx, query, fullAnswer)
	partial := engine.Coverage(ctx, query, partialAnswer)

	if full != 1.0 {
		t.Fatalf("expected full coverage 1.0, got %v", full)
	}
	if partial >= full {
		t.Fatalf("expected partial answer to cover less: %v >= %v", partial, full)
	}
}

func TestCredibilityVenueScores(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	ctx := context.Background()

	academic := engine.Credibility(ctx, []Passage{{Text: "x", URL: "https://neuroscience.stanford.edu/paper"}})
	reference := engine.Credibility(ctx, []Passage{{Text: "x", URL: "https://en.wikipedia.org/wiki/Neuron"}})
	blog := engine.Credibility(ctx, []Passage{{Text: "x", URL: "https://brainfacts.blogspot.com/post"}})
	unknown := engine.Credibility(ctx, []Passage{{Text: "x", URL: "https://example.com/article"}})

	if !(academic > reference && reference > unknown && unknown > blog) {
		t.Fatalf("expected academic > reference > unknown > blog, got %v %v %v %v",
			academic, reference, unknown, blog)
	}
}

func TestCredibilityEmptySourcesDefault(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	if got := engine.Credibility(context.Background(), nil); got != 0.5 {
		t.Fatalf("expected 0.5 for empty sources, got %v", got)
	}
}

func TestConsensusCountProxy(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	ctx := context.Background()

	counts := []int{0, 1, 3, 5, 8}
	want := []float64{0.3, 0.5, 0.7, 0.8, 0.8}
	prev := -1.0
	for i, n := range counts {
		sources := make([]Passage, n)
		got := engine.Consensus(ctx, sources)
		if got != want[i] {
			t.Errorf("consensus proxy for %d sources = %v, want %v", n, got, want[i])
		}
		if got < prev {
			t.Errorf("consensus proxy not monotonic at %d sources", n)
		}
		prev = got
	}
}

func TestConsensusWithEntailmentModel(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{}, WithEntailmentScorer(&fixedEntailment{score: 1.0}))
	sources := []Passage{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	if got := engine.Consensus(context.Background(), sources); got != 1.0 {
		t.Fatalf("expected full entailment consensus 1.0, got %v", got)
	}

	disagree := NewEngine(&keywordEmbedder{}, WithEntailmentScorer(&fixedEntailment{score: -1.0}))
	if got := disagree.Consensus(context.Background(), sources); got != 0.0 {
		t.Fatalf("expected full contradiction consensus 0.0, got %v", got)
	}
}

func TestConsistencyDefaultsWithoutDetector(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	if got := engine.Consistency(context.Background(), "any answer"); got != 0.8 {
		t.Fatalf("expected default consistency 0.8, got %v", got)
	}
}

func TestConsistencyWithDetector(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{}, WithContradictionDetector(&fixedContradiction{rate: 0.25}))
	if got := engine.Consistency(context.Background(), "answer"); got != 0.75 {
		t.Fatalf("expected consistency 0.75, got %v", got)
	}
}

func TestAllMetricsBounded(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})
	ctx := context.Background()

	query := "What is the resting potential of a neuron?"
	answer := "The resting potential is around -70mV. It reflects ion gradients across the membrane."
	sources := []Passage{
		{Text: "Resting potential facts.", URL: "https://mit.edu/neuro"},
		{Text: "Membrane voltage overview.", URL: "https://example.org/bio"},
	}

	values := []float64{
		engine.Relevance(ctx, query, answer, "context about neurons"),
		engine.Readability(ctx, answer, DegreeMasters),
		engine.Coherence(ctx, answer),
		engine.Coverage(ctx, query, answer),
		engine.Credibility(ctx, sources),
		engine.Consensus(ctx, sources),
		engine.Consistency(ctx, answer),
	}
	for i, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("metric %d out of bounds: %v", i, v)
		}
	}
}
