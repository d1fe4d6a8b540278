package eval

import (
	"context"
	"errors"
	"testing"

	prismerrors "github.com/ravivarmakumar/prism/errors"
)

func TestNewGateRejectsBadConfiguration(t *testing.T) {
	engine := NewEngine(&keywordEmbedder{})

	cases := []struct {
		name string
		opts []GateOption
	}{
		{"threshold above one", []GateOption{WithThreshold(1.5)}},
		{"threshold below zero", []GateOption{WithThreshold(-0.1)}},
		{"course weights not normalized", []GateOption{WithCourseWeights(Weights{MetricRelevance: 0.5})}},
		{"web weights not normalized", []GateOption{WithWebWeights(Weights{MetricRelevance: 0.5, MetricCoverage: 0.6})}},
	}
	for _, tc := range cases {
		_, err := NewGate(engine, tc.opts...)
		if err == nil {
			t.Errorf("%s: expected configuration error", tc.name)
			continue
		}
		if !errors.Is(err, prismerrors.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", tc.name, err)
		}
	}

	if _, err := NewGate(nil); err == nil {
		t.Error("expected error for nil engine")
	}
}

func TestEvaluateCourseVerdictShape(t *testing.T) {
	gate, err := NewGate(NewEngine(&keywordEmbedder{}))
	if err != nil {
		t.Fatalf("NewGate error: %v", err)
	}

	query := &Query{Text: "What is the resting potential of a neuron?", DegreeLevel: DegreeBachelors}
	candidate := &Candidate{
		Text:       "The resting potential is the neuron membrane voltage at rest. It sits near -70mV.",
		SourceType: SourceCourse,
		Context:    []Passage{{Text: "Resting potential is the membrane voltage of a neuron at rest.", Citation: "Neuro 101, ch. 2"}},
	}

	verdict := gate.Evaluate(context.Background(), query, candidate)

	if verdict.SourceType != SourceCourse {
		t.Fatalf("expected course source type, got %s", verdict.SourceType)
	}
	if len(verdict.Metrics) != 4 {
		t.Fatalf("expected 4 course metrics, got %d: %v", len(verdict.Metrics), verdict.Metrics)
	}
	for _, name := range []string{MetricRelevance, MetricReadability, MetricCoherence, MetricCoverage} {
		v, ok := verdict.Metrics[name]
		if !ok {
			t.Fatalf("missing metric %s", name)
		}
		if v < 0 || v > 1 {
			t.Fatalf("metric %s out of bounds: %v", name, v)
		}
	}
	if verdict.Overall < 0 || verdict.Overall > 1 {
		t.Fatalf("overall out of bounds: %v", verdict.Overall)
	}
	if len(verdict.Weakest) != 4 {
		t.Fatalf("expected 4 ranked metrics, got %d", len(verdict.Weakest))
	}
	for i := 1; i < len(verdict.Weakest); i++ {
		if verdict.Metrics[verdict.Weakest[i-1]] > verdict.Metrics[verdict.Weakest[i]] {
			t.Fatalf("weakest ranking not ascending at %d", i)
		}
	}
}

func TestEvaluateWebVerdictHasTrustMetrics(t *testing.T) {
	gate, err := NewGate(NewEngine(&keywordEmbedder{}))
	if err != nil {
		t.Fatalf("NewGate error: %v", err)
	}

	query := &Query{Text: "What is the resting potential?"}
	candidate := &Candidate{
		Text:       "The resting potential is the neuron membrane voltage.",
		SourceType: SourceWeb,
		Context: []Passage{
			{Text: "Membrane voltage basics.", URL: "https://neuro.mit.edu/basics"},
			{Text: "Resting potential overview.", URL: "https://en.wikipedia.org/wiki/Resting_potential"},
		},
	}

	verdict := gate.Evaluate(context.Background(), query, candidate)

	if len(verdict.Metrics) != 7 {
		t.Fatalf("expected 7 web metrics, got %d: %v", len(verdict.Metrics), verdict.Metrics)
	}
	for _, name := range []string{MetricCredibility, MetricConsensus, MetricConsistency} {
		if _, ok := verdict.Metrics[name]; !ok {
			t.Fatalf("missing web metric %s", name)
		}
	}
}

func TestEvaluateUndeterminedSourceDefaultsToCourse(t *testing.T) {
	gate, err := NewGate(NewEngine(&keywordEmbedder{}))
	if err != nil {
		t.Fatalf("NewGate error: %v", err)
	}

	candidate := &Candidate{Text: "Some answer without routing."}
	verdict := gate.Evaluate(context.Background(), &Query{Text: "q?"}, candidate)

	if verdict.SourceType != SourceCourse {
		t.Fatalf("expected fallback to course profile, got %s", verdict.SourceType)
	}
	if len(verdict.Metrics) != 4 {
		t.Fatalf("expected course metric set, got %v", verdict.Metrics)
	}
}

func TestEvaluateSurvivesFailingCapabilities(t *testing.T) {
	gate, err := NewGate(NewEngine(&failingEmbedder{}))
	if err != nil {
		t.Fatalf("NewGate error: %v", err)
	}

	query := &Query{Text: "What is the resting potential? How does it change?"}
	candidate := &Candidate{
		Text:       "First sentence of the answer. Second sentence of the answer.",
		SourceType: SourceCourse,
		Context:    []Passage{{Text: "context"}},
	}

	verdict := gate.Evaluate(context.Background(), query, candidate)

	if verdict == nil {
		t.Fatal("expected a verdict despite failing capabilities")
	}
	if got := verdict.Metrics[MetricRelevance]; got != DefaultMetricValue(MetricRelevance) {
		t.Errorf("relevance: expected default %v, got %v", DefaultMetricValue(MetricRelevance), got)
	}
	if got := verdict.Metrics[MetricCoherence]; got != DefaultMetricValue(MetricCoherence) {
		t.Errorf("coherence: expected default %v, got %v", DefaultMetricValue(MetricCoherence), got)
	}
	if got := verdict.Metrics[MetricCoverage]; got != DefaultMetricValue(MetricCoverage) {
		t.Errorf("coverage: expected default %v, got %v", DefaultMetricValue(MetricCoverage), got)
	}
	if verdict.Overall < 0 || verdict.Overall > 1 {
		t.Fatalf("overall out of bounds: %v", verdict.Overall)
	}
}
