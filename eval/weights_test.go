package eval

import (
	"errors"
	"math"
	"testing"

	prismerrors "github.com/ravivarmakumar/prism/errors"
)

func TestDefaultProfilesSumToOne(t *testing.T) {
	for name, profile := range map[string]Weights{
		"course": DefaultCourseWeights(),
		"web":    DefaultWebWeights(),
	} {
		var sum float64
		for _, w := range profile {
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("%s profile sums to %v, want 1.0", name, sum)
		}
		if err := profile.Validate(); err != nil {
			t.Errorf("%s profile failed validation: %v", name, err)
		}
	}
}

func TestValidateRejectsBadProfiles(t *testing.T) {
	cases := map[string]Weights{
		"empty":          {},
		"sum above one":  {MetricRelevance: 0.8, MetricCoverage: 0.5},
		"sum below one":  {MetricRelevance: 0.3, MetricCoverage: 0.3},
		"negative":       {MetricRelevance: -0.5, MetricCoverage: 1.5},
		"weight too big": {MetricRelevance: 1.5, MetricCoverage: -0.5},
	}
	for name, profile := range cases {
		err := profile.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", name)
			continue
		}
		if !errors.Is(err, prismerrors.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", name, err)
		}
	}
}

func TestAggregateCourseScenario(t *testing.T) {
	metrics := MetricSet{
		MetricRelevance:   0.9,
		MetricReadability: 0.85,
		MetricCoherence:   0.8,
		MetricCoverage:    1.0,
	}

	overall, err := Aggregate(metrics, DefaultCourseWeights())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if math.Abs(overall-0.8925) > 1e-9 {
		t.Fatalf("expected overall 0.8925, got %v", overall)
	}
	if overall < DefaultThreshold {
		t.Fatalf("expected course scenario to pass threshold %v", DefaultThreshold)
	}
}

func TestAggregateWebScenario(t *testing.T) {
	initial := MetricSet{
		MetricRelevance:   0.5,
		MetricReadability: 0.6,
		MetricCoherence:   0.6,
		MetricCoverage:    0.5,
		MetricCredibility: 0.7,
		MetricConsensus:   0.6,
		MetricConsistency: 0.8,
	}
	overall, err := Aggregate(initial, DefaultWebWeights())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if math.Abs(overall-0.595) > 1e-9 {
		t.Fatalf("expected initial overall 0.595, got %v", overall)
	}
	if overall >= DefaultThreshold {
		t.Fatalf("expected initial web scenario to fail threshold")
	}

	refined := MetricSet{}
	for k, v := range initial {
		refined[k] = v
	}
	refined[MetricCoverage] = 0.9
	refined[MetricRelevance] = 0.75

	overall, err = Aggregate(refined, DefaultWebWeights())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if math.Abs(overall-0.7075) > 1e-9 {
		t.Fatalf("expected refined overall 0.7075, got %v", overall)
	}
	if overall < DefaultThreshold {
		t.Fatalf("expected refined web scenario to pass threshold")
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	metrics := MetricSet{
		MetricRelevance:   0.42,
		MetricReadability: 0.77,
		MetricCoherence:   0.31,
		MetricCoverage:    0.99,
	}
	first, err := Aggregate(metrics, DefaultCourseWeights())
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Aggregate(metrics, DefaultCourseWeights())
		if err != nil {
			t.Fatalf("Aggregate error: %v", err)
		}
		if again != first {
			t.Fatalf("aggregate not deterministic: %v != %v", again, first)
		}
	}
}

func TestAggregateMissingKeyIsConfigurationError(t *testing.T) {
	metrics := MetricSet{
		MetricRelevance: 0.5,
	}
	_, err := Aggregate(metrics, DefaultCourseWeights())
	if err == nil {
		t.Fatal("expected error for missing metric key")
	}
	if !errors.Is(err, prismerrors.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestRankWeakestLexicalTieBreak(t *testing.T) {
	metrics := MetricSet{
		MetricRelevance:   0.5,
		MetricCoverage:    0.5,
		MetricCoherence:   0.5,
		MetricReadability: 0.9,
	}
	ranked := rankWeakest(metrics)

	want := []string{MetricCoherence, MetricCoverage, MetricRelevance, MetricReadability}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d ranked metrics, got %d", len(want), len(ranked))
	}
	for i := range want {
		if ranked[i] != want[i] {
			t.Fatalf("rank %d: expected %s, got %s", i, want[i], ranked[i])
		}
	}
}
