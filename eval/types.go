package eval

import "sort"

// SourceType identifies where a candidate answer's supporting material came
// from. It selects the metric subset and weight profile used for scoring.
type SourceType string

const (
	SourceCourse SourceType = "course"
	SourceWeb    SourceType = "web"
)

// Metric names. Course answers are scored on the first four; web answers on
// all seven.
const (
	MetricRelevance   = "relevance"
	MetricReadability = "readability"
	MetricCoherence   = "coherence"
	MetricCoverage    = "coverage"
	MetricCredibility = "credibility"
	MetricConsensus   = "consensus"
	MetricConsistency = "consistency"
)

// DegreeLevel is the student's academic level, used to pick the target
// readability band.
type DegreeLevel string

const (
	DegreeBachelors DegreeLevel = "Bachelors"
	DegreeMasters   DegreeLevel = "Masters"
	DegreePhD       DegreeLevel = "PhD"
)

// Query is the immutable evaluation input: the question text plus the
// student context that shapes readability and personalization targets.
type Query struct {
	Text        string      `json:"text"`
	DegreeLevel DegreeLevel `json:"degree_level,omitempty"`
	Major       string      `json:"major,omitempty"`
	Course      string      `json:"course,omitempty"`
}

// Passage is one unit of supporting context with its citation. URL is set
// for web sources and drives the credibility sub-scores.
type Passage struct {
	Text     string `json:"text"`
	Citation string `json:"citation,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Candidate is a generated answer at a point in time. Attempt 0 is the
// original answer; each refinement cycle increments it.
type Candidate struct {
	Text       string     `json:"text"`
	SourceType SourceType `json:"source_type"`
	Context    []Passage  `json:"context,omitempty"`
	Attempt    int        `json:"attempt"`
}

// ContextText joins the candidate's supporting passages into one block for
// embedding-based metrics.
func (c *Candidate) ContextText() string {
	if c == nil || len(c.Context) == 0 {
		return ""
	}
	var out string
	for i, p := range c.Context {
		if i > 0 {
			out += "\n\n"
		}
		out += p.Text
	}
	return out
}

// MetricSet maps metric name to a score in [0.0, 1.0]. A metric that could
// not be computed carries its documented default rather than being omitted,
// so the key set is always complete for the source type.
type MetricSet map[string]float64

// Verdict is the immutable result of scoring one candidate.
type Verdict struct {
	SourceType SourceType `json:"source_type"`
	Metrics    MetricSet  `json:"metrics"`
	Overall    float64    `json:"overall"`
	Passed     bool       `json:"passed"`
	// Weakest lists metric names ascending by score. Equal scores are
	// broken by lexical order of the metric name.
	Weakest []string `json:"weakest"`
}

// rankWeakest orders metric names ascending by score, lexical on ties.
func rankWeakest(metrics MetricSet) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		si, sj := metrics[names[i]], metrics[names[j]]
		if si != sj {
			return si < sj
		}
		return names[i] < names[j]
	})
	return names
}

// clamp01 bounds a score to [0.0, 1.0].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
