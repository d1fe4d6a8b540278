package refine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	prismerrors "github.com/ravivarmakumar/prism/errors"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/message"
	"github.com/ravivarmakumar/prism/pkg/logging"
	"github.com/ravivarmakumar/prism/provider"
)

// DefaultWeakScoreFloor marks a metric as weak when its score falls below
// this value. Weak metrics drive the feedback instructions.
const DefaultWeakScoreFloor = 0.6

const systemPrompt = `You revise answers for a student assistant. Improve the draft answer according to the feedback instructions.
Rules:
- Preserve every citation already present, verbatim.
- Preserve factual claims already present; do not invent new facts.
- Return only the revised answer text, no preamble.`

// Engine rewrites a failing candidate using targeted feedback built from its
// weakest metrics. It does not re-score; the caller routes the new candidate
// back through evaluation.
type Engine struct {
	llm            provider.LLMClient
	weakScoreFloor float64
	maxFeedback    int
	logger         *slog.Logger
}

// Option configures the refinement engine.
type Option func(*Engine)

// WithWeakScoreFloor overrides the score below which a metric is targeted.
func WithWeakScoreFloor(v float64) Option {
	return func(e *Engine) { e.weakScoreFloor = v }
}

// WithMaxFeedback caps how many weak metrics receive feedback instructions.
// Zero means no cap.
func WithMaxFeedback(n int) Option {
	return func(e *Engine) { e.maxFeedback = n }
}

// NewEngine creates a refinement engine backed by the given text generator.
func NewEngine(llm provider.LLMClient, opts ...Option) *Engine {
	e := &Engine{
		llm:            llm,
		weakScoreFloor: DefaultWeakScoreFloor,
		logger:         logging.WithComponent("refine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refine produces an improved candidate from a failing verdict. On
// generation failure it returns an error wrapping ErrGenerationFailed and
// the caller keeps the prior candidate; the attempt is still consumed.
func (e *Engine) Refine(ctx context.Context, query *eval.Query, candidate *eval.Candidate, verdict *eval.Verdict) (*eval.Candidate, error) {
	if verdict == nil || verdict.Passed {
		return nil, fmt.Errorf("refine requires a failing verdict: %w", prismerrors.ErrInvalidInput)
	}

	feedback := e.feedbackFor(query, verdict)
	prompt := buildPrompt(query, candidate, feedback)

	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, prompt),
	}

	resp, err := e.llm.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", prismerrors.ErrGenerationFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty revision", prismerrors.ErrGenerationFailed)
	}

	e.logger.Info("candidate refined",
		"attempt", candidate.Attempt+1,
		"weak_metrics", feedbackMetrics(feedback))

	return &eval.Candidate{
		Text:       strings.TrimSpace(resp.Content),
		SourceType: candidate.SourceType,
		Context:    candidate.Context,
		Attempt:    candidate.Attempt + 1,
	}, nil
}

type feedbackItem struct {
	metric      string
	instruction string
}

// feedbackFor selects the weak metrics in ascending score order and maps
// each to an instruction. When nothing falls below the floor but the verdict
// still failed, the single weakest metric is targeted.
func (e *Engine) feedbackFor(query *eval.Query, verdict *eval.Verdict) []feedbackItem {
	var items []feedbackItem
	for _, name := range verdict.Weakest {
		if verdict.Metrics[name] >= e.weakScoreFloor {
			continue
		}
		items = append(items, feedbackItem{name, instructionFor(name, query, verdict)})
		if e.maxFeedback > 0 && len(items) >= e.maxFeedback {
			break
		}
	}
	if len(items) == 0 && len(verdict.Weakest) > 0 {
		name := verdict.Weakest[0]
		items = append(items, feedbackItem{name, instructionFor(name, query, verdict)})
	}
	return items
}

func instructionFor(metric string, query *eval.Query, verdict *eval.Verdict) string {
	score := verdict.Metrics[metric]
	switch metric {
	case eval.MetricRelevance:
		return fmt.Sprintf("relevance is low (%.2f): answer the question more directly and stay grounded in the provided context", score)
	case eval.MetricReadability:
		return fmt.Sprintf("readability mismatch (%.2f): adjust vocabulary and sentence complexity toward a %s-level reader", score, degreeLabel(query.DegreeLevel))
	case eval.MetricCoherence:
		return fmt.Sprintf("coherence is low (%.2f): improve the logical flow so each sentence follows from the previous one", score)
	case eval.MetricCoverage:
		return fmt.Sprintf("coverage is low (%.2f): make sure every part of the question is addressed", score)
	case eval.MetricCredibility:
		return fmt.Sprintf("credibility is low (%.2f): lean on the most authoritative sources in the context", score)
	case eval.MetricConsensus:
		return fmt.Sprintf("consensus is low (%.2f): reconcile claims that differ across sources and note disagreement explicitly", score)
	case eval.MetricConsistency:
		return fmt.Sprintf("consistency is low (%.2f): remove statements that contradict each other", score)
	default:
		return fmt.Sprintf("%s is low (%.2f): improve this aspect of the answer", metric, score)
	}
}

func degreeLabel(d eval.DegreeLevel) string {
	switch d {
	case eval.DegreeMasters, eval.DegreePhD:
		return string(d)
	default:
		return string(eval.DegreeBachelors)
	}
}

func buildPrompt(query *eval.Query, candidate *eval.Candidate, feedback []feedbackItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\n", query.Text)

	if len(candidate.Context) > 0 {
		b.WriteString("Context:\n")
		for _, p := range candidate.Context {
			b.WriteString(p.Text)
			if p.Citation != "" {
				fmt.Fprintf(&b, " [%s]", p.Citation)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Draft answer:\n%s\n\n", candidate.Text)

	b.WriteString("Feedback:\n")
	for _, item := range feedback {
		fmt.Fprintf(&b, "- %s\n", item.instruction)
	}
	return b.String()
}

func feedbackMetrics(items []feedbackItem) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.metric
	}
	return names
}
