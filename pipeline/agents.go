package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/message"
	"github.com/ravivarmakumar/prism/provider"
)

const queryRefinerPrompt = `You prepare student questions for a course assistant.
Rewrite the question so it is specific and self-contained. If the question is
too vague to answer at all, mark it vague and write a short clarification
request instead.
Return JSON only: {"refined_query": string, "is_vague": bool, "clarification": string}`

const relevanceJudgePrompt = `You triage questions for a course assistant. Decide whether the
question belongs to an academic or course-related topic the assistant should answer.
Return JSON only: {"is_relevant": bool, "reason": string}`

const answerPrompt = `You answer student questions for a course assistant.
Ground the answer in the provided context and cite it using the bracketed
citation labels. If the context is empty, answer from general knowledge and
say that no course material was available.`

const personalizePrompt = `You adapt answers for a specific student. Keep every citation and
factual claim intact; adjust only tone, vocabulary, and framing to match the
student's level and field. Return only the adapted answer text.`

const decomposePrompt = `You split a question into the distinct sub-questions it contains.
Return JSON only: {"sub_questions": [string]}`

// queryRefinement is the query_refinement agent's structured output.
type queryRefinement struct {
	RefinedQuery  string `json:"refined_query"`
	IsVague       bool   `json:"is_vague"`
	Clarification string `json:"clarification,omitempty"`
}

// relevanceJudgment is the relevance agent's structured output.
type relevanceJudgment struct {
	IsRelevant bool   `json:"is_relevant"`
	Reason     string `json:"reason,omitempty"`
}

type decomposition struct {
	SubQuestions []string `json:"sub_questions"`
}

// refineQuery rewrites the query and flags vagueness. Agent failures are
// lenient: the original query proceeds un-refined rather than blocking the run.
func (p *Pipeline) refineQuery(ctx context.Context, query *eval.Query) *queryRefinement {
	userPrompt := fmt.Sprintf("Question:\n%s\n\nReturn JSON only.", query.Text)
	raw, err := p.generate(ctx, queryRefinerPrompt, userPrompt)
	if err != nil {
		p.logger.Warn("query refinement agent failed, keeping original query", "error", err)
		return &queryRefinement{RefinedQuery: query.Text}
	}

	out, err := decodeJSON[queryRefinement](raw)
	if err != nil {
		p.logger.Warn("query refinement output parse error, keeping original query", "error", err)
		return &queryRefinement{RefinedQuery: query.Text}
	}
	if strings.TrimSpace(out.RefinedQuery) == "" {
		out.RefinedQuery = query.Text
	}
	if out.IsVague && strings.TrimSpace(out.Clarification) == "" {
		out.Clarification = "Could you clarify your question? It is too broad for me to answer as asked."
	}
	return out
}

// judgeRelevance decides whether the query is in scope. Agent failures
// default to relevant so a flaky judge never rejects a legitimate question.
func (p *Pipeline) judgeRelevance(ctx context.Context, query *eval.Query) *relevanceJudgment {
	userPrompt := fmt.Sprintf("Question:\n%s\nCourse: %s\nMajor: %s\n\nReturn JSON only.",
		query.Text, query.Course, query.Major)
	raw, err := p.generate(ctx, relevanceJudgePrompt, userPrompt)
	if err != nil {
		p.logger.Warn("relevance agent failed, defaulting to relevant", "error", err)
		return &relevanceJudgment{IsRelevant: true}
	}

	out, err := decodeJSON[relevanceJudgment](raw)
	if err != nil {
		p.logger.Warn("relevance output parse error, defaulting to relevant", "error", err)
		return &relevanceJudgment{IsRelevant: true}
	}
	return out
}

// generateAnswer produces a draft answer grounded in the given passages. On
// generation failure it degrades to the raw context so the run still
// delivers something to evaluate.
func (p *Pipeline) generateAnswer(ctx context.Context, query *eval.Query, passages []eval.Passage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question:\n%s\n\n", query.Text)
	if len(passages) > 0 {
		b.WriteString("Context:\n")
		for _, passage := range passages {
			b.WriteString(passage.Text)
			if passage.Citation != "" {
				fmt.Fprintf(&b, " [%s]", passage.Citation)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("Context: (none)\n")
	}

	raw, err := p.generate(ctx, answerPrompt, b.String())
	if err != nil || strings.TrimSpace(raw) == "" {
		p.logger.Warn("answer generation failed, degrading to context summary", "error", err)
		return degradedAnswer(passages)
	}
	return strings.TrimSpace(raw)
}

// degradedAnswer is the fallback when generation fails outright: surface the
// retrieved material rather than nothing.
func degradedAnswer(passages []eval.Passage) string {
	if len(passages) == 0 {
		return "I was unable to produce an answer for this question right now. Please try again."
	}
	var b strings.Builder
	b.WriteString("I could not compose a full answer, but the following material may help:\n")
	for _, passage := range passages {
		b.WriteString("- ")
		b.WriteString(passage.Text)
		if passage.Citation != "" {
			fmt.Fprintf(&b, " [%s]", passage.Citation)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// personalizeAnswer adapts the answer to the student's level and recent
// conversation. Failure keeps the answer unchanged.
func (p *Pipeline) personalizeAnswer(ctx context.Context, state *RunState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student: degree level %s, major %s.\n\n", degreeOrDefault(state.Query.DegreeLevel), state.Query.Major)

	if p.history != nil && state.SessionID != "" {
		recent, err := p.history.Recent(ctx, state.SessionID, p.historyLimit)
		if err != nil {
			p.logger.Warn("session history unavailable", "error", err)
		} else if len(recent) > 0 {
			b.WriteString("Recent conversation:\n")
			for _, msg := range recent {
				fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "Answer to adapt:\n%s", state.Candidate.Text)

	raw, err := p.generate(ctx, personalizePrompt, b.String())
	if err != nil || strings.TrimSpace(raw) == "" {
		p.logger.Warn("personalization failed, keeping answer unchanged", "error", err)
		return state.Candidate.Text
	}
	return strings.TrimSpace(raw)
}

func degreeOrDefault(d eval.DegreeLevel) eval.DegreeLevel {
	switch d {
	case eval.DegreeMasters, eval.DegreePhD:
		return d
	default:
		return eval.DegreeBachelors
	}
}

func (p *Pipeline) generate(ctx context.Context, system, user string) (string, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	}
	resp, err := p.llm.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty response")
	}
	return resp.Content, nil
}

// LLMDecomposer implements eval.Decomposer with a structured-output agent so
// coverage scoring sees the same sub-questions a reader would.
type LLMDecomposer struct {
	llm provider.LLMClient
}

// NewLLMDecomposer creates a decomposer backed by the given generator.
func NewLLMDecomposer(llm provider.LLMClient) *LLMDecomposer {
	return &LLMDecomposer{llm: llm}
}

// Decompose splits the query into sub-questions.
func (d *LLMDecomposer) Decompose(ctx context.Context, query string) ([]string, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, decomposePrompt),
		message.NewMessage(message.RoleUser, fmt.Sprintf("Question:\n%s\n\nReturn JSON only.", query)),
	}
	resp, err := d.llm.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("empty response")
	}
	out, err := decodeJSON[decomposition](resp.Content)
	if err != nil {
		return nil, err
	}
	return out.SubQuestions, nil
}
