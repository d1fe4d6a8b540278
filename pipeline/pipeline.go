// Package pipeline drives a query through the staged state machine:
// query_refinement, relevance, course_rag, web_search, personalization,
// evaluation, refinement, done. Evaluation and refinement form the single
// bounded loop; every transition emits one audit message to the A2A bus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ravivarmakumar/prism/a2a"
	prismerrors "github.com/ravivarmakumar/prism/errors"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/message"
	"github.com/ravivarmakumar/prism/pkg/logging"
	"github.com/ravivarmakumar/prism/pkg/telemetry"
	"github.com/ravivarmakumar/prism/provider"
	"github.com/ravivarmakumar/prism/refine"
	"github.com/ravivarmakumar/prism/runlog"
)

// DefaultMaxAttempts bounds the evaluation-refinement loop.
const DefaultMaxAttempts = 3

// Disclaimer is appended to the final answer when the attempt budget runs
// out without a passing verdict.
const Disclaimer = "Note: this answer did not meet the automatic quality bar after several revision attempts and may be incomplete or imprecise."

// stageHandler executes one stage against the run state and returns the next
// stage. Handlers never fail the run; degraded paths still reach done.
type stageHandler func(ctx context.Context, state *RunState) Stage

// Pipeline owns the stage handler table and the collaborators each stage
// needs. Safe for concurrent runs: all per-query state lives in RunState.
type Pipeline struct {
	llm          provider.LLMClient
	gate         *eval.Gate
	refiner      *refine.Engine
	retriever    Retriever
	searcher     WebSearcher
	history      HistoryProvider
	historyLimit int
	bus          *a2a.Bus
	runLogger    runlog.Logger
	maxAttempts  int

	handlers map[Stage]stageHandler
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRetriever wires the course material retriever.
func WithRetriever(r Retriever) Option {
	return func(p *Pipeline) { p.retriever = r }
}

// WithWebSearcher wires the web search capability.
func WithWebSearcher(s WebSearcher) Option {
	return func(p *Pipeline) { p.searcher = s }
}

// WithHistory wires conversation history for personalization.
func WithHistory(h HistoryProvider, limit int) Option {
	return func(p *Pipeline) {
		p.history = h
		if limit > 0 {
			p.historyLimit = limit
		}
	}
}

// WithBus wires the A2A audit bus. A nil bus disables publication without
// changing run behavior.
func WithBus(bus *a2a.Bus) Option {
	return func(p *Pipeline) { p.bus = bus }
}

// WithRunLogger wires run record persistence.
func WithRunLogger(l runlog.Logger) Option {
	return func(p *Pipeline) { p.runLogger = l }
}

// WithMaxAttempts overrides the refinement budget.
func WithMaxAttempts(n int) Option {
	return func(p *Pipeline) { p.maxAttempts = n }
}

// New builds a pipeline. The generator, gate, and refiner are required;
// everything else is optional and degrades gracefully when absent.
func New(llm provider.LLMClient, gate *eval.Gate, refiner *refine.Engine, opts ...Option) (*Pipeline, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required: %w", prismerrors.ErrConfiguration)
	}
	if gate == nil {
		return nil, fmt.Errorf("evaluation gate is required: %w", prismerrors.ErrConfiguration)
	}
	if refiner == nil {
		return nil, fmt.Errorf("refinement engine is required: %w", prismerrors.ErrConfiguration)
	}

	p := &Pipeline{
		llm:          llm,
		gate:         gate,
		refiner:      refiner,
		runLogger:    runlog.Noop{},
		maxAttempts:  DefaultMaxAttempts,
		historyLimit: 10,
		logger:       logging.WithComponent("pipeline"),
		tracer:       otel.Tracer("prism/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive, got %d: %w", p.maxAttempts, prismerrors.ErrConfiguration)
	}

	// The handler table makes the stage set explicit; an unmapped stage is
	// a construction-time defect, not a runtime surprise.
	p.handlers = map[Stage]stageHandler{
		StageQueryRefinement: p.handleQueryRefinement,
		StageRelevance:       p.handleRelevance,
		StageCourseRAG:       p.handleCourseRAG,
		StageWebSearch:       p.handleWebSearch,
		StagePersonalization: p.handlePersonalization,
		StageEvaluation:      p.handleEvaluation,
		StageRefinement:      p.handleRefinement,
	}
	return p, nil
}

// Run processes one query to completion. A run always terminates: the
// evaluation-refinement cycle is the only loop and it is bounded by the
// attempt budget.
func (p *Pipeline) Run(ctx context.Context, query *eval.Query, sessionID string) (*Result, error) {
	if query == nil || query.Text == "" {
		return nil, fmt.Errorf("query text is required: %w", prismerrors.ErrInvalidInput)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	var runErr error
	defer func() { telemetry.End(span, runErr) }()

	state := &RunState{
		SessionID: sessionID,
		Query:     query,
		Refinement: RefinementState{
			MaxAttempts: p.maxAttempts,
		},
	}

	// Hard ceiling on dispatch steps. The state machine terminates by
	// construction; this guards against a handler regression.
	maxSteps := len(stageNames) + 2*p.maxAttempts + 2

	stage := StageQueryRefinement
	for step := 0; stage != StageDone; step++ {
		if step >= maxSteps {
			runErr = fmt.Errorf("stage dispatch exceeded %d steps at %s: %w", maxSteps, stage, prismerrors.ErrInternal)
			return nil, runErr
		}

		handler, ok := p.handlers[stage]
		if !ok {
			runErr = fmt.Errorf("no handler for stage %s: %w", stage, prismerrors.ErrInternal)
			return nil, runErr
		}

		next := p.runStage(ctx, stage, handler, state)
		p.logger.Debug("stage transition", "from", stage.String(), "to", next.String())
		stage = next
	}

	p.finish(ctx, state)

	result := &Result{
		FinalAnswer:       state.FinalAnswer,
		VerdictHistory:    state.Verdicts,
		A2ALog:            p.bus.All(),
		DisclaimerApplied: state.Refinement.DisclaimerApplied,
		SourceType:        state.SourceType,
		Attempts:          state.Refinement.Attempts,
	}
	span.SetAttributes(
		attribute.Bool("disclaimer_applied", result.DisclaimerApplied),
		attribute.Int("attempts", result.Attempts),
		attribute.Int("verdicts", len(result.VerdictHistory)),
	)
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, handler stageHandler, state *RunState) Stage {
	ctx, span := p.tracer.Start(ctx, "pipeline.stage."+stage.String())
	defer telemetry.End(span, nil)
	return handler(ctx, state)
}

// handleQueryRefinement rewrites the query and short-circuits vague input
// with a clarification request.
func (p *Pipeline) handleQueryRefinement(ctx context.Context, state *RunState) Stage {
	out := p.refineQuery(ctx, state.Query)
	if out.IsVague {
		state.IsVague = true
		state.FinalAnswer = out.Clarification
		p.publish(StageQueryRefinement, StageDone, a2a.TypeTermination, map[string]any{
			"reason": "vague_query",
		})
		return StageDone
	}

	state.Query = &eval.Query{
		Text:        out.RefinedQuery,
		DegreeLevel: state.Query.DegreeLevel,
		Major:       state.Query.Major,
		Course:      state.Query.Course,
	}
	p.publish(StageQueryRefinement, StageRelevance, a2a.TypeHandoff, map[string]any{
		"refined_query": out.RefinedQuery,
	})
	return StageRelevance
}

// handleRelevance rejects out-of-scope questions.
func (p *Pipeline) handleRelevance(ctx context.Context, state *RunState) Stage {
	judgment := p.judgeRelevance(ctx, state.Query)
	state.IsRelevant = judgment.IsRelevant
	if !judgment.IsRelevant {
		state.FinalAnswer = "This question falls outside the topics I can help with. Please ask about your course material or a related academic subject."
		p.publish(StageRelevance, StageDone, a2a.TypeTermination, map[string]any{
			"reason": "irrelevant_query",
			"detail": judgment.Reason,
		})
		return StageDone
	}

	p.publish(StageRelevance, StageCourseRAG, a2a.TypeDecision, map[string]any{
		"is_relevant": true,
	})
	return StageCourseRAG
}

// handleCourseRAG answers from course material when the retriever finds
// content, otherwise falls through to web search.
func (p *Pipeline) handleCourseRAG(ctx context.Context, state *RunState) Stage {
	var passages []eval.Passage
	if p.retriever != nil {
		found, err := p.retriever.Retrieve(ctx, state.Query.Text, state.Query.Course)
		if err != nil {
			p.logger.Warn("course retrieval failed, falling back to web search", "error", err)
		} else {
			passages = found
		}
	}

	if len(passages) == 0 {
		state.ContentFound = false
		p.publish(StageCourseRAG, StageWebSearch, a2a.TypeDecision, map[string]any{
			"content_found": false,
		})
		return StageWebSearch
	}

	state.ContentFound = true
	state.SourceType = eval.SourceCourse
	state.Candidate = &eval.Candidate{
		Text:       p.generateAnswer(ctx, state.Query, passages),
		SourceType: eval.SourceCourse,
		Context:    passages,
	}
	p.publish(StageCourseRAG, StagePersonalization, a2a.TypeHandoff, map[string]any{
		"content_found": true,
		"passages":      len(passages),
	})
	return StagePersonalization
}

// handleWebSearch always proceeds to personalization; a failed search still
// produces a degraded answer.
func (p *Pipeline) handleWebSearch(ctx context.Context, state *RunState) Stage {
	var passages []eval.Passage
	if p.searcher != nil {
		found, err := p.searcher.Search(ctx, state.Query.Text)
		if err != nil {
			p.logger.Warn("web search failed, answering without sources", "error", err)
		} else {
			passages = found
		}
	}

	state.SourceType = eval.SourceWeb
	state.Candidate = &eval.Candidate{
		Text:       p.generateAnswer(ctx, state.Query, passages),
		SourceType: eval.SourceWeb,
		Context:    passages,
	}
	p.publish(StageWebSearch, StagePersonalization, a2a.TypeHandoff, map[string]any{
		"sources": len(passages),
	})
	return StagePersonalization
}

// handlePersonalization adapts the draft before evaluation, so the gate
// always scores what the student would actually read.
func (p *Pipeline) handlePersonalization(ctx context.Context, state *RunState) Stage {
	state.Candidate.Text = p.personalizeAnswer(ctx, state)
	p.publish(StagePersonalization, StageEvaluation, a2a.TypeHandoff, nil)
	return StageEvaluation
}

// handleEvaluation gates the candidate and routes to refinement while budget
// remains, appending the disclaimer once it is spent.
func (p *Pipeline) handleEvaluation(ctx context.Context, state *RunState) Stage {
	verdict := p.gate.Evaluate(ctx, state.Query, state.Candidate)
	state.Verdicts = append(state.Verdicts, verdict)
	state.Refinement.History = append(state.Refinement.History, Exchange{
		Candidate: state.Candidate,
		Verdict:   verdict,
	})

	if verdict.Passed {
		state.FinalAnswer = state.Candidate.Text
		p.publish(StageEvaluation, StageDone, a2a.TypeVerdict, map[string]any{
			"overall": verdict.Overall,
			"passed":  true,
		})
		return StageDone
	}

	// Every failing evaluation consumes one attempt, whether or not the
	// following refinement manages to produce a new candidate. A generator
	// that fails persistently therefore still drains the budget.
	state.Refinement.Attempts++

	if state.Refinement.Attempts < p.maxAttempts {
		p.publish(StageEvaluation, StageRefinement, a2a.TypeVerdict, map[string]any{
			"overall": verdict.Overall,
			"passed":  false,
			"weakest": verdict.Weakest,
		})
		return StageRefinement
	}

	state.FinalAnswer = state.Candidate.Text + "\n\n" + Disclaimer
	state.Refinement.DisclaimerApplied = true
	p.publish(StageEvaluation, StageDone, a2a.TypeTermination, map[string]any{
		"overall":            verdict.Overall,
		"passed":             false,
		"reason":             "attempt_budget_exhausted",
		"disclaimer_applied": true,
	})
	return StageDone
}

// handleRefinement always routes back to evaluation. A failed generation
// keeps the prior candidate; the attempt consumed by the failing evaluation
// is spent either way.
func (p *Pipeline) handleRefinement(ctx context.Context, state *RunState) Stage {
	verdict := state.Verdicts[len(state.Verdicts)-1]
	improved, err := p.refiner.Refine(ctx, state.Query, state.Candidate, verdict)
	if err != nil {
		if errors.Is(err, prismerrors.ErrGenerationFailed) {
			p.logger.Warn("refinement generation failed, keeping prior candidate",
				"attempt", state.Refinement.Attempts, "error", err)
		} else {
			p.logger.Error("refinement failed", "error", err)
		}
		p.publish(StageRefinement, StageEvaluation, a2a.TypeHandoff, map[string]any{
			"attempt":  state.Refinement.Attempts,
			"improved": false,
		})
		return StageEvaluation
	}

	state.Candidate = improved
	p.publish(StageRefinement, StageEvaluation, a2a.TypeHandoff, map[string]any{
		"attempt":  state.Refinement.Attempts,
		"improved": true,
	})
	return StageEvaluation
}

// finish records the run and the exchange into session history. Persistence
// failures are logged, never surfaced.
func (p *Pipeline) finish(ctx context.Context, state *RunState) {
	if p.history != nil && state.SessionID != "" {
		if appender, ok := p.history.(interface {
			Append(ctx context.Context, sessionID string, msg *message.Message) error
		}); ok {
			if err := appender.Append(ctx, state.SessionID, message.NewMessage(message.RoleUser, state.Query.Text)); err != nil {
				p.logger.Warn("failed to record user message", "error", err)
			}
			if err := appender.Append(ctx, state.SessionID, message.NewMessage(message.RoleAssistant, state.FinalAnswer)); err != nil {
				p.logger.Warn("failed to record assistant message", "error", err)
			}
		}
	}

	rec := &runlog.Record{
		SessionID:         state.SessionID,
		Query:             state.Query.Text,
		FinalAnswer:       state.FinalAnswer,
		SourceType:        string(state.SourceType),
		Attempts:          state.Refinement.Attempts,
		DisclaimerApplied: state.Refinement.DisclaimerApplied,
	}
	if n := len(state.Verdicts); n > 0 {
		rec.Overall = state.Verdicts[n-1].Overall
		rec.Passed = state.Verdicts[n-1].Passed
	}
	if err := p.runLogger.LogRun(ctx, rec); err != nil {
		p.logger.Warn("failed to persist run record", "error", err)
	}
}

// publish emits one audit message per transition. The bus is observational
// only; a nil bus changes nothing about the run.
func (p *Pipeline) publish(from, to Stage, typ a2a.MessageType, payload map[string]any) {
	p.bus.Publish(a2a.Message{
		Sender:   from.String(),
		Receiver: to.String(),
		Type:     typ,
		Payload:  payload,
	})
}
