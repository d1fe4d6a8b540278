package pipeline

import (
	"context"

	"github.com/ravivarmakumar/prism/a2a"
	"github.com/ravivarmakumar/prism/eval"
	"github.com/ravivarmakumar/prism/message"
)

// Stage identifies one processing state of the pipeline state machine.
type Stage int

const (
	StageQueryRefinement Stage = iota
	StageRelevance
	StageCourseRAG
	StageWebSearch
	StagePersonalization
	StageEvaluation
	StageRefinement
	StageDone
)

var stageNames = [...]string{
	StageQueryRefinement: "query_refinement",
	StageRelevance:       "relevance",
	StageCourseRAG:       "course_rag",
	StageWebSearch:       "web_search",
	StagePersonalization: "personalization",
	StageEvaluation:      "evaluation",
	StageRefinement:      "refinement",
	StageDone:            "done",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Exchange pairs a candidate with the verdict it received.
type Exchange struct {
	Candidate *eval.Candidate `json:"candidate"`
	Verdict   *eval.Verdict   `json:"verdict"`
}

// RefinementState tracks the refinement budget for one run. Attempts counts
// failing evaluations, including ones where the following refinement could
// not generate a new candidate: a failed attempt still consumes budget,
// otherwise a persistently failing generator would loop forever.
type RefinementState struct {
	Attempts          int        `json:"attempts"`
	MaxAttempts       int        `json:"max_attempts"`
	History           []Exchange `json:"history"`
	DisclaimerApplied bool       `json:"disclaimer_applied"`
}

// RunState is the shared object threaded through the state machine for one
// query. It is owned by a single run and never shared across runs.
type RunState struct {
	SessionID  string
	Query      *eval.Query
	Candidate  *eval.Candidate
	Refinement RefinementState

	// Routing flags produced by upstream stages.
	IsVague      bool
	IsRelevant   bool
	ContentFound bool
	SourceType   eval.SourceType

	FinalAnswer string
	Verdicts    []*eval.Verdict
}

// Result is what a completed run exposes to the host.
type Result struct {
	FinalAnswer       string          `json:"final_answer"`
	VerdictHistory    []*eval.Verdict `json:"verdict_history"`
	A2ALog            []a2a.Message   `json:"a2a_log"`
	DisclaimerApplied bool            `json:"disclaimer_applied"`
	SourceType        eval.SourceType `json:"source_type"`
	Attempts          int             `json:"attempts"`
}

// Retriever fetches course material passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, course string) ([]eval.Passage, error)
}

// WebSearcher fetches open-web passages for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]eval.Passage, error)
}

// HistoryProvider supplies recent conversation messages for personalization.
type HistoryProvider interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]*message.Message, error)
}
