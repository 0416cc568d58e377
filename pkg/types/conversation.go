// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Role tags a message in the conversation history.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ToolCall records the assistant's request to run the paper search.
type ToolCall struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Query string `json:"query" yaml:"query"`
}

// Message is one turn of the conversation history.
type Message struct {
	Role     Role      `json:"role" yaml:"role"`
	Content  string    `json:"content" yaml:"content"`
	ToolCall *ToolCall `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
}

// HasText reports whether the message carries non-blank text content.
func (m Message) HasText() bool {
	return strings.TrimSpace(m.Content) != ""
}

// RankingCriterion selects the field papers are ranked by.
type RankingCriterion string

const (
	CriterionCitations RankingCriterion = "citations"
	CriterionRecency   RankingCriterion = "recency"
	CriterionRelevance RankingCriterion = "relevance"
)

// CriterionOptions lists the criteria offered to the user, in display order.
func CriterionOptions() []string {
	return []string{string(CriterionCitations), string(CriterionRecency), string(CriterionRelevance)}
}

// Step is a position in the research workflow. A thread's Next step is
// where execution continues on the following call.
type Step string

const (
	StepDecide         Step = "decide"
	StepSearch         Step = "search"
	StepAwaitCriterion Step = "await_criterion"
	StepRank           Step = "rank"
	StepAnalyze        Step = "analyze"
	StepRespond        Step = "respond"
	StepDone           Step = "done"
)

// InterruptPayload is returned to the caller when a turn suspends waiting
// for a ranking criterion.
type InterruptPayload struct {
	// PapersFound is the retrieved titles joined by newlines.
	PapersFound string   `json:"papers_found" yaml:"papers_found"`
	Titles      []string `json:"titles" yaml:"titles"`
	Message     string   `json:"message" yaml:"message"`
	Options     []string `json:"options" yaml:"options"`
}

// ConversationState is the persisted working memory of one thread.
type ConversationState struct {
	ThreadID string    `json:"thread_id" yaml:"thread_id"`
	Query    string    `json:"query" yaml:"query"`
	Messages []Message `json:"messages" yaml:"messages"`

	// SearchQuery is the query sent to the paper source for this turn.
	SearchQuery  string           `json:"search_query,omitempty" yaml:"search_query,omitempty"`
	Papers       []Paper          `json:"papers" yaml:"papers"`
	Criterion    RankingCriterion `json:"criterion,omitempty" yaml:"criterion,omitempty"`
	RankedPapers []Paper          `json:"ranked_papers" yaml:"ranked_papers"`
	Gaps         string           `json:"gaps,omitempty" yaml:"gaps,omitempty"`

	Next      Step              `json:"next" yaml:"next"`
	Pending   bool              `json:"pending" yaml:"pending"`
	Interrupt *InterruptPayload `json:"interrupt,omitempty" yaml:"interrupt,omitempty"`

	Version   int       `json:"version" yaml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Append adds messages to the end of the history.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// LastHuman returns the content of the most recent human message.
func (s *ConversationState) LastHuman() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleHuman {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastReply returns the content of the most recent assistant message with text.
func (s *ConversationState) LastReply() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.Role == RoleAssistant && m.HasText() {
			return m.Content
		}
	}
	return ""
}

// TurnResult is what a Start or Resume call returns to its caller.
type TurnResult struct {
	ThreadID     string            `json:"thread_id" yaml:"thread_id"`
	Messages     []Message         `json:"messages" yaml:"messages"`
	Papers       []Paper           `json:"papers" yaml:"papers"`
	RankedPapers []Paper           `json:"ranked_papers" yaml:"ranked_papers"`
	Criterion    RankingCriterion  `json:"criterion,omitempty" yaml:"criterion,omitempty"`
	Gaps         string            `json:"gaps,omitempty" yaml:"gaps,omitempty"`
	Reply        string            `json:"reply,omitempty" yaml:"reply,omitempty"`
	Interrupted  bool              `json:"is_interrupted" yaml:"is_interrupted"`
	Interrupt    *InterruptPayload `json:"interrupt_data,omitempty" yaml:"interrupt_data,omitempty"`
}

// ThreadStatus reports whether a thread is waiting on a criterion.
type ThreadStatus struct {
	ThreadID    string  `json:"thread_id" yaml:"thread_id"`
	Interrupted bool    `json:"is_interrupted" yaml:"is_interrupted"`
	Next        Step    `json:"next,omitempty" yaml:"next,omitempty"`
	Papers      []Paper `json:"papers" yaml:"papers"`
}
