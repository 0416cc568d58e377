// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/rank"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// advance runs steps from state.Next until the turn completes or suspends,
// checkpointing after each one.
func (c *Controller) advance(ctx context.Context, log *zap.Logger, state *types.ConversationState) (*types.TurnResult, error) {
	if err := c.checkpoint(ctx, state); err != nil {
		return nil, err
	}

	for {
		step := state.Next
		stepLog := log.With(zap.String("step", string(step)))

		var err error
		start := time.Now()
		switch step {
		case types.StepDecide:
			err = c.decide(ctx, stepLog, state)
		case types.StepSearch:
			c.search(ctx, stepLog, state)
		case types.StepAwaitCriterion:
			stepLog.Info("turn suspended for ranking criterion", zap.Int("papers", len(state.Papers)))
			return turnResult(state), nil
		case types.StepRank:
			c.rankPapers(stepLog, state)
		case types.StepAnalyze:
			c.analyze(ctx, state)
		case types.StepRespond:
			err = c.respond(ctx, state)
		case types.StepDone:
			log.Info("turn complete", zap.Int("ranked", len(state.RankedPapers)))
			return turnResult(state), nil
		default:
			return nil, fmt.Errorf("thread %s: unknown step %q", state.ThreadID, step)
		}
		if err != nil {
			stepLog.Error("step failed", zap.Error(err))
			return nil, err
		}
		stepLog.Debug("step finished", zap.Duration("elapsed", time.Since(start)), zap.String("next", string(state.Next)))

		if err := c.checkpoint(ctx, state); err != nil {
			return nil, err
		}
	}
}

// decide asks the model whether the latest turn needs a paper search.
func (c *Controller) decide(ctx context.Context, log *zap.Logger, state *types.ConversationState) error {
	msgs := make([]types.Message, 0, len(state.Messages)+1)
	msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: decideInstruction})
	msgs = append(msgs, state.Messages...)

	callCtx, cancel := c.callContext(ctx)
	reply, err := c.llm.Chat(callCtx, msgs, []llm.Tool{llm.SearchPapersTool})
	cancel()
	if err != nil {
		return &StepError{Step: types.StepDecide, ThreadID: state.ThreadID, Err: err}
	}

	if !reply.WantsSearch() {
		log.Info("answering directly")
		state.Next = types.StepRespond
		return nil
	}

	call := *reply.ToolCall
	if call.Query == "" {
		call.Query = state.LastHuman()
	}
	state.Append(types.Message{Role: types.RoleAssistant, ToolCall: &call})
	state.SearchQuery = call.Query
	state.Next = types.StepSearch
	log.Info("search requested", zap.String("query", call.Query))
	return nil
}

// search retrieves papers and suspends the turn. Source failures leave an
// empty list.
func (c *Controller) search(ctx context.Context, log *zap.Logger, state *types.ConversationState) {
	callCtx, cancel := c.callContext(ctx)
	papers, err := c.source.Search(callCtx, state.SearchQuery, c.maxResults)
	cancel()
	if err != nil {
		log.Warn("paper search failed, continuing without papers",
			zap.String("source", c.source.Name()), zap.String("query", state.SearchQuery), zap.Error(err))
		papers = nil
	}
	if papers == nil {
		papers = []types.Paper{}
	}

	state.Papers = papers
	state.Next = types.StepAwaitCriterion
	state.Pending = true
	state.Interrupt = newInterrupt(papers)
	log.Info("papers retrieved", zap.Int("count", len(papers)))
}

func (c *Controller) rankPapers(log *zap.Logger, state *types.ConversationState) {
	state.Criterion = rank.ParseCriterion(string(state.Criterion))
	state.RankedPapers = rank.Rank(state.Papers, state.Criterion)
	state.Next = types.StepAnalyze
	log.Info("papers ranked",
		zap.String("criterion", string(state.Criterion)),
		zap.Strings("top", types.Titles(state.RankedPapers)))
}

func (c *Controller) analyze(ctx context.Context, state *types.ConversationState) {
	query := state.SearchQuery
	if query == "" {
		query = state.Query
	}
	callCtx, cancel := c.callContext(ctx)
	state.Gaps = c.analyzer.Analyze(callCtx, state.RankedPapers, query)
	cancel()
	state.Next = types.StepRespond
}

// respond produces the user-visible reply from the ranked papers, the gap
// analysis and the text turns of the conversation.
func (c *Controller) respond(ctx context.Context, state *types.ConversationState) error {
	prompt, err := renderRespondPrompt(state)
	if err != nil {
		return &StepError{Step: types.StepRespond, ThreadID: state.ThreadID, Err: err}
	}

	msgs := []types.Message{{Role: types.RoleSystem, Content: prompt}}
	for _, m := range state.Messages {
		if m.HasText() {
			msgs = append(msgs, m)
		}
	}

	callCtx, cancel := c.callContext(ctx)
	reply, err := c.llm.Chat(callCtx, msgs, nil)
	cancel()
	if err != nil {
		return &StepError{Step: types.StepRespond, ThreadID: state.ThreadID, Err: err}
	}
	if strings.TrimSpace(reply.Text) == "" {
		return &StepError{Step: types.StepRespond, ThreadID: state.ThreadID, Err: llm.ErrEmptyResponse}
	}

	state.Append(types.Message{Role: types.RoleAssistant, Content: reply.Text})
	state.Next = types.StepDone
	return nil
}
