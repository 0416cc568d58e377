// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workflow drives a research turn through Decide, Search,
// AwaitCriterion, Rank, Analyze and Respond. Every step is checkpointed
// under the thread id, so a turn suspended at AwaitCriterion can be resumed
// by a later call, from this process or another sharing the store.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/checkpoint"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/rank"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultCallTimeout = 60 * time.Second
	defaultMaxResults  = 10
)

// Controller runs research turns. It is safe for concurrent use; turns on
// the same thread are serialized by the Locker.
type Controller struct {
	llm      llm.Client
	source   search.Source
	store    checkpoint.Store
	locker   checkpoint.Locker
	analyzer *analysis.Analyzer
	logger   *zap.Logger

	callTimeout time.Duration
	maxResults  int
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLocker replaces the in-process per-thread lock, e.g. with a Redis
// lock shared across processes.
func WithLocker(l checkpoint.Locker) Option {
	return func(c *Controller) {
		if l != nil {
			c.locker = l
		}
	}
}

// WithCallTimeout bounds every language model and paper source call.
// Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Controller) { c.callTimeout = d }
}

// WithMaxResults sets how many papers a search requests.
func WithMaxResults(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// New returns a controller over the given collaborators. Client and
// source may be nil for a controller that only serves Status and Reset.
func New(client llm.Client, source search.Source, store checkpoint.Store, opts ...Option) *Controller {
	c := &Controller{
		llm:         client,
		source:      source,
		store:       store,
		locker:      checkpoint.NewKeyedMutex(),
		logger:      zap.NewNop(),
		callTimeout: defaultCallTimeout,
		maxResults:  defaultMaxResults,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.analyzer = analysis.New(client, c.logger)
	return c
}

// Start runs a new user turn. It returns an interrupted result when the
// model chose to search, and the final reply otherwise. A thread waiting
// for a criterion rejects new queries with ErrInterruptPending.
func (c *Controller) Start(ctx context.Context, req StartRequest) (*types.TurnResult, error) {
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	req.Query = strings.TrimSpace(req.Query)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	unlock, err := c.locker.Lock(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("locking thread %s: %w", req.ThreadID, err)
	}
	defer unlock()

	log := c.logger.With(zap.String("thread_id", req.ThreadID))

	state, err := c.store.Load(ctx, req.ThreadID)
	var prev *types.ConversationState
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		now := c.now()
		state = &types.ConversationState{ThreadID: req.ThreadID, CreatedAt: now}
	case err != nil:
		return nil, fmt.Errorf("loading thread %s: %w", req.ThreadID, err)
	default:
		if state.Pending {
			return nil, fmt.Errorf("thread %s: %w", req.ThreadID, ErrInterruptPending)
		}
		if prev, err = cloneState(state); err != nil {
			return nil, err
		}
	}

	beginTurn(state, req.Query)
	log.Info("turn started", zap.Int("history", len(state.Messages)))

	result, err := c.advance(ctx, log, state)
	if err != nil {
		c.restore(ctx, log, req.ThreadID, prev)
		return nil, err
	}
	return result, nil
}

// Resume continues a suspended thread with the given criterion and runs
// Rank, Analyze and Respond. Prior state comes from the store only.
func (c *Controller) Resume(ctx context.Context, req ResumeRequest) (*types.TurnResult, error) {
	req.ThreadID = strings.TrimSpace(req.ThreadID)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	unlock, err := c.locker.Lock(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("locking thread %s: %w", req.ThreadID, err)
	}
	defer unlock()

	log := c.logger.With(zap.String("thread_id", req.ThreadID))

	state, err := c.store.Load(ctx, req.ThreadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, fmt.Errorf("thread %s: %w", req.ThreadID, ErrThreadNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", req.ThreadID, err)
	}
	if !state.Pending || state.Next != types.StepAwaitCriterion {
		return nil, fmt.Errorf("thread %s: %w", req.ThreadID, ErrNoPendingInterrupt)
	}

	prev, err := cloneState(state)
	if err != nil {
		return nil, err
	}

	criterion := rank.ParseCriterion(req.Criterion)
	if input := strings.ToLower(strings.TrimSpace(req.Criterion)); input != string(criterion) {
		log.Info("unrecognized ranking criterion, using default",
			zap.String("input", req.Criterion), zap.String("criterion", string(criterion)))
	}
	state.Criterion = criterion
	state.Pending = false
	state.Interrupt = nil
	state.Next = types.StepRank
	log.Info("turn resumed", zap.String("criterion", string(criterion)))

	result, err := c.advance(ctx, log, state)
	if err != nil {
		c.restore(ctx, log, req.ThreadID, prev)
		return nil, err
	}
	return result, nil
}

// Status reports whether threadID is waiting for a criterion. Unknown
// threads are reported as not interrupted.
func (c *Controller) Status(ctx context.Context, threadID string) (*types.ThreadStatus, error) {
	threadID = strings.TrimSpace(threadID)
	if err := validateRequest(statusRequest{ThreadID: threadID}); err != nil {
		return nil, err
	}

	state, err := c.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return &types.ThreadStatus{ThreadID: threadID, Papers: []types.Paper{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}

	status := &types.ThreadStatus{
		ThreadID:    threadID,
		Interrupted: state.Pending,
		Next:        state.Next,
		Papers:      state.Papers,
	}
	if status.Papers == nil {
		status.Papers = []types.Paper{}
	}
	return status, nil
}

// Reset drops the persisted state of threadID.
func (c *Controller) Reset(ctx context.Context, threadID string) error {
	threadID = strings.TrimSpace(threadID)
	if err := validateRequest(statusRequest{ThreadID: threadID}); err != nil {
		return err
	}

	unlock, err := c.locker.Lock(ctx, threadID)
	if err != nil {
		return fmt.Errorf("locking thread %s: %w", threadID, err)
	}
	defer unlock()

	if err := c.store.Delete(ctx, threadID); err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return fmt.Errorf("thread %s: %w", threadID, ErrThreadNotFound)
		}
		return fmt.Errorf("deleting thread %s: %w", threadID, err)
	}
	c.logger.Info("thread reset", zap.String("thread_id", threadID))
	return nil
}

// beginTurn appends the user's query and clears the fields that belong to
// the previous turn. History is kept.
func beginTurn(state *types.ConversationState, query string) {
	state.Query = query
	state.SearchQuery = ""
	state.Papers = []types.Paper{}
	state.Criterion = ""
	state.RankedPapers = []types.Paper{}
	state.Gaps = ""
	state.Pending = false
	state.Interrupt = nil
	state.Next = types.StepDecide
	state.Append(types.Message{Role: types.RoleHuman, Content: query})
}

// checkpoint persists state after a step.
func (c *Controller) checkpoint(ctx context.Context, state *types.ConversationState) error {
	state.Version++
	state.UpdatedAt = c.now()
	if err := c.store.Save(ctx, state); err != nil {
		return fmt.Errorf("checkpointing thread %s at %s: %w", state.ThreadID, state.Next, err)
	}
	return nil
}

// restore puts back the snapshot that existed when the call began, or
// removes the thread if there was none. It runs even when ctx is done.
func (c *Controller) restore(ctx context.Context, log *zap.Logger, threadID string, prev *types.ConversationState) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if prev == nil {
		err = c.store.Delete(ctx, threadID)
		if errors.Is(err, checkpoint.ErrNotFound) {
			err = nil
		}
	} else {
		err = c.store.Save(ctx, prev)
	}
	if err != nil {
		log.Error("restoring thread after failed turn", zap.Error(err))
		return
	}
	log.Warn("turn failed, thread restored", zap.Int("version", versionOf(prev)))
}

func versionOf(s *types.ConversationState) int {
	if s == nil {
		return 0
	}
	return s.Version
}

// callContext bounds one external call.
func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout > 0 {
		return context.WithTimeout(ctx, c.callTimeout)
	}
	return context.WithCancel(ctx)
}

func cloneState(s *types.ConversationState) (*types.ConversationState, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("copying thread state: %w", err)
	}
	var out types.ConversationState
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copying thread state: %w", err)
	}
	return &out, nil
}

// turnResult converts state into the caller-facing result.
func turnResult(state *types.ConversationState) *types.TurnResult {
	res := &types.TurnResult{
		ThreadID:     state.ThreadID,
		Messages:     state.Messages,
		Papers:       state.Papers,
		RankedPapers: state.RankedPapers,
		Criterion:    state.Criterion,
		Gaps:         state.Gaps,
		Interrupted:  state.Pending,
		Interrupt:    state.Interrupt,
	}
	if !state.Pending {
		res.Reply = state.LastReply()
	}
	if res.Papers == nil {
		res.Papers = []types.Paper{}
	}
	if res.RankedPapers == nil {
		res.RankedPapers = []types.Paper{}
	}
	return res
}
