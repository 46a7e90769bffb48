// Package engine is the caller-facing facade. A host tool constructs
// one Engine, feeds it invocation context, and drives refinement
// sessions through it; everything below (trigger analysis, pattern
// recall, conversations, cost estimation) is wired here.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/smart-ai-memory/empathy-refine/internal/cache"
	"github.com/smart-ai-memory/empathy-refine/internal/conversation"
	"github.com/smart-ai-memory/empathy-refine/internal/cost"
	"github.com/smart-ai-memory/empathy-refine/internal/llm"
	"github.com/smart-ai-memory/empathy-refine/internal/logging"
	"github.com/smart-ai-memory/empathy-refine/internal/patterns"
	"github.com/smart-ai-memory/empathy-refine/internal/storage"
	"github.com/smart-ai-memory/empathy-refine/internal/trigger"
	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// Config aggregates the tunables of every subsystem. Zero values fall
// back to each subsystem's defaults.
type Config struct {
	Registry     *workflow.Registry
	Trigger      trigger.Config
	Patterns     patterns.Config
	Cost         cost.Config
	Conversation conversation.Config

	// RecallCacheSize bounds the recall result cache. Zero means 32.
	RecallCacheSize int
	// RecallCacheTTL expires cached recall results. Zero means 5m.
	RecallCacheTTL time.Duration
}

// DefaultConfig returns the shipped configuration.
func DefaultConfig() Config {
	return Config{
		Trigger:         trigger.Default(),
		Patterns:        patterns.DefaultConfig(),
		Cost:            cost.DefaultConfig(),
		Conversation:    conversation.DefaultConfig(),
		RecallCacheSize: 32,
		RecallCacheTTL:  5 * time.Minute,
	}
}

// Refinement describes a freshly opened refinement session.
type Refinement struct {
	SessionID string                `json:"session_id"`
	Question  string                `json:"question"`
	Form      conversation.FormType `json:"form"`
}

// Engine ties the subsystems together behind one API.
type Engine struct {
	registry      *workflow.Registry
	trigger       *trigger.Engine
	patterns      *patterns.Store
	estimator     *cost.Estimator
	conversations *conversation.Manager

	// recall caches FindMatches results per context signature so
	// repeated palette openings don't rescan the store. Guarded by mu
	// together with sessionCtx; cache.Cache is not safe on its own.
	mu         sync.Mutex
	recall     *cache.Cache[string, []patterns.Match]
	sessionCtx map[string]workflow.Context

	store  storage.Store
	logger *slog.Logger
}

// New wires an engine over the given persistence and generation
// collaborators. A nil generator is allowed; sessions then run
// entirely on the deterministic fallback replies.
func New(cfg Config, st storage.Store, gen llm.Generator) *Engine {
	registry := cfg.Registry
	if registry == nil {
		registry = workflow.DefaultRegistry()
	}
	size := cfg.RecallCacheSize
	if size <= 0 {
		size = 32
	}
	ttl := cfg.RecallCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Engine{
		registry:      registry,
		trigger:       trigger.New(cfg.Trigger, registry),
		patterns:      patterns.NewStore(cfg.Patterns, st),
		estimator:     cost.New(cfg.Cost, registry),
		conversations: conversation.NewManager(cfg.Conversation, gen),
		recall:        cache.New[string, []patterns.Match](cache.Options{Capacity: size, TTL: ttl, Policy: cache.EvictLRU}),
		sessionCtx:    make(map[string]workflow.Context),
		store:         st,
		logger:        logging.NewModuleLogger("engine"),
	}
}

// Workflows exposes the catalog.
func (e *Engine) Workflows() *workflow.Registry { return e.registry }

// Patterns exposes the learned-pattern store.
func (e *Engine) Patterns() *patterns.Store { return e.patterns }

// GatherContext derives an invocation context from raw host input.
func (e *Engine) GatherContext(workflowName string, raw workflow.RawInput, source workflow.TriggerSource) workflow.Context {
	return workflow.GatherContext(workflowName, raw, source)
}

// AnalyzeTrigger decides whether this invocation warrants refinement.
func (e *Engine) AnalyzeTrigger(ctx workflow.Context) trigger.Result {
	return e.trigger.Analyze(ctx)
}

// StartRefinement opens a conversational session for the invocation.
// Each workflow-plus-context pair carries at most one active session;
// starting again under the same pair supersedes the earlier one.
func (e *Engine) StartRefinement(ctx workflow.Context) (*Refinement, error) {
	if _, ok := e.registry.Lookup(ctx.WorkflowName); !ok {
		return nil, fmt.Errorf("engine: unknown workflow %q", ctx.WorkflowName)
	}

	form := conversation.FormForWorkflow(ctx.WorkflowName)
	key := sessionKey(ctx)
	s, err := e.conversations.Start(form, key)
	if err != nil {
		return nil, fmt.Errorf("start refinement: %w", err)
	}

	e.mu.Lock()
	e.sessionCtx[s.ID] = ctx
	e.mu.Unlock()

	return &Refinement{SessionID: s.ID, Question: s.InitialQuestion(), Form: form}, nil
}

// SendTurn forwards one user answer into the session. A completed
// session feeds its answers back into the pattern store before the
// turn is returned.
func (e *Engine) SendTurn(ctx context.Context, sessionID, text string) (*conversation.Turn, error) {
	turn, err := e.conversations.SendTurn(ctx, sessionID, text)
	if err != nil {
		return nil, err
	}
	if turn.Complete {
		e.learnFromSession(sessionID)
	}
	return turn, nil
}

// EndRefinement closes the session on the transcript so far and, like
// a natural completion, learns from it.
func (e *Engine) EndRefinement(sessionID string) (*conversation.Turn, error) {
	turn, err := e.conversations.EndAndSummarize(sessionID)
	if err != nil {
		return nil, err
	}
	e.learnFromSession(sessionID)
	return turn, nil
}

// Cancel aborts a session. Nothing is learned from it.
func (e *Engine) Cancel(sessionID string) error {
	err := e.conversations.Cancel(sessionID)
	e.forget(sessionID)
	e.conversations.Remove(sessionID)
	return err
}

// RecallBestMatch returns the strongest learned pattern for the
// context, if any clears the match threshold. A returned match counts
// as a recall hit and bumps the pattern's usage.
func (e *Engine) RecallBestMatch(ctx workflow.Context) (*patterns.Match, bool) {
	key := sessionKey(ctx)

	e.mu.Lock()
	matches, ok := e.recall.Get(key)
	if !ok {
		matches = e.patterns.FindMatches(ctx)
		e.recall.Put(key, matches)
	}
	e.mu.Unlock()

	if len(matches) == 0 {
		return nil, false
	}
	best := matches[0]
	e.patterns.MarkUsed(best.Pattern.ID)
	return &best, true
}

// EstimateCost estimates the run cost by input size in characters.
// An empty tier override uses the workflow's default tier.
func (e *Engine) EstimateCost(workflowName string, inputSize int, tierOverride workflow.Tier) (cost.Estimate, error) {
	return e.estimator.Estimate(workflowName, inputSize, tierOverride)
}

// EstimateTextCost estimates from the actual input text, tokenizing
// it when the encoder is available.
func (e *Engine) EstimateTextCost(workflowName, input string, tierOverride workflow.Tier) (cost.Estimate, error) {
	return e.estimator.EstimateText(workflowName, input, tierOverride)
}

// CompareTiers estimates the same run at every tier.
func (e *Engine) CompareTiers(workflowName string, inputSize int) (map[workflow.Tier]cost.Estimate, error) {
	return e.estimator.CompareTiers(workflowName, inputSize)
}

// CalculateSavings reports the saving of moving a run between tiers.
func (e *Engine) CalculateSavings(workflowName string, inputSize int, from, to workflow.Tier) (cost.Savings, error) {
	return e.estimator.CalculateSavings(workflowName, inputSize, from, to)
}

// Close releases the underlying store if it holds resources.
func (e *Engine) Close() error {
	if c, ok := e.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// learnFromSession turns a finished session's answers into a learned
// pattern. Sessions without mappable answers (no declared questions,
// or none answered) are dropped without learning.
func (e *Engine) learnFromSession(sessionID string) {
	s, ok := e.conversations.Get(sessionID)
	if !ok {
		return
	}
	e.mu.Lock()
	ctx, ok := e.sessionCtx[sessionID]
	e.mu.Unlock()
	if !ok {
		return
	}

	refinements := zipAnswers(e.registry, ctx.WorkflowName, s.UserAnswers())
	if len(refinements) > 0 {
		e.patterns.Learn(ctx, refinements)
		e.mu.Lock()
		e.recall.Delete(sessionKey(ctx))
		e.mu.Unlock()
		e.logger.Info("learned pattern from session",
			"session", sessionID, "workflow", ctx.WorkflowName, "answers", len(refinements))
	}

	e.forget(sessionID)
	e.conversations.Remove(sessionID)
}

func (e *Engine) forget(sessionID string) {
	e.mu.Lock()
	delete(e.sessionCtx, sessionID)
	e.mu.Unlock()
}

// zipAnswers pairs the workflow's declared questions with the user's
// answers in order. Surplus answers fold into the last question, so a
// long dialogue still lands on the declared keys.
func zipAnswers(registry *workflow.Registry, workflowName string, answers []string) map[string]patterns.Answer {
	meta, ok := registry.Lookup(workflowName)
	if !ok || len(meta.RefinementQuestions) == 0 || len(answers) == 0 {
		return nil
	}

	out := make(map[string]patterns.Answer)
	questions := meta.RefinementQuestions
	for i, a := range answers {
		if a == "" {
			continue
		}
		q := questions[len(questions)-1]
		if i < len(questions) {
			q = questions[i]
		}
		out[q] = append(out[q], a)
	}
	return out
}

// sessionKey names the workflow-plus-context pair a session belongs
// to. The same key also indexes the recall cache.
func sessionKey(ctx workflow.Context) string {
	return ctx.WorkflowName + ":" + patterns.Signature(ctx)
}
