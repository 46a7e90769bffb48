// Package trigger decides whether a workflow invocation deserves a
// refinement conversation before it runs.
//
// The decision is a short-circuit chain (disabled, no questions, skip
// conditions) followed by a weighted-signal score. The weights and the
// trigger threshold are empirically chosen configuration, not fixed
// behavior.
package trigger

import (
	"strings"

	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// Confidence grades how sure the engine is about its recommendation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Result is the engine's recommendation for one invocation.
type Result struct {
	ShouldRefine bool `json:"should_refine"`
	// Reason concatenates the human-readable description of every
	// signal that fired.
	Reason string `json:"reason"`
	// SuggestedQuestions is the workflow's declared question list when
	// refining, empty otherwise.
	SuggestedQuestions []string   `json:"suggested_questions,omitempty"`
	Confidence         Confidence `json:"confidence"`
}

// Config holds the decision tunables. Default() carries the shipped
// values; they are configuration so calibration can adjust them
// without touching this package.
type Config struct {
	// Enabled globally gates refinement.
	Enabled bool
	// SkipForMenu skips refinement for direct-target menu actions on a
	// single file.
	SkipForMenu bool

	// Signal weights.
	QuestionsWeight      int // workflow declares refinement questions
	AmbiguousScopeWeight int // project scope or no explicit target
	PremiumTierWeight    int // workflow runs at the premium tier
	StageCountWeight     int // workflow has many internal stages
	NoContextWeight      int // no active file and no explicit target

	// StageCountMin is the stage count at which the stage signal fires.
	StageCountMin int
	// TriggerThreshold is the minimum summed weight that triggers.
	TriggerThreshold int
	// HighConfidenceThreshold is the summed weight treated as a
	// high-confidence trigger.
	HighConfidenceThreshold int
}

// Default returns the shipped decision configuration.
func Default() Config {
	return Config{
		Enabled:                 true,
		SkipForMenu:             true,
		QuestionsWeight:         2,
		AmbiguousScopeWeight:    1,
		PremiumTierWeight:       1,
		StageCountWeight:        1,
		NoContextWeight:         2,
		StageCountMin:           3,
		TriggerThreshold:        2,
		HighConfidenceThreshold: 4,
	}
}

// Engine evaluates invocation contexts against workflow metadata.
// It is pure given its inputs: the pattern store is consulted by the
// caller separately, never from here.
type Engine struct {
	cfg      Config
	registry *workflow.Registry
}

// New creates a trigger engine over the given workflow registry.
func New(cfg Config, registry *workflow.Registry) *Engine {
	return &Engine{cfg: cfg, registry: registry}
}

// Analyze recommends whether to refine the given invocation.
// The decision procedure short-circuits in order: global disable,
// workflows that never refine, skip conditions, then the weighted
// trigger score.
func (e *Engine) Analyze(ctx workflow.Context) Result {
	if !e.cfg.Enabled {
		return Result{
			ShouldRefine: false,
			Reason:       "refinement is disabled by configuration",
			Confidence:   ConfidenceHigh,
		}
	}

	meta, known := e.registry.Lookup(ctx.WorkflowName)
	if !known || len(meta.RefinementQuestions) == 0 {
		return Result{
			ShouldRefine: false,
			Reason:       "workflow declares no refinement questions",
			Confidence:   ConfidenceHigh,
		}
	}

	if skip, why := e.skipCondition(ctx, meta); skip {
		return Result{
			ShouldRefine: false,
			Reason:       why,
			Confidence:   ConfidenceHigh,
		}
	}

	total, reasons := e.score(ctx, meta)
	if total < e.cfg.TriggerThreshold {
		return Result{
			ShouldRefine: false,
			Reason:       "context is clear — no refinement needed",
			Confidence:   ConfidenceMedium,
		}
	}

	confidence := ConfidenceMedium
	if total >= e.cfg.HighConfidenceThreshold {
		confidence = ConfidenceHigh
	}
	return Result{
		ShouldRefine:       true,
		Reason:             strings.Join(reasons, "; "),
		SuggestedQuestions: append([]string(nil), meta.RefinementQuestions...),
		Confidence:         confidence,
	}
}

// skipCondition checks the ordered skip rules. The first that applies
// wins.
func (e *Engine) skipCondition(ctx workflow.Context, meta workflow.Metadata) (bool, string) {
	if e.cfg.SkipForMenu &&
		ctx.TriggerSource == workflow.SourceMenu &&
		ctx.Scope == workflow.ScopeFile &&
		ctx.HasExplicitTarget {
		return true, "menu action on an explicit file target"
	}
	if ctx.IsFromHistory {
		return true, "replaying a previous invocation from history"
	}
	if meta.Tier == workflow.TierCheap {
		return true, "cheap-tier workflow does not justify refinement overhead"
	}
	return false, ""
}

// score accumulates the weighted trigger signals. The questions signal
// is always active at this point: workflows without questions were
// already dismissed.
func (e *Engine) score(ctx workflow.Context, meta workflow.Metadata) (int, []string) {
	total := e.cfg.QuestionsWeight
	reasons := []string{"workflow declares refinement questions"}

	if ctx.Scope == workflow.ScopeProject || !ctx.HasExplicitTarget {
		total += e.cfg.AmbiguousScopeWeight
		reasons = append(reasons, "scope is ambiguous")
	}
	if meta.Tier == workflow.TierPremium {
		total += e.cfg.PremiumTierWeight
		reasons = append(reasons, "premium-tier run is expensive to misdirect")
	}
	if meta.StageCount >= e.cfg.StageCountMin {
		total += e.cfg.StageCountWeight
		reasons = append(reasons, "multi-stage workflow compounds early mistakes")
	}
	if ctx.ActiveFile == "" && !ctx.HasExplicitTarget {
		total += e.cfg.NoContextWeight
		reasons = append(reasons, "no file context to disambiguate the request")
	}

	return total, reasons
}
