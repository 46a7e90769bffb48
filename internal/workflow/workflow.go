// Package workflow defines the static workflow catalog and the
// per-invocation context the engine reasons about.
//
// Metadata is immutable once registered; unknown workflow names degrade
// to a zero-value entry that never refines.
package workflow

// Tier is the cost/capability class assigned to a workflow. It drives
// both price estimation and refinement-trigger weighting.
type Tier string

const (
	TierCheap   Tier = "cheap"
	TierCapable Tier = "capable"
	TierPremium Tier = "premium"
)

// Scope describes how much of the project an invocation targets.
type Scope string

const (
	ScopeFile    Scope = "file"
	ScopeFolder  Scope = "folder"
	ScopeProject Scope = "project"
	ScopeUnknown Scope = "unknown"
)

// TriggerSource is where in the host tool the invocation originated.
type TriggerSource string

const (
	SourceMenu     TriggerSource = "menu"
	SourcePalette  TriggerSource = "palette"
	SourceKeyboard TriggerSource = "keyboard"
	SourceHistory  TriggerSource = "history"
	SourcePanel    TriggerSource = "panel"
)

// Metadata describes one known workflow.
type Metadata struct {
	Name string `json:"name"`
	// Tier is the model tier the workflow normally uses.
	Tier Tier `json:"tier"`
	// StageCount is the number of internal processing stages.
	StageCount int `json:"stage_count"`
	// RefinementQuestions lists question-topic identifiers, in the
	// order they should be asked. Empty means the workflow never
	// refines.
	RefinementQuestions []string `json:"refinement_questions,omitempty"`
}

// Registry is an immutable lookup table of workflow metadata.
type Registry struct {
	byName map[string]Metadata
}

// NewRegistry builds a registry from the given entries.
func NewRegistry(entries []Metadata) *Registry {
	byName := make(map[string]Metadata, len(entries))
	for _, m := range entries {
		byName[m.Name] = m
	}
	return &Registry{byName: byName}
}

// Lookup returns the metadata for name. The second return is false for
// unknown workflows; callers treat those as "never refine".
func (r *Registry) Lookup(name string) (Metadata, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns every registered workflow name.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	return names
}

// All returns every registered workflow.
func (r *Registry) All() []Metadata {
	all := make([]Metadata, 0, len(r.byName))
	for _, m := range r.byName {
		all = append(all, m)
	}
	return all
}

// DefaultRegistry returns the shipped workflow catalog.
func DefaultRegistry() *Registry {
	return NewRegistry([]Metadata{
		{
			Name: "code-review", Tier: TierCapable, StageCount: 3,
			RefinementQuestions: []string{"focus", "severity_threshold", "areas_to_skip"},
		},
		{
			Name: "pr-review", Tier: TierCapable, StageCount: 3,
			RefinementQuestions: []string{"focus", "review_depth"},
		},
		{
			Name: "refactor-plan", Tier: TierPremium, StageCount: 4,
			RefinementQuestions: []string{"goal", "constraints", "risk_tolerance"},
		},
		{
			Name: "test-gen", Tier: TierCapable, StageCount: 2,
			RefinementQuestions: []string{"coverage_target", "test_style"},
		},
		{
			Name: "bug-predict", Tier: TierCapable, StageCount: 3,
			RefinementQuestions: []string{"recent_changes", "hot_spots"},
		},
		{
			Name: "security-audit", Tier: TierPremium, StageCount: 4,
			RefinementQuestions: []string{"threat_model", "compliance_needs"},
		},
		{
			Name: "perf-audit", Tier: TierPremium, StageCount: 3,
			RefinementQuestions: []string{"bottleneck_hints", "target_metrics"},
		},
		{
			Name: "document-gen", Tier: TierCheap, StageCount: 2,
			RefinementQuestions: []string{"audience", "doc_format"},
		},
		{
			// Pure lookup against advisory databases; nothing to clarify.
			Name: "dependency-check", Tier: TierCheap, StageCount: 1,
		},
		{
			Name: "release-prep", Tier: TierCapable, StageCount: 5,
			RefinementQuestions: []string{"release_scope", "changelog_style"},
		},
	})
}
