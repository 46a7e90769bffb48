package workflow

import (
	"testing"
)

// --- Registry ---

func TestDefaultRegistry_KnownWorkflow(t *testing.T) {
	r := DefaultRegistry()
	m, ok := r.Lookup("code-review")
	if !ok {
		t.Fatal("code-review missing from default registry")
	}
	if m.Tier != TierCapable {
		t.Errorf("code-review tier = %s, want capable", m.Tier)
	}
	if len(m.RefinementQuestions) == 0 {
		t.Error("code-review should declare refinement questions")
	}
}

func TestDefaultRegistry_UnknownWorkflow(t *testing.T) {
	r := DefaultRegistry()
	m, ok := r.Lookup("does-not-exist")
	if ok {
		t.Error("Lookup(unknown) reported found")
	}
	if len(m.RefinementQuestions) != 0 {
		t.Error("unknown workflow should have no questions")
	}
}

func TestDefaultRegistry_CheapWorkflowsExist(t *testing.T) {
	r := DefaultRegistry()
	if m, _ := r.Lookup("document-gen"); m.Tier != TierCheap {
		t.Errorf("document-gen tier = %s, want cheap", m.Tier)
	}
	if m, _ := r.Lookup("dependency-check"); len(m.RefinementQuestions) != 0 {
		t.Error("dependency-check should never refine")
	}
}

func TestDefaultRegistry_StageCountsPositive(t *testing.T) {
	for _, m := range DefaultRegistry().All() {
		if m.StageCount < 1 {
			t.Errorf("workflow %s has stage count %d, want >= 1", m.Name, m.StageCount)
		}
	}
}
