package patterns

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/smart-ai-memory/empathy-refine/internal/storage"
	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

func freezeTime(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
	now := at
	timeNow = func() time.Time { return now }
	return &now
}

func apiContext() workflow.Context {
	return workflow.Context{
		WorkflowName:    "code-review",
		FolderName:      "api",
		ProjectTypeHint: "node",
		FileExtensions:  []string{".ts", ".js"},
	}
}

// --- Signature ---

func TestSignature_OrderIndependentExtensions(t *testing.T) {
	a := apiContext()
	b := apiContext()
	b.FileExtensions = []string{".js", ".ts"}

	if Signature(a) != Signature(b) {
		t.Error("signatures differ for set-equal extension lists")
	}
}

func TestSignature_SensitiveToEveryField(t *testing.T) {
	base := apiContext()

	variants := map[string]workflow.Context{
		"workflow": {WorkflowName: "test-gen", FolderName: "api", ProjectTypeHint: "node", FileExtensions: []string{".ts", ".js"}},
		"folder":   {WorkflowName: "code-review", FolderName: "web", ProjectTypeHint: "node", FileExtensions: []string{".ts", ".js"}},
		"hint":     {WorkflowName: "code-review", FolderName: "api", ProjectTypeHint: "go", FileExtensions: []string{".ts", ".js"}},
		"exts":     {WorkflowName: "code-review", FolderName: "api", ProjectTypeHint: "node", FileExtensions: []string{".go"}},
	}

	for name, v := range variants {
		if Signature(v) == Signature(base) {
			t.Errorf("%s change did not change the signature", name)
		}
	}
}

func TestSignature_Format(t *testing.T) {
	sig := Signature(apiContext())
	if len(sig) != 16 {
		t.Errorf("signature length = %d, want 16", len(sig))
	}
}

// --- Learn ---

func TestLearn_NewPattern(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())

	p := s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})
	if p.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", p.UsageCount)
	}
	if p.WorkflowID != "code-review" {
		t.Errorf("WorkflowID = %s, want code-review", p.WorkflowID)
	}
	if p.ID != "code-review-"+Signature(apiContext()) {
		t.Errorf("ID = %s, want workflow-prefixed signature", p.ID)
	}
}

func TestLearn_IdempotentUpdatesNotDuplicates(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	ctx := apiContext()

	const n = 4
	var last *Pattern
	for i := 0; i < n; i++ {
		last = s.Learn(ctx, map[string]Answer{"focus": {fmt.Sprintf("round-%d", i)}})
	}

	if s.Len() != 1 {
		t.Errorf("store has %d entries after identical learns, want 1", s.Len())
	}
	if last.UsageCount != n {
		t.Errorf("UsageCount = %d after %d learns, want %d", last.UsageCount, n, n)
	}
	if got := last.Refinements["focus"]; len(got) != 1 || got[0] != "round-3" {
		t.Errorf("Refinements = %v, want the latest answer", got)
	}
}

func TestLearn_PersistsThroughStorage(t *testing.T) {
	mem := storage.NewMemStore()
	s := NewStore(DefaultConfig(), mem)
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	// A second store over the same collaborator sees the entry.
	s2 := NewStore(DefaultConfig(), mem)
	if s2.Len() != 1 {
		t.Fatalf("reloaded store has %d entries, want 1", s2.Len())
	}
	matches := s2.FindMatches(apiContext())
	if len(matches) != 1 || matches[0].Confidence != 1.0 {
		t.Errorf("reloaded store matches = %+v, want one exact match", matches)
	}
}

func TestLearn_StorageFailureDegradesSilently(t *testing.T) {
	mem := storage.NewMemStore()
	mem.FailSaves = true
	s := NewStore(DefaultConfig(), mem)

	p := s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})
	if p == nil {
		t.Fatal("Learn returned nil on storage failure")
	}
	if len(s.FindMatches(apiContext())) != 1 {
		t.Error("in-memory entry missing after failed save")
	}
}

// --- Eviction ---

func TestLearn_EvictionKeepsCapAndDropsLeastUsed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPatterns = 10
	s := NewStore(cfg, storage.NewMemStore())

	ctxFor := func(i int) workflow.Context {
		return workflow.Context{WorkflowName: "code-review", FolderName: fmt.Sprintf("pkg%02d", i)}
	}

	// Fill the store, making pkg00 clearly the most used.
	for i := 0; i < cfg.MaxPatterns; i++ {
		s.Learn(ctxFor(i), map[string]Answer{"focus": {"x"}})
	}
	for i := 0; i < 5; i++ {
		s.Learn(ctxFor(0), map[string]Answer{"focus": {"x"}})
	}

	// Overflow several times.
	for i := cfg.MaxPatterns; i < cfg.MaxPatterns+4; i++ {
		s.Learn(ctxFor(i), map[string]Answer{"focus": {"x"}})
	}

	if s.Len() > cfg.MaxPatterns {
		t.Errorf("store size %d exceeds cap %d", s.Len(), cfg.MaxPatterns)
	}
	if len(s.FindMatches(ctxFor(0))) == 0 {
		t.Error("most-used pattern was evicted")
	}
}

// --- FindMatches ---

func TestFindMatches_ExactRecallScenario(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	ctx := apiContext()
	s.Learn(ctx, map[string]Answer{"focus": {"security"}})

	matches := s.FindMatches(ctx)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want exactly 1", len(matches))
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", matches[0].Confidence)
	}
	if matches[0].Reason != "exact context match" {
		t.Errorf("reason = %q", matches[0].Reason)
	}
	if got := matches[0].Pattern.Refinements["focus"]; len(got) != 1 || got[0] != "security" {
		t.Errorf("recalled refinements = %v", got)
	}
}

func TestFindMatches_OtherWorkflowExcluded(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	other := apiContext()
	other.WorkflowName = "test-gen"
	if got := s.FindMatches(other); len(got) != 0 {
		t.Errorf("FindMatches across workflows = %d matches, want 0", len(got))
	}
}

func TestFindMatches_PartialNeedsMoreThanSameWorkflow(t *testing.T) {
	now := freezeTime(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	// Push the entry outside the recency window so only "same
	// workflow" fires; that lands exactly on the threshold and is
	// excluded.
	*now = now.Add(8 * 24 * time.Hour)

	probe := workflow.Context{WorkflowName: "code-review", FolderName: "web"}
	if got := s.FindMatches(probe); len(got) != 0 {
		t.Errorf("bare same-workflow match returned %d results, want 0", len(got))
	}
}

func TestFindMatches_PartialWithFolderHint(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	// Same folder, different extension set: not an exact signature,
	// but folder hint + recency clears the threshold.
	probe := workflow.Context{WorkflowName: "code-review", FolderName: "api", FileExtensions: []string{".go"}}
	matches := s.FindMatches(probe)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Confidence <= 0.5 || m.Confidence >= 1.0 {
		t.Errorf("partial confidence = %v, want in (0.5, 1.0)", m.Confidence)
	}
}

func TestFindMatches_SortedByConfidenceThenUsage(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())

	exact := apiContext()
	s.Learn(exact, map[string]Answer{"focus": {"security"}})

	similar := apiContext()
	similar.FileExtensions = []string{".go"}
	s.Learn(similar, map[string]Answer{"focus": {"style"}})

	matches := s.FindMatches(exact)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("best match confidence = %v, want the exact match first", matches[0].Confidence)
	}
	if matches[1].Confidence >= matches[0].Confidence {
		t.Error("matches not sorted by confidence")
	}
}

// --- MarkUsed / Delete ---

func TestMarkUsed_BumpsUsageAndPersists(t *testing.T) {
	mem := storage.NewMemStore()
	s := NewStore(DefaultConfig(), mem)
	p := s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	if !s.MarkUsed(p.ID) {
		t.Fatal("MarkUsed reported missing id")
	}
	got, _ := s.Get(p.ID)
	if got.UsageCount != 2 {
		t.Errorf("UsageCount = %d after recall hit, want 2", got.UsageCount)
	}

	s2 := NewStore(DefaultConfig(), mem)
	reloaded, ok := s2.Get(p.ID)
	if !ok || reloaded.UsageCount != 2 {
		t.Error("recall hit did not persist")
	}
}

func TestMarkUsed_MissingID(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	if s.MarkUsed("ghost") {
		t.Error("MarkUsed(missing) reported success")
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	p := s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	if !s.Delete(p.ID) {
		t.Error("Delete reported missing id")
	}
	if s.Delete(p.ID) {
		t.Error("second Delete reported success")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after delete, want 0", s.Len())
	}
}

// --- TTL pruning ---

func TestNewStore_PrunesExpiredAtLoad(t *testing.T) {
	now := freezeTime(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mem := storage.NewMemStore()

	s := NewStore(DefaultConfig(), mem)
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})

	fresh := apiContext()
	fresh.FolderName = "web"
	*now = now.Add(89 * 24 * time.Hour)
	s.Learn(fresh, map[string]Answer{"focus": {"style"}})

	// 91 days after the first learn: only the fresh entry survives a
	// reload.
	*now = now.Add(2 * 24 * time.Hour)
	s2 := NewStore(DefaultConfig(), mem)
	if s2.Len() != 1 {
		t.Fatalf("reloaded store has %d entries, want 1", s2.Len())
	}
	if len(s2.FindMatches(fresh)) == 0 {
		t.Error("wrong entry pruned")
	}
}

// --- Answer JSON ---

func TestAnswer_JSONShapes(t *testing.T) {
	var a Answer
	if err := json.Unmarshal([]byte(`"security"`), &a); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if len(a) != 1 || a[0] != "security" {
		t.Errorf("from string = %v", a)
	}

	if err := json.Unmarshal([]byte(`["a","b"]`), &a); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(a) != 2 {
		t.Errorf("from list = %v", a)
	}

	out, err := json.Marshal(Answer{"solo"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"solo"` {
		t.Errorf("single answer marshals as %s, want bare string", out)
	}
}

// --- Stats ---

func TestStats(t *testing.T) {
	s := NewStore(DefaultConfig(), storage.NewMemStore())
	s.Learn(apiContext(), map[string]Answer{"focus": {"security"}})
	other := apiContext()
	other.FolderName = "web"
	s.Learn(other, map[string]Answer{"focus": {"style"}})
	s.Learn(other, map[string]Answer{"focus": {"style"}})

	st := s.Stats()
	if st.Count != 2 {
		t.Errorf("Count = %d, want 2", st.Count)
	}
	if st.TotalUses != 3 {
		t.Errorf("TotalUses = %d, want 3", st.TotalUses)
	}
	if st.OldestUsed.IsZero() {
		t.Error("OldestUsed is zero")
	}
}
