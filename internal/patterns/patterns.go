// Package patterns implements the learned-refinement store.
//
// Each entry records the answers a user gave during one refinement
// conversation, keyed by a content-derived context signature. Future
// invocations in a similar context can recall those answers and skip
// the conversation entirely.
//
// The store is bounded (least-used entries are evicted past the cap)
// and TTL-pruned at load time. Persistence goes through the storage
// collaborator as one JSON blob; storage failures degrade the store to
// a session-only cache instead of failing the caller.
package patterns

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smart-ai-memory/empathy-refine/internal/cache"
	"github.com/smart-ai-memory/empathy-refine/internal/logging"
	"github.com/smart-ai-memory/empathy-refine/internal/storage"
	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// StorageKey is the key the serialized store lives under.
const StorageKey = "learned-patterns"

// Answer holds one refinement answer: a single value or a list.
// It marshals a single value as a bare JSON string for readability and
// accepts either shape when loading.
type Answer []string

// MarshalJSON emits a bare string for single answers.
func (a Answer) MarshalJSON() ([]byte, error) {
	if len(a) == 1 {
		return json.Marshal(a[0])
	}
	return json.Marshal([]string(a))
}

// UnmarshalJSON accepts either a string or an array of strings.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Answer{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = Answer(list)
	return nil
}

// Pattern is one learned refinement, persisted across sessions.
type Pattern struct {
	ID               string            `json:"id"`
	WorkflowID       string            `json:"workflow_id"`
	ContextSignature string            `json:"context_signature"`
	Description      string            `json:"description"`
	Refinements      map[string]Answer `json:"refinements"`
	UsageCount       int               `json:"usage_count"`
	CreatedAt        time.Time         `json:"created_at"`
	LastUsedAt       time.Time         `json:"last_used_at"`
}

// Match pairs a recalled pattern with how confident the store is that
// it applies to the current context.
type Match struct {
	Pattern    *Pattern `json:"pattern"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Stats summarizes the store for diagnostics.
type Stats struct {
	Count      int       `json:"count"`
	TotalUses  int       `json:"total_uses"`
	OldestUsed time.Time `json:"oldest_used,omitzero"`
}

// Config holds the store's tunables. The similarity weights and the
// partial-match cutoff are empirically chosen; they are configuration
// precisely so product calibration can move them without a code change.
type Config struct {
	// MaxPatterns caps the store size; overflow evicts the bottom
	// tenth by usage count.
	MaxPatterns int
	// TTL prunes entries whose last use is older than this, at load.
	TTL time.Duration
	// MatchThreshold is the minimum similarity for a partial match.
	MatchThreshold float64
	// HintWeight, RecencyWeight, PopularityWeight are the similarity
	// signal weights; same-workflow membership carries weight 1 and is
	// mandatory.
	HintWeight       float64
	RecencyWeight    float64
	PopularityWeight float64
	// RecencyWindow is how recent a last use earns the recency bonus.
	RecencyWindow time.Duration
	// PopularityMin is the usage count above which the popularity
	// bonus applies.
	PopularityMin int
}

// DefaultConfig returns the shipped store configuration.
func DefaultConfig() Config {
	return Config{
		MaxPatterns:      100,
		TTL:              90 * 24 * time.Hour,
		MatchThreshold:   0.5,
		HintWeight:       0.5,
		RecencyWeight:    0.2,
		PopularityWeight: 0.3,
		RecencyWindow:    7 * 24 * time.Hour,
		PopularityMin:    5,
	}
}

// Store is the bounded, persistent pattern collection. All mutators
// serialize on an internal lock so concurrent sessions cannot lose
// overlapping learns.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	idx     *cache.Cache[string, *Pattern]
	storage storage.Store
	logger  *slog.Logger
}

// NewStore creates a store over the given persistence collaborator,
// loading and TTL-pruning any previously saved entries. A nil storage
// yields a purely in-memory store.
func NewStore(cfg Config, st storage.Store) *Store {
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = DefaultConfig().MaxPatterns
	}
	evictBatch := cfg.MaxPatterns / 10
	if evictBatch < 1 {
		evictBatch = 1
	}

	s := &Store{
		cfg: cfg,
		idx: cache.New[string, *Pattern](cache.Options{
			Capacity:   cfg.MaxPatterns,
			Policy:     cache.EvictLFU,
			EvictBatch: evictBatch,
		}),
		storage: st,
		logger:  logging.NewModuleLogger("patterns"),
	}
	s.load()
	return s
}

// ─── Signature ───────────────────────────────────────────────────────────────

// Signature computes the deterministic context signature: a SHA-256
// over workflow name, folder name, project-type hint, and the sorted
// extension set, truncated to 16 hex characters.
func Signature(ctx workflow.Context) string {
	exts := append([]string(nil), ctx.FileExtensions...)
	sort.Strings(exts)

	parts := []string{
		ctx.WorkflowName,
		ctx.FolderName,
		ctx.ProjectTypeHint,
		strings.Join(exts, ","),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// patternID derives the stable entry id for a context.
func patternID(ctx workflow.Context) string {
	return ctx.WorkflowName + "-" + Signature(ctx)
}

// describe generates the human-readable pattern description used both
// for display and as the substring hint in similarity scoring.
func describe(ctx workflow.Context) string {
	if ctx.FolderName == "" {
		return ctx.WorkflowName
	}
	return ctx.WorkflowName + " in " + ctx.FolderName
}

// ─── Mutators ────────────────────────────────────────────────────────────────

// Learn records the refinements gathered for ctx. A matching entry is
// overwritten in place (usage count bumped, refinements replaced); a
// new entry starts at usage count 1. Overflow evicts the least-used
// tenth of the store.
func (s *Store) Learn(ctx workflow.Context, refinements map[string]Answer) *Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow().UTC()
	id := patternID(ctx)

	if existing, ok := s.idx.Peek(id); ok {
		existing.Refinements = cloneRefinements(refinements)
		existing.UsageCount++
		existing.LastUsedAt = now
		s.idx.PutSeeded(id, existing, existing.UsageCount, now)
		s.persist()
		return existing
	}

	p := &Pattern{
		ID:               id,
		WorkflowID:       ctx.WorkflowName,
		ContextSignature: Signature(ctx),
		Description:      describe(ctx),
		Refinements:      cloneRefinements(refinements),
		UsageCount:       1,
		CreatedAt:        now,
		LastUsedAt:       now,
	}
	if evicted := s.idx.PutSeeded(id, p, 1, now); len(evicted) > 0 {
		s.logger.Info("evicted least-used patterns", "count", len(evicted))
	}
	s.persist()
	return p
}

// MarkUsed records a recall hit: the pattern's usage count and last
// use move forward and the store persists. Reports whether id exists.
func (s *Store) MarkUsed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.idx.Peek(id)
	if !ok {
		return false
	}
	p.UsageCount++
	p.LastUsedAt = timeNow().UTC()
	s.idx.Touch(id)
	s.persist()
	return true
}

// Delete removes a pattern by id, reporting whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.idx.Delete(id) {
		return false
	}
	s.persist()
	return true
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// FindMatches returns learned patterns applicable to ctx, best first.
// An exact signature match scores 1.0; other same-workflow entries are
// scored by similarity and returned only above the match threshold.
// FindMatches itself never mutates the store — recording an actual
// recall hit is the caller's decision via MarkUsed.
func (s *Store) FindMatches(ctx workflow.Context) []Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := Signature(ctx)
	var matches []Match

	s.idx.ForEach(func(_ string, p *Pattern) bool {
		// Non-matching workflow is excluded entirely, not down-weighted.
		if p.WorkflowID != ctx.WorkflowName {
			return true
		}
		if p.ContextSignature == sig {
			matches = append(matches, Match{
				Pattern:    p,
				Confidence: 1.0,
				Reason:     "exact context match",
			})
			return true
		}
		if score, why := s.similarity(ctx, p); score > s.cfg.MatchThreshold {
			matches = append(matches, Match{
				Pattern:    p,
				Confidence: score,
				Reason:     "similar context: " + why,
			})
		}
		return true
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Pattern.UsageCount > matches[j].Pattern.UsageCount
	})
	return matches
}

// similarity scores a same-workflow pattern against ctx as a weighted
// average over the configured signals. Same-workflow membership alone
// contributes weight 1, which lands exactly at the 0.5 threshold — at
// least one more signal must fire for a partial match.
func (s *Store) similarity(ctx workflow.Context, p *Pattern) (float64, string) {
	total := 1.0 + s.cfg.HintWeight + s.cfg.RecencyWeight + s.cfg.PopularityWeight
	score := 1.0
	reasons := []string{"same workflow"}

	if ctx.FolderName != "" &&
		strings.Contains(strings.ToLower(p.Description), strings.ToLower(ctx.FolderName)) {
		score += s.cfg.HintWeight
		reasons = append(reasons, "folder hint")
	}
	if timeNow().UTC().Sub(p.LastUsedAt) <= s.cfg.RecencyWindow {
		score += s.cfg.RecencyWeight
		reasons = append(reasons, "recently used")
	}
	if p.UsageCount > s.cfg.PopularityMin {
		score += s.cfg.PopularityWeight
		reasons = append(reasons, "frequently used")
	}

	return score / total, strings.Join(reasons, ", ")
}

// Get returns the pattern with the given id.
func (s *Store) Get(id string) (*Pattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Peek(id)
}

// All returns every stored pattern, most recently used first.
func (s *Store) All() []*Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*Pattern
	s.idx.ForEach(func(_ string, p *Pattern) bool {
		all = append(all, p)
		return true
	})
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastUsedAt.After(all[j].LastUsedAt)
	})
	return all
}

// Len reports the number of stored patterns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx.Len()
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	s.idx.ForEach(func(_ string, p *Pattern) bool {
		st.Count++
		st.TotalUses += p.UsageCount
		if st.OldestUsed.IsZero() || p.LastUsedAt.Before(st.OldestUsed) {
			st.OldestUsed = p.LastUsedAt
		}
		return true
	})
	return st
}

// ─── Persistence ─────────────────────────────────────────────────────────────

// storeDocument is the serialized shape of the whole store.
type storeDocument struct {
	Version  int                 `json:"version"`
	Patterns map[string]*Pattern `json:"patterns"`
}

// load reads the persisted store and prunes expired entries. Called
// once from NewStore; read failures leave the store empty.
func (s *Store) load() {
	if s.storage == nil {
		return
	}

	blob, err := s.storage.Load(StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("pattern load failed, starting empty", "error", err)
		}
		return
	}

	var doc storeDocument
	if err := json.Unmarshal(blob, &doc); err != nil {
		s.logger.Warn("pattern data corrupt, starting empty", "error", err)
		return
	}

	cutoff := timeNow().UTC().Add(-s.cfg.TTL)
	pruned := 0
	for id, p := range doc.Patterns {
		if s.cfg.TTL > 0 && p.LastUsedAt.Before(cutoff) {
			pruned++
			continue
		}
		s.idx.PutSeeded(id, p, p.UsageCount, p.LastUsedAt)
	}

	if pruned > 0 {
		s.logger.Info("pruned expired patterns", "count", pruned)
		s.persist()
	}
}

// persist writes the full entry map through the storage collaborator.
// Failures are logged and swallowed: the store keeps serving from
// memory for the rest of the session.
func (s *Store) persist() {
	if s.storage == nil {
		return
	}

	doc := storeDocument{Version: 1, Patterns: make(map[string]*Pattern)}
	s.idx.ForEach(func(id string, p *Pattern) bool {
		doc.Patterns[id] = p
		return true
	})

	blob, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("pattern serialization failed", "error", err)
		return
	}
	if err := s.storage.Save(StorageKey, blob); err != nil {
		s.logger.Warn("pattern save failed, continuing in memory", "error", err)
	}
}

func cloneRefinements(in map[string]Answer) map[string]Answer {
	out := make(map[string]Answer, len(in))
	for k, v := range in {
		out[k] = append(Answer(nil), v...)
	}
	return out
}

// String implements fmt.Stringer for log readability.
func (p *Pattern) String() string {
	return fmt.Sprintf("%s (uses=%d)", p.ID, p.UsageCount)
}
