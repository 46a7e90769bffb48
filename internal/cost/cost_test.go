package cost

import (
	"errors"
	"math"
	"testing"

	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

func newTestEstimator() *Estimator {
	return New(DefaultConfig(), workflow.DefaultRegistry())
}

// --- Estimate ---

func TestEstimate_NegativeSizeRejected(t *testing.T) {
	e := newTestEstimator()
	_, err := e.Estimate("code-review", -1, "")
	if !errors.Is(err, ErrNegativeSize) {
		t.Errorf("Estimate(-1) error = %v, want ErrNegativeSize", err)
	}
}

func TestEstimate_ZeroSizeCostsNothing(t *testing.T) {
	e := newTestEstimator()
	est, err := e.Estimate("code-review", 0, "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.EstimatedCost != 0 || est.TokenEstimate != 0 {
		t.Errorf("Estimate(0) = %+v, want zero cost and tokens", est)
	}
}

func TestEstimate_TokenRatio(t *testing.T) {
	e := newTestEstimator()
	est, err := e.Estimate("code-review", 4000, "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.TokenEstimate != 1000 {
		t.Errorf("TokenEstimate = %d, want 1000 (4000 chars / 4)", est.TokenEstimate)
	}
}

func TestEstimate_UsesWorkflowDefaultTier(t *testing.T) {
	e := newTestEstimator()
	est, err := e.Estimate("refactor-plan", 1000, "")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Tier != workflow.TierPremium {
		t.Errorf("tier = %s, want premium (refactor-plan default)", est.Tier)
	}
}

func TestEstimate_TierOverride(t *testing.T) {
	e := newTestEstimator()
	est, err := e.Estimate("refactor-plan", 1000, workflow.TierCheap)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.Tier != workflow.TierCheap {
		t.Errorf("tier = %s, want cheap override", est.Tier)
	}
}

func TestEstimate_NeverUnderquotes(t *testing.T) {
	e := newTestEstimator()
	cfg := DefaultConfig()

	sizes := []int{1, 37, 999, 4000, 123456, 7_000_000}
	for _, size := range sizes {
		est, err := e.Estimate("code-review", size, workflow.TierCapable)
		if err != nil {
			t.Fatalf("Estimate(%d): %v", size, err)
		}

		inputTokens := math.Ceil(float64(size) / cfg.CharsPerToken)
		outputTokens := math.Ceil(inputTokens * cfg.OutputRatio)
		truth := inputTokens/1000*0.003 + outputTokens/1000*0.015

		if est.EstimatedCost+1e-9 < truth {
			t.Errorf("size %d: cost %.6f under-quotes true cost %.6f", size, est.EstimatedCost, truth)
		}
		if cents := est.EstimatedCost * 100; math.Abs(cents-math.Round(cents)) > 1e-6 {
			t.Errorf("size %d: cost %.6f is not a whole cent", size, est.EstimatedCost)
		}
	}
}

func TestEstimate_TierOrdering(t *testing.T) {
	e := newTestEstimator()
	cheap, err := e.Estimate("code-review", 50_000, workflow.TierCheap)
	if err != nil {
		t.Fatalf("Estimate cheap: %v", err)
	}
	capable, err := e.Estimate("code-review", 50_000, workflow.TierCapable)
	if err != nil {
		t.Fatalf("Estimate capable: %v", err)
	}
	premium, err := e.Estimate("code-review", 50_000, workflow.TierPremium)
	if err != nil {
		t.Fatalf("Estimate premium: %v", err)
	}

	if cheap.EstimatedCost > capable.EstimatedCost || capable.EstimatedCost > premium.EstimatedCost {
		t.Errorf("tier costs not ordered: cheap=%.4f capable=%.4f premium=%.4f",
			cheap.EstimatedCost, capable.EstimatedCost, premium.EstimatedCost)
	}
}

// --- EstimateText ---

func TestEstimateText_NonEmptyInputCounts(t *testing.T) {
	e := newTestEstimator()
	est, err := e.EstimateText("code-review", "func main() { fmt.Println(42) }", "")
	if err != nil {
		t.Fatalf("EstimateText: %v", err)
	}
	if est.TokenEstimate <= 0 {
		t.Errorf("TokenEstimate = %d, want > 0", est.TokenEstimate)
	}
}

func TestEstimateText_Deterministic(t *testing.T) {
	e := newTestEstimator()
	a, err := e.EstimateText("code-review", "same input text", "")
	if err != nil {
		t.Fatalf("EstimateText: %v", err)
	}
	b, err := e.EstimateText("code-review", "same input text", "")
	if err != nil {
		t.Fatalf("EstimateText: %v", err)
	}
	if a != b {
		t.Errorf("EstimateText not deterministic: %+v vs %+v", a, b)
	}
}

// --- DefaultTier ---

func TestDefaultTier_UnknownFallsBackToCapable(t *testing.T) {
	e := newTestEstimator()
	if tier := e.DefaultTier("mystery-workflow"); tier != workflow.TierCapable {
		t.Errorf("DefaultTier(unknown) = %s, want capable", tier)
	}
}

// --- CalculateSavings ---

func TestCalculateSavings_PremiumToCheap(t *testing.T) {
	e := newTestEstimator()
	s, err := e.CalculateSavings("code-review", 100_000, workflow.TierPremium, workflow.TierCheap)
	if err != nil {
		t.Fatalf("CalculateSavings: %v", err)
	}
	if s.Absolute <= 0 {
		t.Errorf("Absolute = %.4f, want > 0 when moving down-tier", s.Absolute)
	}
	if s.Percent <= 0 || s.Percent > 100 {
		t.Errorf("Percent = %.2f, want in (0, 100]", s.Percent)
	}
}

func TestCalculateSavings_ZeroBaselineGuard(t *testing.T) {
	e := newTestEstimator()
	s, err := e.CalculateSavings("code-review", 0, workflow.TierPremium, workflow.TierCheap)
	if err != nil {
		t.Fatalf("CalculateSavings: %v", err)
	}
	if s.Percent != 0 {
		t.Errorf("Percent = %.2f with zero baseline, want 0", s.Percent)
	}
}

// --- CompareTiers ---

func TestCompareTiers_AllTiersPresent(t *testing.T) {
	e := newTestEstimator()
	all, err := e.CompareTiers("code-review", 10_000)
	if err != nil {
		t.Fatalf("CompareTiers: %v", err)
	}
	for _, tier := range []workflow.Tier{workflow.TierCheap, workflow.TierCapable, workflow.TierPremium} {
		if _, ok := all[tier]; !ok {
			t.Errorf("CompareTiers missing tier %s", tier)
		}
	}
}

// --- roundUpCent ---

func TestRoundUpCent(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.001, 0.01},
		{0.01, 0.01},
		{0.0101, 0.02},
		{1.239, 1.24},
	}
	for _, tt := range tests {
		if got := roundUpCent(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("roundUpCent(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
