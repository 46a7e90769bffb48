// Package cost estimates the monetary impact of running a workflow at
// a given model tier.
//
// Estimation is deterministic and never under-quotes: dollar amounts
// round up to the next cent. Token counts come from the tiktoken
// encoder when it loads, with a character-ratio fallback otherwise.
package cost

import (
	"errors"
	"fmt"
	"math"

	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// ErrNegativeSize is returned for a negative input size, the only
// invalid input Estimate recognizes.
var ErrNegativeSize = errors.New("cost: input size must not be negative")

// Estimate is the projected price of one workflow run.
type Estimate struct {
	// EstimatedCost is in dollars, rounded up to the cent.
	EstimatedCost float64 `json:"estimated_cost"`
	// TokenEstimate is the projected input token count.
	TokenEstimate int `json:"token_estimate"`
	// Tier is the tier the estimate was priced at.
	Tier workflow.Tier `json:"tier"`
}

// Savings compares the cost of the same input at two tiers.
type Savings struct {
	FromCost float64 `json:"from_cost"`
	ToCost   float64 `json:"to_cost"`
	// Absolute is FromCost - ToCost; negative when moving up-tier.
	Absolute float64 `json:"absolute"`
	// Percent is Absolute as a share of FromCost, 0 when FromCost is 0.
	Percent float64 `json:"percent"`
}

// tierPrice holds per-1K-token unit prices in dollars.
type tierPrice struct {
	input  float64
	output float64
}

// Config holds the estimator's tunables.
type Config struct {
	// CharsPerToken converts character counts to token estimates when
	// the tiktoken encoder is unavailable.
	CharsPerToken float64
	// OutputRatio is the projected output size as a fraction of input.
	OutputRatio float64
	// Prices maps each tier to its unit prices.
	Prices map[workflow.Tier]tierPrice
}

// DefaultConfig returns the shipped pricing table (Anthropic models:
// Haiku for cheap, Sonnet for capable, Opus for premium).
func DefaultConfig() Config {
	return Config{
		CharsPerToken: 4, // 1 char ≈ 0.25 tokens
		OutputRatio:   0.30,
		Prices: map[workflow.Tier]tierPrice{
			workflow.TierCheap:   {input: 0.00025, output: 0.00125},
			workflow.TierCapable: {input: 0.003, output: 0.015},
			workflow.TierPremium: {input: 0.015, output: 0.075},
		},
	}
}

// Estimator prices workflow runs. It is stateless apart from its
// configuration and safe for concurrent use.
type Estimator struct {
	cfg      Config
	registry *workflow.Registry
	counter  tokenCounter
}

// New creates an estimator over the given workflow registry.
func New(cfg Config, registry *workflow.Registry) *Estimator {
	return &Estimator{cfg: cfg, registry: registry, counter: newCounter()}
}

// DefaultTier returns the tier the named workflow normally runs at,
// falling back to capable for unknown workflows.
func (e *Estimator) DefaultTier(workflowName string) workflow.Tier {
	if m, ok := e.registry.Lookup(workflowName); ok && m.Tier != "" {
		return m.Tier
	}
	return workflow.TierCapable
}

// Estimate prices a run of workflowName over inputSize characters.
// Pass tierOverride to price at a specific tier instead of the
// workflow's default; the empty string means "use the default".
func (e *Estimator) Estimate(workflowName string, inputSize int, tierOverride workflow.Tier) (Estimate, error) {
	if inputSize < 0 {
		return Estimate{}, ErrNegativeSize
	}
	inputTokens := int(math.Ceil(float64(inputSize) / e.cfg.CharsPerToken))
	return e.price(workflowName, inputTokens, tierOverride)
}

// EstimateText prices a run over the actual input text, using the
// tiktoken encoder for the input token count when available.
func (e *Estimator) EstimateText(workflowName, input string, tierOverride workflow.Tier) (Estimate, error) {
	tokens, exact := e.counter.count(input)
	if !exact {
		return e.Estimate(workflowName, len(input), tierOverride)
	}
	return e.price(workflowName, tokens, tierOverride)
}

func (e *Estimator) price(workflowName string, inputTokens int, tierOverride workflow.Tier) (Estimate, error) {
	tier := tierOverride
	if tier == "" {
		tier = e.DefaultTier(workflowName)
	}
	prices, ok := e.cfg.Prices[tier]
	if !ok {
		return Estimate{}, fmt.Errorf("cost: no prices for tier %q", tier)
	}

	outputTokens := int(math.Ceil(float64(inputTokens) * e.cfg.OutputRatio))
	raw := float64(inputTokens)/1000*prices.input + float64(outputTokens)/1000*prices.output

	return Estimate{
		EstimatedCost: roundUpCent(raw),
		TokenEstimate: inputTokens,
		Tier:          tier,
	}, nil
}

// CalculateSavings reports what switching tiers saves (or costs) for
// the same input size.
func (e *Estimator) CalculateSavings(workflowName string, inputSize int, from, to workflow.Tier) (Savings, error) {
	fromEst, err := e.Estimate(workflowName, inputSize, from)
	if err != nil {
		return Savings{}, err
	}
	toEst, err := e.Estimate(workflowName, inputSize, to)
	if err != nil {
		return Savings{}, err
	}

	s := Savings{
		FromCost: fromEst.EstimatedCost,
		ToCost:   toEst.EstimatedCost,
		Absolute: fromEst.EstimatedCost - toEst.EstimatedCost,
	}
	if s.FromCost > 0 {
		s.Percent = s.Absolute / s.FromCost * 100
	}
	return s, nil
}

// CompareTiers prices the same input at every configured tier.
func (e *Estimator) CompareTiers(workflowName string, inputSize int) (map[workflow.Tier]Estimate, error) {
	out := make(map[workflow.Tier]Estimate, len(e.cfg.Prices))
	for tier := range e.cfg.Prices {
		est, err := e.Estimate(workflowName, inputSize, tier)
		if err != nil {
			return nil, err
		}
		out[tier] = est
	}
	return out, nil
}

// roundUpCent rounds a dollar amount up to the next cent so estimates
// never under-quote.
func roundUpCent(dollars float64) float64 {
	return math.Ceil(dollars*100-1e-9) / 100
}
