package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/cost"
	"github.com/smart-ai-memory/empathy-refine/internal/engine"
	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// CostTool handles the refine_cost MCP tool.
// It estimates what a workflow run will cost before it starts.
type CostTool struct {
	engine *engine.Engine
}

// NewCostTool creates a CostTool over the given engine.
func NewCostTool(e *engine.Engine) *CostTool {
	return &CostTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *CostTool) Definition() mcp.Tool {
	return mcp.NewTool("refine_cost",
		mcp.WithDescription(
			"Estimate the cost of a workflow run before starting it. Provide "+
				"either the input text or its size in characters. Estimates round "+
				"up, so the real cost never exceeds the quote. Set `compare` to "+
				"see every tier side by side with the savings of moving down.",
		),
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow to estimate, e.g. 'code-review'."),
		),
		mcp.WithNumber("input_size",
			mcp.Description("Input size in characters. Ignored when `input` is given."),
		),
		mcp.WithString("input",
			mcp.Description("The actual input text, tokenized exactly when possible."),
		),
		mcp.WithString("tier",
			mcp.Description("Model tier to quote. Defaults to the workflow's tier."),
			mcp.Enum("cheap", "capable", "premium"),
		),
		mcp.WithBoolean("compare",
			mcp.Description("Also show all tiers and the savings between them."),
		),
	)
}

// Handle processes the refine_cost tool call.
func (t *CostTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowName := req.GetString("workflow", "")
	if workflowName == "" {
		return mcp.NewToolResultError("Missing required argument: workflow."), nil
	}

	input := req.GetString("input", "")
	inputSize := int(req.GetFloat("input_size", 0))
	tier := workflow.Tier(req.GetString("tier", ""))

	var est cost.Estimate
	var err error
	if input != "" {
		est, err = t.engine.EstimateTextCost(workflowName, input, tier)
		inputSize = len(input)
	} else {
		est, err = t.engine.EstimateCost(workflowName, inputSize, tier)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cannot estimate: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("# Cost Estimate\n\n")
	fmt.Fprintf(&sb, "**Workflow:** %s\n**Tier:** %s\n", workflowName, est.Tier)
	fmt.Fprintf(&sb, "**Tokens:** ~%d\n**Cost:** $%.2f (rounded up)\n", est.TokenEstimate, est.EstimatedCost)

	if req.GetBool("compare", false) {
		all, err := t.engine.CompareTiers(workflowName, inputSize)
		if err != nil {
			return nil, fmt.Errorf("comparing tiers: %w", err)
		}
		sb.WriteString("\n## All tiers\n\n| Tier | Cost |\n|------|------|\n")
		for _, tr := range []workflow.Tier{workflow.TierCheap, workflow.TierCapable, workflow.TierPremium} {
			fmt.Fprintf(&sb, "| %s | $%.2f |\n", tr, all[tr].EstimatedCost)
		}

		if est.Tier != workflow.TierCheap {
			sav, err := t.engine.CalculateSavings(workflowName, inputSize, est.Tier, workflow.TierCheap)
			if err == nil && sav.Absolute > 0 {
				fmt.Fprintf(&sb, "\nDropping to the cheap tier would save $%.2f (%.0f%%).\n",
					sav.Absolute, sav.Percent)
			}
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}
