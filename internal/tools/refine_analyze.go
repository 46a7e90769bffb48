package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// AnalyzeTool handles the refine_analyze MCP tool.
// It decides whether an invocation is worth a refinement dialogue.
type AnalyzeTool struct {
	engine *engine.Engine
}

// NewAnalyzeTool creates an AnalyzeTool over the given engine.
func NewAnalyzeTool(e *engine.Engine) *AnalyzeTool {
	return &AnalyzeTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *AnalyzeTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Decide whether a workflow invocation would benefit from a short " +
				"refinement dialogue before running. Returns the decision, the " +
				"signals behind it, and the questions a dialogue would ask. " +
				"Also reports any learned pattern that already covers this context.",
		),
	}
	opts = append(opts, contextParams()...)
	return mcp.NewTool("refine_analyze", opts...)
}

// Handle processes the refine_analyze tool call.
func (t *AnalyzeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wctx := contextFromRequest(t.engine, req)
	if wctx.WorkflowName == "" {
		return mcp.NewToolResultError("Missing required argument: workflow."), nil
	}

	res := t.engine.AnalyzeTrigger(wctx)

	var sb strings.Builder
	sb.WriteString("# Refinement Analysis\n\n")
	fmt.Fprintf(&sb, "**Workflow:** %s\n**Scope:** %s\n", wctx.WorkflowName, wctx.Scope)
	fmt.Fprintf(&sb, "**Refine:** %v (%s confidence)\n", res.ShouldRefine, res.Confidence)
	fmt.Fprintf(&sb, "**Reason:** %s\n", res.Reason)

	if len(res.SuggestedQuestions) > 0 {
		sb.WriteString("\n## Questions a dialogue would cover\n\n")
		for _, q := range res.SuggestedQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}

	if match, ok := t.engine.RecallBestMatch(wctx); ok {
		sb.WriteString("\n## Learned pattern available\n\n")
		fmt.Fprintf(&sb, "Confidence %.2f (%s). Consider applying it instead of asking again.\n\n",
			match.Confidence, match.Reason)
		sb.WriteString(renderPattern(match.Pattern))
	}

	return mcp.NewToolResultText(sb.String()), nil
}
