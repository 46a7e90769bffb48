package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// RecallTool handles the refine_recall MCP tool.
// It looks up learned patterns matching the current context.
type RecallTool struct {
	engine *engine.Engine
}

// NewRecallTool creates a RecallTool over the given engine.
func NewRecallTool(e *engine.Engine) *RecallTool {
	return &RecallTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *RecallTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Look up the learned refinement pattern that best matches the " +
				"current invocation context. A strong match can be applied " +
				"directly, skipping the dialogue.",
		),
	}
	opts = append(opts, contextParams()...)
	return mcp.NewTool("refine_recall", opts...)
}

// Handle processes the refine_recall tool call.
func (t *RecallTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wctx := contextFromRequest(t.engine, req)
	if wctx.WorkflowName == "" {
		return mcp.NewToolResultError("Missing required argument: workflow."), nil
	}

	match, ok := t.engine.RecallBestMatch(wctx)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No learned pattern matches %s in this context yet. "+
				"Complete a refinement dialogue once and it will be remembered.",
			wctx.WorkflowName,
		)), nil
	}

	var sb strings.Builder
	sb.WriteString("# Recalled Pattern\n\n")
	fmt.Fprintf(&sb, "**Confidence:** %.2f (%s)\n\n", match.Confidence, match.Reason)
	sb.WriteString(renderPattern(match.Pattern))
	return mcp.NewToolResultText(sb.String()), nil
}
