package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// StartTool handles the refine_start MCP tool.
// It opens a refinement dialogue for the current invocation.
type StartTool struct {
	engine *engine.Engine
}

// NewStartTool creates a StartTool over the given engine.
func NewStartTool(e *engine.Engine) *StartTool {
	return &StartTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Open a refinement dialogue for a workflow invocation. Returns the " +
				"session ID and the opening question. Starting again for the same " +
				"workflow and context replaces the earlier dialogue. Reply with " +
				"`refine_reply`; abort with `refine_cancel`.",
		),
	}
	opts = append(opts, contextParams()...)
	return mcp.NewTool("refine_start", opts...)
}

// Handle processes the refine_start tool call.
func (t *StartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wctx := contextFromRequest(t.engine, req)
	if wctx.WorkflowName == "" {
		return mcp.NewToolResultError("Missing required argument: workflow."), nil
	}

	ref, err := t.engine.StartRefinement(wctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Cannot start refinement: %v", err)), nil
	}

	response := fmt.Sprintf(
		"# Refinement Started\n\n"+
			"**Session:** `%s`\n"+
			"**Form:** %s\n\n"+
			"%s",
		ref.SessionID, ref.Form, ref.Question,
	)
	return mcp.NewToolResultText(response), nil
}
