package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/conversation"
	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// CancelTool handles the refine_cancel MCP tool.
type CancelTool struct {
	engine *engine.Engine
}

// NewCancelTool creates a CancelTool over the given engine.
func NewCancelTool(e *engine.Engine) *CancelTool {
	return &CancelTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *CancelTool) Definition() mcp.Tool {
	return mcp.NewTool("refine_cancel",
		mcp.WithDescription(
			"Abort a refinement dialogue. The transcript is discarded and "+
				"nothing is learned from it; the workflow proceeds with its defaults.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by refine_start."),
		),
	)
}

// Handle processes the refine_cancel tool call.
func (t *CancelTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("Missing required argument: session_id."), nil
	}

	err := t.engine.Cancel(sessionID)
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("No session %q.", sessionID)), nil
	case errors.Is(err, conversation.ErrSessionEnded):
		return mcp.NewToolResultError("This dialogue has already ended."), nil
	case err != nil:
		return nil, fmt.Errorf("cancelling refinement: %w", err)
	}

	return mcp.NewToolResultText("Refinement cancelled. The workflow will run with its defaults."), nil
}
