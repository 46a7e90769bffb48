package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/conversation"
	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// ReplyTool handles the refine_reply MCP tool.
// It forwards one user answer into an open refinement dialogue.
type ReplyTool struct {
	engine *engine.Engine
}

// NewReplyTool creates a ReplyTool over the given engine.
func NewReplyTool(e *engine.Engine) *ReplyTool {
	return &ReplyTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *ReplyTool) Definition() mcp.Tool {
	return mcp.NewTool("refine_reply",
		mcp.WithDescription(
			"Send the user's answer into an open refinement dialogue. Returns "+
				"the next question, or the final refined setup once the dialogue "+
				"completes. Set `finish` to wrap up with the answers given so far.",
		),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Session ID returned by refine_start."),
		),
		mcp.WithString("message",
			mcp.Description("The user's answer. Required unless `finish` is set."),
		),
		mcp.WithBoolean("finish",
			mcp.Description("Close the dialogue on the answers given so far."),
		),
	)
}

// Handle processes the refine_reply tool call.
func (t *ReplyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("Missing required argument: session_id."), nil
	}

	var turn *conversation.Turn
	var err error
	if req.GetBool("finish", false) {
		turn, err = t.engine.EndRefinement(sessionID)
	} else {
		message := req.GetString("message", "")
		if message == "" {
			return mcp.NewToolResultError("Missing required argument: message."), nil
		}
		turn, err = t.engine.SendTurn(ctx, sessionID, message)
	}

	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("No session %q. Start one with refine_start.", sessionID)), nil
	case errors.Is(err, conversation.ErrSessionEnded):
		return mcp.NewToolResultError("This dialogue has already ended."), nil
	case err != nil:
		return nil, fmt.Errorf("refinement turn: %w", err)
	}

	if !turn.Complete {
		return mcp.NewToolResultText(turn.Reply), nil
	}

	var sb strings.Builder
	sb.WriteString("# Refinement Complete\n\n")
	sb.WriteString(turn.Reply)
	if turn.Result != nil && turn.Result.Structured != turn.Reply {
		sb.WriteString("\n\n## Refined setup\n\n```\n")
		sb.WriteString(turn.Result.Structured)
		sb.WriteString("\n```\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
