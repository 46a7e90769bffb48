package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// PatternsTool handles the refine_patterns MCP tool.
// It manages the learned-pattern store.
type PatternsTool struct {
	engine *engine.Engine
}

// NewPatternsTool creates a PatternsTool over the given engine.
func NewPatternsTool(e *engine.Engine) *PatternsTool {
	return &PatternsTool{engine: e}
}

// Definition returns the MCP tool definition for registration.
func (t *PatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("refine_patterns",
		mcp.WithDescription(
			"Inspect or manage the learned refinement patterns. "+
				"'list' shows every stored pattern, 'stats' summarizes the store, "+
				"'forget' deletes one pattern by ID.",
		),
		mcp.WithString("action",
			mcp.Description("What to do. Defaults to 'list'."),
			mcp.Enum("list", "stats", "forget"),
		),
		mcp.WithString("id",
			mcp.Description("Pattern ID to forget. Required for 'forget'."),
		),
	)
}

// Handle processes the refine_patterns tool call.
func (t *PatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := t.engine.Patterns()

	switch action := req.GetString("action", "list"); action {
	case "forget":
		id := req.GetString("id", "")
		if id == "" {
			return mcp.NewToolResultError("Missing required argument: id."), nil
		}
		if !store.Delete(id) {
			return mcp.NewToolResultError(fmt.Sprintf("No pattern %q.", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pattern `%s` forgotten.", id)), nil

	case "stats":
		stats := store.Stats()
		var sb strings.Builder
		sb.WriteString("# Pattern Store\n\n")
		fmt.Fprintf(&sb, "**Patterns:** %d\n**Total uses:** %d\n", stats.Count, stats.TotalUses)
		if !stats.OldestUsed.IsZero() {
			fmt.Fprintf(&sb, "**Oldest last use:** %s\n", stats.OldestUsed.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(sb.String()), nil

	default:
		all := store.All()
		if len(all) == 0 {
			return mcp.NewToolResultText("No patterns learned yet. Complete a refinement dialogue to create one."), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "# Learned Patterns (%d)\n", len(all))
		for _, p := range all {
			sb.WriteString("\n")
			sb.WriteString(renderPattern(p))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
