// Package tools exposes the refinement engine over MCP. Each tool is
// a small struct with a Definition for registration and a Handle that
// delegates to the engine; rendering stays in this package.
package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
	"github.com/smart-ai-memory/empathy-refine/internal/patterns"
	"github.com/smart-ai-memory/empathy-refine/internal/workflow"
)

// contextParams declares the shared invocation-context arguments used
// by every tool that needs to know what the user is acting on.
func contextParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("workflow",
			mcp.Required(),
			mcp.Description("Workflow being invoked, e.g. 'code-review' or 'test-gen'."),
		),
		mcp.WithString("target_path",
			mcp.Description("File or folder the workflow was invoked on. Omit when there is no explicit target."),
		),
		mcp.WithString("active_file",
			mcp.Description("File currently open in the editor, if any."),
		),
		mcp.WithString("project_root",
			mcp.Description("Workspace root, used for project-type detection."),
		),
		mcp.WithString("open_files",
			mcp.Description("Comma-separated paths of open editor tabs."),
		),
		mcp.WithString("source",
			mcp.Description("How the workflow was invoked."),
			mcp.Enum("menu", "palette", "keyboard", "history", "panel"),
		),
	}
}

// contextFromRequest builds the invocation context from tool args.
func contextFromRequest(e *engine.Engine, req mcp.CallToolRequest) workflow.Context {
	raw := workflow.RawInput{
		TargetPath:  req.GetString("target_path", ""),
		ActiveFile:  req.GetString("active_file", ""),
		ProjectRoot: req.GetString("project_root", ""),
	}
	if open := req.GetString("open_files", ""); open != "" {
		for _, f := range strings.Split(open, ",") {
			if f = strings.TrimSpace(f); f != "" {
				raw.OpenFiles = append(raw.OpenFiles, f)
			}
		}
	}

	source := workflow.TriggerSource(req.GetString("source", string(workflow.SourcePalette)))
	return e.GatherContext(req.GetString("workflow", ""), raw, source)
}

// renderPattern formats one learned pattern as a markdown section.
func renderPattern(p *patterns.Pattern) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Pattern:** `%s` (%s)\n", p.ID, p.Description)
	fmt.Fprintf(&sb, "**Used:** %d times, last %s\n\n", p.UsageCount, p.LastUsedAt.Format("2006-01-02"))
	if len(p.Refinements) > 0 {
		sb.WriteString("| Question | Answer |\n|----------|--------|\n")
		for q, a := range p.Refinements {
			fmt.Fprintf(&sb, "| %s | %s |\n", q, strings.Join(a, "; "))
		}
	}
	return sb.String()
}
