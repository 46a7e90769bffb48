// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools and resources that depend on them.
// No business logic lives here — only wiring.
package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
	"github.com/smart-ai-memory/empathy-refine/internal/llm"
	"github.com/smart-ai-memory/empathy-refine/internal/resources"
	"github.com/smart-ai-memory/empathy-refine/internal/storage"
	"github.com/smart-ai-memory/empathy-refine/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools and
// resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the engine (and with it the
// pattern database) and must be called on shutdown, typically via
// defer. It is always non-nil and safe to call even if persistence
// init failed.
func New() (*server.MCPServer, func(), error) {
	// --- Persistence ---
	//
	// Learned patterns live in a small SQLite database under the
	// user's home. Persistence is an independent subsystem: if it
	// fails to initialize, the engine runs on an in-memory store and
	// everything keeps working for the life of the process.

	store, err := openStore()
	if err != nil {
		log.Printf("WARNING: pattern persistence disabled: %v", err)
		store = storage.NewMemStore()
	}

	// --- Generation collaborator ---
	//
	// Configured entirely from the environment. Without an API key
	// the client reports unavailable on first use and dialogues run
	// on the deterministic fallback questions.

	gen := llm.NewClient(llm.ClientConfig{
		BaseURL: os.Getenv("EMPATHY_BASE_URL"),
		APIKey:  os.Getenv("EMPATHY_API_KEY"),
		Model:   os.Getenv("EMPATHY_MODEL"),
	})

	eng := engine.New(engine.DefaultConfig(), store, gen)
	cleanup := func() {
		if err := eng.Close(); err != nil {
			log.Printf("WARNING: engine close: %v", err)
		}
	}

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"empathy-refine",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register refinement tools ---

	analyzeTool := tools.NewAnalyzeTool(eng)
	s.AddTool(analyzeTool.Definition(), analyzeTool.Handle)

	startTool := tools.NewStartTool(eng)
	s.AddTool(startTool.Definition(), startTool.Handle)

	replyTool := tools.NewReplyTool(eng)
	s.AddTool(replyTool.Definition(), replyTool.Handle)

	cancelTool := tools.NewCancelTool(eng)
	s.AddTool(cancelTool.Definition(), cancelTool.Handle)

	recallTool := tools.NewRecallTool(eng)
	s.AddTool(recallTool.Definition(), recallTool.Handle)

	costTool := tools.NewCostTool(eng)
	s.AddTool(costTool.Definition(), costTool.Handle)

	patternsTool := tools.NewPatternsTool(eng)
	s.AddTool(patternsTool.Definition(), patternsTool.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(eng)
	s.AddResource(resourceHandler.WorkflowsResource(), resourceHandler.HandleWorkflows)
	s.AddResource(resourceHandler.PatternsResource(), resourceHandler.HandlePatterns)

	return s, cleanup, nil
}

// openStore opens the pattern database under ~/.empathy-refine.
// EMPATHY_DATA_DIR overrides the location.
func openStore() (storage.Store, error) {
	dir := os.Getenv("EMPATHY_DATA_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".empathy-refine")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return storage.NewSQLiteStore(filepath.Join(dir, "patterns.db"))
}

// serverInstructions returns the system instructions that tell the AI
// how to use the refinement tools effectively.
func serverInstructions() string {
	return `You have access to empathy-refine, an adaptive workflow-refinement MCP server.

## WHEN TO USE IT

Before running a multi-stage workflow (code review, test generation,
refactor planning, audits), call refine_analyze with the invocation
context. It tells you whether a short clarifying dialogue is worth the
interruption, or whether the context is already clear.

## TYPICAL FLOW

1. refine_analyze — decide. If it reports a learned pattern, prefer
   applying that pattern over asking the user again.
2. refine_start — open the dialogue when analysis recommends it.
3. refine_reply — relay each user answer; the dialogue ends on its own
   once the setup is clear. Pass finish=true to wrap up early with the
   answers given so far.
4. refine_cancel — the user can always skip; never force the dialogue.

Completed dialogues are remembered. The next invocation of the same
workflow in the same context recalls the answers via refine_recall, so
users are not asked the same questions twice.

## COST

refine_cost quotes a workflow run before it starts. Quotes round up:
the real cost never exceeds them. Use compare=true when the user asks
whether a cheaper tier would do.

## HOUSEKEEPING

refine_patterns lists, summarizes, or forgets learned patterns. Use it
when the user asks what the server has remembered about them.`
}
