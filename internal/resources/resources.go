// Package resources implements MCP resource handlers for the
// refinement engine.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (refine://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/smart-ai-memory/empathy-refine/internal/engine"
)

// Handler manages the refinement resource endpoints.
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a resource Handler over the given engine.
func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// WorkflowsResource returns the MCP resource definition for the
// workflow catalog.
func (h *Handler) WorkflowsResource() mcp.Resource {
	return mcp.NewResource(
		"refine://workflows",
		"Workflow Catalog",
		mcp.WithResourceDescription("Every known workflow with its tier, stages, and refinement questions"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleWorkflows returns the workflow catalog as JSON.
func (h *Handler) HandleWorkflows(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(h.engine.Workflows().All(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling workflows: %w", err)
	}
	return jsonResource(req.Params.URI, data), nil
}

// PatternsResource returns the MCP resource definition for the
// learned patterns.
func (h *Handler) PatternsResource() mcp.Resource {
	return mcp.NewResource(
		"refine://patterns",
		"Learned Refinement Patterns",
		mcp.WithResourceDescription("Refinement patterns learned from completed dialogues, with usage counts"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandlePatterns returns the learned patterns as JSON.
func (h *Handler) HandlePatterns(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	doc := struct {
		Stats    interface{} `json:"stats"`
		Patterns interface{} `json:"patterns"`
	}{
		Stats:    h.engine.Patterns().Stats(),
		Patterns: h.engine.Patterns().All(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling patterns: %w", err)
	}
	return jsonResource(req.Params.URI, data), nil
}

func jsonResource(uri string, data []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
