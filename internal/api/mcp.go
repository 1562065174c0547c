package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yalor/ace/internal/journal"
	"github.com/yalor/ace/internal/profile"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Bridge   TurnHandler
	Profiles *profile.Store
	Journal  *journal.Store // optional; stats and offers report unavailable without it
}

// NewMCPServer creates an MCP server exposing the pipeline to an agent
// host: the chatbot forwards each user turn through process_message and
// renders whatever offer comes back.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"ace",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ace is a conversational commerce sidecar. Forward each user message through process_message; render the returned offer, if any, alongside the assistant reply."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("process_message",
			mcp.WithDescription("Run one conversational turn through the commerce pipeline. Returns a sponsored offer as JSON, or null when the turn is not commercial."),
			mcp.WithString("message", mcp.Description("The user's message text"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation session id (defaults to the shared demo session)")),
		),
		mcpProcessMessage(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Read the inferred commercial profile for a session."),
			mcp.WithString("session_id", mcp.Description("Conversation session id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ace://offers/recent",
			"Recent Offers",
			mcp.WithResourceDescription("Last 10 sponsored offers served, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentOffers(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"ace://stats",
			"Pipeline Stats",
			mcp.WithResourceDescription("Journaled event counts per kind"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpProcessMessage(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		sessionID := req.GetString("session_id", DefaultSessionID)

		offer, err := deps.Bridge.Handle(ctx, sessionID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("processing turn: %v", err)), nil
		}
		if offer == nil {
			return mcpText("null"), nil
		}

		b, err := json.Marshal(offer)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal offer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		b, err := json.Marshal(deps.Profiles.Get(sessionID))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecentOffers(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Journal == nil {
			return nil, fmt.Errorf("journal not configured")
		}

		offers, err := deps.Journal.RecentOffers(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list offers: %w", err)
		}

		b, err := json.Marshal(offers)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal offers: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		if deps.Journal == nil {
			return nil, fmt.Errorf("journal not configured")
		}

		counts, err := deps.Journal.Counts()
		if err != nil {
			return nil, fmt.Errorf("failed to count events: %w", err)
		}

		stats := make(map[string]int64, len(counts))
		for kind, n := range counts {
			stats[string(kind)] = n
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
