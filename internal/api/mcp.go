package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/huddleplay/assist/internal/assembler"
	"github.com/huddleplay/assist/internal/memory"
	"github.com/huddleplay/assist/internal/retrieval"
	"github.com/huddleplay/assist/internal/suggest"
)

// MCPSearcher abstracts semantic search for the MCP layer.
type MCPSearcher interface {
	Search(ctx context.Context, collection string, vector []float32, limit int, threshold float32) ([]retrieval.Match, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Assembler    *assembler.Assembler
	Orchestrator *suggest.Orchestrator
	Writer       *memory.Writer
	Embedder     *retrieval.Embedder
	Vectors      MCPSearcher
}

// NewMCPServer creates an MCP server with all assist tools registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"assist",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("assist: retrieval-grounded reply suggestions for live huddle conversations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("suggest_reply",
			mcp.WithDescription("Draft a reply for the current conversation, grounded in past huddles and reference documents."),
			mcp.WithString("screenshot_text", mcp.Description("Visible conversation text"), mcp.Required()),
			mcp.WithString("user_draft", mcp.Description("The user's rough draft or idea for the reply")),
			mcp.WithBoolean("regenerate", mcp.Description("Request a materially different suggestion for the same inputs")),
		),
		mcpSuggestReply(deps),
	)

	s.AddTool(
		mcp.NewTool("recall_huddles",
			mcp.WithDescription("Semantically search stored huddle interactions and return the closest matches."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecallHuddles(deps),
	)

	s.AddTool(
		mcp.NewTool("store_interaction",
			mcp.WithDescription("Store a completed huddle interaction so future suggestions can learn from it. Low-signal interactions are skipped."),
			mcp.WithString("screenshot_text", mcp.Description("Visible conversation text"), mcp.Required()),
			mcp.WithString("user_draft", mcp.Description("The user's draft"), mcp.Required()),
			mcp.WithString("ai_suggested", mcp.Description("The suggested reply"), mcp.Required()),
			mcp.WithString("user_final", mcp.Description("The reply the user actually sent, if edited")),
		),
		mcpStoreInteraction(deps),
	)

	s.AddTool(
		mcp.NewTool("boost_interaction",
			mcp.WithDescription("Increase the curation weight of a stored interaction so it surfaces more readily."),
			mcp.WithString("id", mcp.Description("Interaction record id"), mcp.Required()),
			mcp.WithNumber("increment", mcp.Description("Boost increment (default 0.5)")),
		),
		mcpBoostInteraction(deps),
	)

	return s
}

func mcpSuggestReply(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screenshot, err := req.RequireString("screenshot_text")
		if err != nil {
			return mcpError("screenshot_text is required"), nil
		}
		draft := req.GetString("user_draft", "")
		regenerate := req.GetBool("regenerate", false)

		pc := deps.Assembler.Assemble(ctx, screenshot, draft)
		result := deps.Orchestrator.GenerateReply(ctx, suggest.ReplyRequest{
			ScreenshotText: screenshot,
			UserDraft:      draft,
			Context:        pc,
			Regenerate:     regenerate,
		})
		if result.Failed() {
			return mcpError(result.Reply), nil
		}
		return mcpText(result.Reply), nil
	}
}

func mcpRecallHuddles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		vector, err := deps.Embedder.Embed(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}
		matches, err := deps.Vectors.Search(ctx, retrieval.InteractionCollection, vector, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}

		if len(matches) == 0 {
			return mcpText("[]"), nil
		}

		type matchResult struct {
			ID     string  `json:"id"`
			Text   string  `json:"text"`
			Source string  `json:"source"`
			Score  float32 `json:"score"`
			Boost  float64 `json:"boost"`
		}

		results := make([]matchResult, len(matches))
		for i, m := range matches {
			results[i] = matchResult{
				ID:     m.ID,
				Text:   m.Text,
				Source: m.Source,
				Score:  m.Score,
				Boost:  m.Boost,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpStoreInteraction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		screenshot, err := req.RequireString("screenshot_text")
		if err != nil {
			return mcpError("screenshot_text is required"), nil
		}
		draft, err := req.RequireString("user_draft")
		if err != nil {
			return mcpError("user_draft is required"), nil
		}
		suggested, err := req.RequireString("ai_suggested")
		if err != nil {
			return mcpError("ai_suggested is required"), nil
		}
		final := req.GetString("user_final", "")

		stored, reasons, err := deps.Writer.MaybeStore(ctx, memory.Interaction{
			ScreenshotText: screenshot,
			UserDraft:      draft,
			AISuggested:    suggested,
			UserFinal:      final,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to store interaction: %v", err)), nil
		}

		id := memory.InteractionID(screenshot, draft, suggested)
		if !stored {
			b, _ := json.Marshal(reasons)
			return mcpText(fmt.Sprintf("Skipped low-signal interaction: %s", b)), nil
		}
		return mcpText(fmt.Sprintf("Stored interaction %s", id)), nil
	}
}

func mcpBoostInteraction(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		increment := req.GetFloat("increment", memory.DefaultBoostIncrement)

		boost, err := deps.Writer.Boost(ctx, id, increment)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to boost interaction: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Interaction %s boosted to %.1f", id, boost)), nil
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
