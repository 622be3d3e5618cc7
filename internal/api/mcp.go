package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/projectcraftbeer/PendoSmart/internal/storage"
)

// NewMCPServer exposes the review workflow as MCP tools so assistants can
// browse, score and flag translations over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"pendosmart",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("PendoSmart — local review store for translated strings synced from the localization platform."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_translations",
			mcp.WithDescription("List translation rows for review, with optional flag/status/search filters."),
			mcp.WithString("project_id", mcp.Description("Project; defaults to the configured project")),
			mcp.WithString("locale", mcp.Description("Target locale; defaults to the configured locale")),
			mcp.WithString("status", mcp.Description("Filter by status: pending or completed")),
			mcp.WithString("search", mcp.Description("Substring to search in source and translation text")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of rows (default 20)")),
		),
		mcpListTranslations(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_translation",
			mcp.WithDescription("Score a source/translation pair with the local model and return score plus rationale."),
			mcp.WithString("source", mcp.Description("Source text"), mcp.Required()),
			mcp.WithString("translation", mcp.Description("Translated text"), mcp.Required()),
			mcp.WithString("locale", mcp.Description("Target locale; defaults to the configured locale")),
		),
		mcpEvaluateTranslation(deps),
	)

	s.AddTool(
		mcp.NewTool("flag_translation",
			mcp.WithDescription("Set or clear the needs-attention flag on a translation row."),
			mcp.WithNumber("id", mcp.Description("Translation row id"), mcp.Required()),
			mcp.WithBoolean("flagged", mcp.Description("True to flag, false to clear"), mcp.Required()),
		),
		mcpFlagTranslation(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"pendosmart://keys",
			"Platform Keys",
			mcp.WithResourceDescription("Configured platform identity (secret masked) as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceKeys(deps),
	)

	return s
}

func mcpListTranslations(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projectID := req.GetString("project_id", "")
		locale := req.GetString("locale", "")
		projectID, locale = deps.resolveScope(projectID, locale)
		if projectID == "" || locale == "" {
			return mcpError("no project/locale configured: pass them or save keys first"), nil
		}

		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		filter := storage.TranslationFilter{
			ProjectID:  projectID,
			Locale:     locale,
			Status:     req.GetString("status", ""),
			SearchText: req.GetString("search", ""),
		}
		rows, err := deps.Store.ListTranslations(filter, limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing translations failed: %v", err)), nil
		}
		if rows == nil {
			rows = []storage.Translation{}
		}

		b, err := json.Marshal(rows)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal rows: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpEvaluateTranslation(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source, err := req.RequireString("source")
		if err != nil {
			return mcpError("source is required"), nil
		}
		translation, err := req.RequireString("translation")
		if err != nil {
			return mcpError("translation is required"), nil
		}
		_, locale := deps.resolveScope("", req.GetString("locale", ""))

		res := deps.Evaluator.Evaluate(ctx, source, translation, locale)
		b, err := json.Marshal(res)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpFlagTranslation(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		flagged, err := req.RequireBool("flagged")
		if err != nil {
			return mcpError("flagged is required"), nil
		}

		flag := 0
		if flagged {
			flag = 1
		}
		err = deps.Store.SetTranslationFlag(int64(id), flag)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("translation %d not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to set flag: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Translation %d flag set to %d", id, flag)), nil
	}
}

func mcpResourceKeys(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		cred, err := deps.Store.Current()
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load keys: %w", err)
		}

		b, err := json.Marshal(keysResponse{
			UserID:    cred.UserID,
			HasSecret: cred.Secret != "",
			AccountID: cred.AccountID,
			ProjectID: cred.ProjectID,
			Locale:    cred.Locale,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal keys: %w", err)
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
