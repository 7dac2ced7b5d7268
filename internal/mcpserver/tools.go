package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	gomcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/codeweaver/codeweaver/internal/health"
	"github.com/codeweaver/codeweaver/internal/query"
)

// addFindCodeTool registers find_code (spec.md §6/§4.11). Argument
// parsing follows the teacher's tool.go: arguments arrive as a
// map[string]interface{} and are extracted field by field rather than
// unmarshaled, since mcp-go hands back untyped JSON values (numbers as
// float64, arrays as []interface{}).
func addFindCodeTool(s *server.MCPServer, pipeline *query.Pipeline) {
	tool := gomcp.NewTool(
		"find_code",
		gomcp.WithDescription("Search the indexed project for code and documentation relevant to a natural-language query. Returns ranked chunks with file paths and scores."),
		gomcp.WithString("query", gomcp.Required(), gomcp.Description("Natural language search query")),
		gomcp.WithString("intent", gomcp.Description("Optional override for query intent classification")),
		gomcp.WithNumber("token_limit", gomcp.Description("Maximum combined tokens across returned matches; accepted, but the search does not apply it")),
		gomcp.WithBoolean("include_tests", gomcp.Description("Include test files in results (default: true); accepted, but the search does not filter on it")),
		gomcp.WithArray("focus_languages", gomcp.Description("Languages to focus on; accepted, but the search does not filter on it")),
		gomcp.WithNumber("max_results", gomcp.Description("Maximum number of matches to return (default: 15)")),
	)

	s.AddTool(tool, func(ctx context.Context, request gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		if pipeline == nil {
			return gomcp.NewToolResultError("find_code is not available: no query pipeline configured"), nil
		}

		argsMap, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return gomcp.NewToolResultError("invalid arguments format"), nil
		}

		req, err := parseFindCodeArgs(argsMap)
		if err != nil {
			return gomcp.NewToolResultError(err.Error()), nil
		}

		resp, err := pipeline.Find(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("find_code: %w", err)
		}

		return jsonResult(resp)
	})
}

// parseFindCodeArgs extracts a query.Request from find_code's raw
// argument map. Factored out of the tool handler so it can be tested
// without constructing a gomcp.CallToolRequest.
func parseFindCodeArgs(argsMap map[string]interface{}) (query.Request, error) {
	queryText, ok := argsMap["query"].(string)
	if !ok || queryText == "" {
		return query.Request{}, fmt.Errorf("query parameter is required")
	}

	req := query.Request{Query: queryText, IncludeTests: true}

	if intent, ok := argsMap["intent"].(string); ok && intent != "" {
		i := query.Intent(intent)
		req.Intent = &i
	}
	if v, ok := argsMap["token_limit"].(float64); ok {
		req.TokenLimit = int(v)
	}
	if v, ok := argsMap["include_tests"].(bool); ok {
		req.IncludeTests = v
	}
	if v, ok := argsMap["focus_languages"].([]interface{}); ok {
		req.FocusLanguages = toStringSlice(v)
	}
	if v, ok := argsMap["max_results"].(float64); ok {
		req.MaxResults = int(v)
	}

	return req, nil
}

// addReindexTool registers reindex (spec.md §6: "accepted, runs in
// background").
func addReindexTool(s *server.MCPServer, srv *Server) {
	tool := gomcp.NewTool(
		"reindex",
		gomcp.WithDescription("Trigger an indexing pass over the project. Returns immediately; indexing runs in the background."),
		gomcp.WithBoolean("force", gomcp.Description("Force a full reindex instead of an incremental one (default: false)")),
	)

	s.AddTool(tool, func(ctx context.Context, request gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		force := false
		if argsMap, ok := request.Params.Arguments.(map[string]interface{}); ok {
			if v, ok := argsMap["force"].(bool); ok {
				force = v
			}
		}

		accepted := srv.StartReindex(context.WithoutCancel(ctx), force)

		status := "already_running"
		if accepted {
			status = "accepted"
		}
		return jsonResult(map[string]any{"status": status, "force": force})
	})
}

// addGetIndexStatusTool registers get_index_status (spec.md §6/§4.13).
func addGetIndexStatusTool(s *server.MCPServer, sources health.Sources) {
	tool := gomcp.NewTool(
		"get_index_status",
		gomcp.WithDescription("Return aggregated indexing and service health status."),
	)

	s.AddTool(tool, func(ctx context.Context, request gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
		status := health.Aggregate(ctx, sources)
		return jsonResult(status)
	})
}

func toStringSlice(vs []interface{}) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// jsonResult marshals v and wraps it as a text tool result, the
// mcp-go convention the teacher's tool.go also follows.
func jsonResult(v any) (*gomcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return gomcp.NewToolResultText(string(data)), nil
}
