package explore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers all exploration tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerList(srv)
	svc.registerLoad(srv)
	svc.registerIdentify(srv)
	svc.registerDownstream(srv)
	svc.registerDownstreamRequests(srv)
	svc.registerRequestInfo(srv)
	svc.registerModifications(srv)
	svc.registerHotElements(srv)
	svc.registerMatchFilters(srv)
	svc.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool bridges a decode-and-call handler to the MCP server. Handler
// errors become tool errors rather than protocol errors; results are
// rendered as indented JSON.
func registerTool(srv *mcp.Server, tool *mcp.Tool, handler func(context.Context, json.RawMessage) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := handler(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

var graphProp = map[string]any{"type": "string", "description": "Handle of a loaded graph"}

func (svc *Service) registerList(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "pagegraph_list",
		Description: "List the loaded page graphs with their handles and sizes",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	registerTool(srv, tool, func(_ context.Context, _ json.RawMessage) (any, error) {
		return svc.List(), nil
	})
}

func (svc *Service) registerLoad(srv *mcp.Server) {
	type req struct {
		Path string `json:"path"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_load",
		Description: "Load a page graph recording from a .graphml file, merging companion frame recordings",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to the .graphml file, relative paths resolve against the graph directory"},
		}, []string{"path"}),
	}
	registerTool(srv, tool, func(ctx context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.Load(ctx, p.Path)
	})
}

func (svc *Service) registerIdentify(srv *mcp.Server) {
	type req struct {
		Graph string `json:"graph"`
		ID    string `json:"id"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_identify",
		Description: "Describe the node or edge behind an id: type, timestamp, and neighbors",
		InputSchema: inputSchema(map[string]any{
			"graph": graphProp,
			"id":    map[string]any{"type": "string", "description": "Node or edge id, like n42 or e17"},
		}, []string{"graph", "id"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.Identify(p.Graph, p.ID)
	})
}

func (svc *Service) registerDownstream(srv *mcp.Server) {
	type req struct {
		Graph string `json:"graph"`
		Edge  string `json:"edge"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_downstream",
		Description: "List every effect caused by an edge, with the network requests among them",
		InputSchema: inputSchema(map[string]any{
			"graph": graphProp,
			"edge":  map[string]any{"type": "string", "description": "Edge id, like e17"},
		}, []string{"graph", "edge"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.Downstream(p.Graph, p.Edge)
	})
}

func (svc *Service) registerDownstreamRequests(srv *mcp.Server) {
	type req struct {
		Graph string `json:"graph"`
		Edge  string `json:"edge"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_downstream_requests",
		Description: "List the network requests caused by an edge, nested by causation",
		InputSchema: inputSchema(map[string]any{
			"graph": graphProp,
			"edge":  map[string]any{"type": "string", "description": "Edge id, like e17"},
		}, []string{"graph", "edge"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.DownstreamRequests(p.Graph, p.Edge)
	})
}

func (svc *Service) registerRequestInfo(srv *mcp.Server) {
	type req struct {
		Graph     string `json:"graph"`
		RequestID uint64 `json:"request_id"`
		Frame     string `json:"frame"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_request_info",
		Description: "Aggregate what the graph knows about one network request id",
		InputSchema: inputSchema(map[string]any{
			"graph":      graphProp,
			"request_id": map[string]any{"type": "integer", "description": "Request id as recorded by the browser"},
			"frame":      map[string]any{"type": "string", "description": "Optional 32-hex frame id, defaults to the root frame"},
		}, []string{"graph", "request_id"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.RequestInfo(p.Graph, p.RequestID, p.Frame)
	})
}

func (svc *Service) registerModifications(srv *mcp.Server) {
	type req struct {
		Graph string `json:"graph"`
		Node  string `json:"node"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_modifications",
		Description: "List every modification of an HTML element in timestamp order",
		InputSchema: inputSchema(map[string]any{
			"graph": graphProp,
			"node":  map[string]any{"type": "string", "description": "Node id of an HTML element, like n42"},
		}, []string{"graph", "node"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.Modifications(p.Graph, p.Node)
	})
}

func (svc *Service) registerHotElements(srv *mcp.Server) {
	type req struct {
		Graph     string `json:"graph"`
		Threshold int    `json:"threshold"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_hot_elements",
		Description: "List the HTML elements modified at least threshold times",
		InputSchema: inputSchema(map[string]any{
			"graph":     graphProp,
			"threshold": map[string]any{"type": "integer", "description": "Minimum modification count, 0 for the default"},
		}, []string{"graph"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.HotElements(p.Graph, p.Threshold)
	})
}

func (svc *Service) registerMatchFilters(srv *mcp.Server) {
	type req struct {
		Graph          string   `json:"graph"`
		Rules          []string `json:"rules"`
		OnlyExceptions bool     `json:"only_exceptions"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_match_filters",
		Description: "Find the resources whose requests match ad-block filter rules",
		InputSchema: inputSchema(map[string]any{
			"graph":           graphProp,
			"rules":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "ABP-syntax rules; empty uses the configured filter lists"},
			"only_exceptions": map[string]any{"type": "boolean", "description": "Report resources saved by exception rules instead"},
		}, []string{"graph"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.MatchFilters(p.Graph, p.Rules, p.OnlyExceptions)
	})
}

func (svc *Service) registerStats(srv *mcp.Server) {
	type req struct {
		Graph string `json:"graph"`
	}
	tool := &mcp.Tool{
		Name:        "pagegraph_stats",
		Description: "Compute page statistics for a loaded graph",
		InputSchema: inputSchema(map[string]any{
			"graph": graphProp,
		}, []string{"graph"}),
	}
	registerTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var p req
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		return svc.Stats(p.Graph)
	})
}
