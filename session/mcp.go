package session

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/typelens/typelens/kit"
)

// RegisterMCP registers all typelens tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerToggle(srv)
	s.registerState(srv)
	s.registerInspect(srv)
	s.registerPinned(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

func (s *Session) registerToggle(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "typelens_toggle",
		Description: "Toggle the typography inspector on the attached page",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		active, err := s.Toggle(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"session_id": s.id, "active": active}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &req{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Session) registerState(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "typelens_state",
		Description: "Report the inspector state and pinned tooltip count",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.State(ctx)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: &req{}}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Session) registerInspect(srv *mcp.Server) {
	type req struct {
		XPath string `json:"xpath"`
	}

	tool := &mcp.Tool{
		Name:        "typelens_inspect",
		Description: "Classify the node at an XPath and return its typography and color",
		InputSchema: inputSchema(map[string]any{
			"xpath": map[string]any{"type": "string", "description": "XPath of the node to inspect"},
		}, []string{"xpath"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Inspect(ctx, p.XPath)
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (s *Session) registerPinned(srv *mcp.Server) {
	type req struct {
		CloseID string `json:"close_id"`
	}

	tool := &mcp.Tool{
		Name:        "typelens_pinned",
		Description: "List pinned tooltips, or close one by id",
		InputSchema: inputSchema(map[string]any{
			"close_id": map[string]any{"type": "string", "description": "Pinned tooltip id to close; omit to list"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if p.CloseID != "" {
			closed, err := s.ClosePinned(ctx, p.CloseID)
			if err != nil {
				return nil, err
			}
			return map[string]any{"closed": closed}, nil
		}
		pins, err := s.Pins(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"pinned": pins}, nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p req
		if len(r.Params.Arguments) > 0 {
			if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
