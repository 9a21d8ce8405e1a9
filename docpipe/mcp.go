package docpipe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/quizagent/kit"
)

// RegisterMCP registers docpipe tools on an MCP server.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerExtractTool(srv)
	p.registerDetectTool(srv)
	p.registerFormatsTool(srv)
}

// --- extract ---

type extractReq struct {
	Format  string `json:"format"`
	Content string `json:"content_base64"`
}

func (p *Pipeline) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_extract",
		Description: "Parse a base64-encoded payload (csv, json or pdf) into rows, a JSON value or text.",
		InputSchema: kit.InputSchema(map[string]any{
			"format":         map[string]any{"type": "string", "description": "csv, json or pdf"},
			"content_base64": map[string]any{"type": "string", "description": "Payload bytes, base64-encoded"},
		}, []string{"format", "content_base64"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		data, err := base64.StdEncoding.DecodeString(r.Content)
		if err != nil {
			return nil, fmt.Errorf("content_base64: %w", err)
		}
		return p.Extract(ctx, Format(r.Format), data)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- detect ---

type detectReq struct {
	Location string `json:"location"`
}

func (p *Pipeline) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_detect",
		Description: "Detect the format of a file path or URL from its extension.",
		InputSchema: kit.InputSchema(map[string]any{
			"location": map[string]any{"type": "string", "description": "File path or URL"},
		}, []string{"location"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		r := req.(*detectReq)
		format, err := p.Detect(r.Location)
		if err != nil {
			return nil, err
		}
		return map[string]any{"format": string(format)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- formats ---

func (p *Pipeline) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "docpipe_formats",
		Description: "List all supported payload formats.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": SupportedFormats()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
