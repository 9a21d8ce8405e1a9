package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/quizagent/horosafe"
	"github.com/hazyhaar/quizagent/kit"
	"github.com/hazyhaar/quizagent/quiz/internal/solve"
)

// RegisterMCP registers the quiz tools on an MCP server.
func (a *Agent) RegisterMCP(srv *mcp.Server) {
	a.registerStartTool(srv)
	a.registerSolveTool(srv)
	a.registerSessionsTool(srv)
}

// toolLogging logs each tool call with its outcome and duration.
func (a *Agent) toolLogging(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			log := a.logger.With("tool", name, "transport", kit.GetTransport(ctx), "duration_ms", time.Since(start).Milliseconds())
			if err != nil {
				log.Warn("quiz: tool failed", "error", err)
			} else {
				log.Debug("quiz: tool ok")
			}
			return resp, err
		}
	}
}

// --- start ---

type startReq struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}

func (a *Agent) registerStartTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quiz_start",
		Description: "Start a quiz session at url. Returns the session id; the session runs in the background.",
		InputSchema: kit.InputSchema(map[string]any{
			"email":  map[string]any{"type": "string", "description": "Submitter email"},
			"secret": map[string]any{"type": "string", "description": "Shared secret (defaults to the configured one)"},
			"url":    map[string]any{"type": "string", "description": "First task page"},
		}, []string{"email", "url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*startReq)
		if r.Secret != "" && !horosafe.SecretEqual(a.cfg.Secret, r.Secret) {
			return nil, errors.New("invalid secret")
		}
		id, err := a.HandleQuiz(r.Email, a.cfg.Secret, r.URL)
		if err != nil {
			return nil, err
		}
		a.logger.Info("quiz: accepted", "session_id", id, "transport", kit.GetTransport(ctx), "url", r.URL)
		return map[string]string{"status": "accepted", "session_id": id}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r startReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(a.toolLogging(tool.Name))(endpoint), decode)
}

// --- solve ---

type solveReq struct {
	Task string `json:"task"`
	URL  string `json:"url"`
}

func (a *Agent) registerSolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quiz_solve",
		Description: "Compute the answer payload for a decoded task without submitting it. Fallback payloads carry no screenshot.",
		InputSchema: kit.InputSchema(map[string]any{
			"task": map[string]any{"type": "string", "description": "Decoded task text"},
			"url":  map[string]any{"type": "string", "description": "Page the task came from"},
		}, []string{"task"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*solveReq)
		payload, rule := a.engine.Solve(ctx, solve.Input{
			Task:    r.Task,
			PageURL: r.URL,
			Email:   a.cfg.Email,
			Secret:  a.cfg.Secret,
		}, nil)
		shown := make(solve.Payload, len(payload))
		for k, v := range payload {
			if k != "secret" {
				shown[k] = v
			}
		}
		return map[string]any{"rule": rule, "payload": shown}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r solveReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(a.toolLogging(tool.Name))(endpoint), decode)
}

// --- sessions ---

func (a *Agent) registerSessionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "quiz_sessions",
		Description: "List running and recently finished sessions, newest first.",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"sessions": a.registry.List()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, kit.Chain(a.toolLogging(tool.Name))(endpoint), decode)
}
