package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "quiz-test", Version: "0.1.0"}

func mcpSession(t *testing.T, a *Agent) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	a.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if result.IsError {
		if tc, ok := result.Content[0].(*mcp.TextContent); ok {
			return "", errors.New(tc.Text)
		}
		return "", errors.New("tool error")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, nil
}

func TestMCP_Solve(t *testing.T) {
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{err: errors.New("unused")}))
	session := mcpSession(t, a)

	text, err := callTool(t, session, "quiz_solve", map[string]any{
		"task": `Send it to https://quiz.example/submit with this JSON payload: {"answer": 12}`,
		"url":  "https://quiz.example/q7",
	})
	if err != nil {
		t.Fatalf("quiz_solve: %v", err)
	}

	var resp struct {
		Rule    string         `json:"rule"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Rule != "inline_example" {
		t.Errorf("rule = %q", resp.Rule)
	}
	if resp.Payload["answer"] != 12.0 || resp.Payload["url"] != "https://quiz.example/submit" {
		t.Errorf("payload = %v", resp.Payload)
	}
	if _, leaked := resp.Payload["secret"]; leaked {
		t.Error("secret returned by quiz_solve")
	}
}

func TestMCP_StartAndSessions(t *testing.T) {
	a := newTestAgent(t, testConfig(), WithOpener(&fakeOpener{err: errors.New("no browser")}))
	session := mcpSession(t, a)

	if _, err := callTool(t, session, "quiz_start", map[string]any{
		"email": "me@example.com", "secret": "wrong", "url": "https://quiz.example/",
	}); err == nil {
		t.Error("expected error for wrong secret")
	}

	text, err := callTool(t, session, "quiz_start", map[string]any{
		"email": "me@example.com", "url": "https://quiz.example/",
	})
	if err != nil {
		t.Fatalf("quiz_start: %v", err)
	}
	var started map[string]string
	json.Unmarshal([]byte(text), &started)
	if started["session_id"] == "" {
		t.Fatalf("start response = %s", text)
	}
	a.Wait(context.Background())

	text, err = callTool(t, session, "quiz_sessions", map[string]any{})
	if err != nil {
		t.Fatalf("quiz_sessions: %v", err)
	}
	var listed struct {
		Sessions []SessionInfo `json:"sessions"`
	}
	json.Unmarshal([]byte(text), &listed)
	if len(listed.Sessions) != 1 || listed.Sessions[0].ID != started["session_id"] {
		t.Errorf("sessions = %+v", listed.Sessions)
	}
}
