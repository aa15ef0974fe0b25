// Package mcpserver exposes the tool registry over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
)

// Server serves every registered tool. All calls share one session, so
// change_directory affects the calls that follow it.
type Server struct {
	srv     *mcp.Server
	reg     *tools.Registry
	session *tools.Session
	log     *logging.Logger
}

// New creates a Server for reg running in session.
func New(reg *tools.Registry, session *tools.Session, version string, log *logging.Logger) *Server {
	s := &Server{
		srv:     mcp.NewServer(&mcp.Implementation{Name: "codeagent", Version: version}, nil),
		reg:     reg,
		session: session,
		log:     log.WithPrefix("mcp"),
	}
	for _, def := range reg.Definitions() {
		s.srv.AddTool(&mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.handler(def.Name))
	}
	return s
}

// Run serves over stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving on stdio", logging.Count(len(s.reg.Definitions())), logging.Path(s.session.Dir()))
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves one client over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := tools.Call{ID: uuid.NewString(), Name: name, Input: map[string]any{}}

		if raw := req.Params.Arguments; len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &call.Input); err != nil {
				s.log.Warn("bad arguments", logging.ToolName(name), logging.Error(err))
				return textResult("Error executing "+name+": arguments must be a JSON object", true), nil
			}
		}

		start := time.Now()
		res := s.reg.Dispatch(ctx, s.session, call)
		s.log.Debug("tool call", logging.ToolName(name), logging.RequestID(call.ID),
			logging.DurationSince(start), logging.F("failed", res.Failed()))
		return textResult(res.Text(), res.Failed()), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}
