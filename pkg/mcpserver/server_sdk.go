//go:build mcp

package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anandukch/localtoolbox/pkg/tool"
)

type Server struct {
	srv *mcp.Server
}

type Option func(*Server)

func New(ctx context.Context, _ ...Option) (*Server, error) {
	impl := &mcp.Implementation{Name: "toolboxd", Version: "dev"}
	return &Server{srv: mcp.NewServer(impl, nil)}, nil
}

// RegisterFromRegistry exports every registered tool over MCP. Calls go
// through the Invoker so validation, execution and history behave the
// same as over HTTP.
func (s *Server) RegisterFromRegistry(reg *tool.Registry, inv *tool.Invoker) error {
	for _, d := range reg.Descriptors() {
		var schema *jsonschema.Schema
		if len(d.InputSchema) > 0 {
			schema = new(jsonschema.Schema)
			if err := json.Unmarshal(d.InputSchema, schema); err != nil {
				return err
			}
		}
		toolID := d.ID
		s.srv.AddTool(&mcp.Tool{
			Name:        toolID,
			Description: d.Description,
			InputSchema: schema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			params := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
					return nil, err
				}
			}
			res, err := inv.Invoke(ctx, toolID, params)
			if err != nil {
				return nil, err
			}
			raw, err := json.Marshal(res)
			if err != nil {
				return nil, err
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
				IsError: !res.Success,
			}, nil
		})
	}
	return nil
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is canceled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &mcp.StdioTransport{})
}
