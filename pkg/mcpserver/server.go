//go:build !mcp

package mcpserver

import (
	"context"
	"errors"

	"github.com/anandukch/localtoolbox/pkg/tool"
)

// Server is a placeholder MCP server when the mcp build tag is not set.
// It allows the rest of the repo to compile without the SDK.
type Server struct{}

type Option func(*Server)

// New creates a new MCP server (no-op without mcp tag).
func New(_ context.Context, _ ...Option) (*Server, error) { return &Server{}, nil }

// RegisterFromRegistry is a no-op that would export registry tools over MCP.
func (s *Server) RegisterFromRegistry(_ *tool.Registry, _ *tool.Invoker) error { return nil }

// ServeStdio starts the MCP server on stdin/stdout (no-op without mcp tag).
func (s *Server) ServeStdio(_ context.Context) error {
	return errors.New("mcp server not enabled in this build")
}
