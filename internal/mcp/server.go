// Package mcp exposes read-only amlgate tools to agents over the Model
// Context Protocol.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/amlgate/internal/client"
	"github.com/ppiankov/amlgate/internal/model"
)

// Version is reported in the MCP implementation info.
const Version = "0.1.0"

// Backend answers the tool calls. *client.Client satisfies it.
type Backend interface {
	ReadRegistry(ctx context.Context) (client.Registry, error)
	BalanceOf(ctx context.Context, account model.AccountID) (string, error)
	TotalSupply(ctx context.Context) (string, error)
	Metadata(ctx context.Context) (client.Metadata, error)
	Check(ctx context.Context, account model.AccountID) (model.Classification, error)
}

// Server wraps the MCP SDK server.
type Server struct {
	mcpServer *mcpsdk.Server
	backend   Backend
}

// New creates an MCP server answering from backend.
func New(backend Backend) *Server {
	s := &Server{backend: backend}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "amlgate",
			Version: Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds all amlgate tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "amlgate_read_registry",
		Description: "Show the risk registry: oracle address, category policy and per-category risk thresholds.",
	}, s.handleReadRegistry)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "amlgate_balance",
		Description: "Get the token balance of an account in base units.",
	}, s.handleBalance)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "amlgate_total_supply",
		Description: "Get the token total supply and metadata.",
	}, s.handleTotalSupply)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "amlgate_check",
		Description: "Ask the AML oracle about an account and report whether its transfers would pass the registry (dry-run, moves no funds).",
	}, s.handleCheck)
}
