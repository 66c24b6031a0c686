package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	amlmcp "github.com/ppiankov/amlgate/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs amlgate as an MCP (Model Context Protocol) server over stdio, backed\nby a running token server. Exposes read-only tools: read_registry, balance,\ntotal_supply, check.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	c, err := dialServer(false)
	if err != nil {
		return err
	}
	defer c.Close()

	srv := amlmcp.New(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down MCP server...")
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "amlgate MCP server running on stdio")
	return srv.Run(ctx)
}
