package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	banchimcp "github.com/banchi-geo/banchi/internal/mcp"
)

func runMCP(cmd *cobra.Command, version string) error {
	setupLogging(cmd)

	tree, err := openTree(cmd)
	if err != nil {
		return err
	}
	defer tree.Close()

	// Stdout carries the protocol, so anything human-facing must go
	// through slog on stderr.
	s := banchimcp.NewMCPServer(tree, version)
	return s.Run(cmd.Context(), &mcp.StdioTransport{})
}
