// Package cli wires the geocoder into the banchi command line tool.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "banchi",
		Short: "Japanese address geocoder",
		Long: `Banchi resolves Japanese address notations to dictionary entries
with coordinates, and coordinates back to addresses. It searches an
installed dictionary directory, or relays to a banchi server when an
endpoint is configured.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("db-dir", "", "Dictionary directory (default: $BANCHI_DB_DIR or ~/.banchi/db)")
	rootCmd.PersistentFlags().String("url", "", "Endpoint of a remote banchi server (e.g. http://localhost:5000/jsonrpc)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Show debug messages")

	searchCmd := &cobra.Command{
		Use:   "search <address>",
		Short: "Resolve an address notation to dictionary entries",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().String("area", "", "Restrict the search to areas given by JIS code or name, comma-separated")
	searchCmd.Flags().Bool("force-aza-skip", false, "Skip aza-names whenever possible")
	searchCmd.Flags().Bool("disable-aza-skip", false, "Do not skip aza-names")
	searchCmd.MarkFlagsMutuallyExclusive("force-aza-skip", "disable-aza-skip")

	reverseCmd := &cobra.Command{
		Use:   "reverse <longitude> <latitude>",
		Short: "Find the addresses surrounding a point",
		Args:  cobra.ExactArgs(2),
		RunE:  RunReverse,
	}
	reverseCmd.Flags().Int("level", 6, "Address level to resolve to, 1 (prefecture) to 8 (building)")

	lookupCmd := &cobra.Command{
		Use:   "lookup <code>",
		Short: "Find dictionary entries by a registry code",
		Args:  cobra.ExactArgs(1),
		RunE:  RunLookup,
	}
	lookupCmd.Flags().Bool("postcode", false, "Treat the code as a 7-digit postal code")
	lookupCmd.Flags().Bool("prefcode", false, "Treat the code as a JIS X 0401 prefecture code")
	lookupCmd.Flags().Bool("citycode", false, "Treat the code as a JIS X 0402 city code")
	lookupCmd.Flags().Bool("machiaza-id", false, "Treat the code as a machiaza id of the address base registry")
	lookupCmd.Flags().Bool("aza-code", false, "Return the machiaza master record for a 12-digit code")
	lookupCmd.MarkFlagsOneRequired("postcode", "prefcode", "citycode", "machiaza-id", "aza-code")
	lookupCmd.MarkFlagsMutuallyExclusive("postcode", "prefcode", "citycode", "machiaza-id", "aza-code")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON-RPC server over the installed dictionary",
		Args:  cobra.NoArgs,
		RunE:  RunServe,
	}
	serveCmd.Flags().String("config", "", "Directory holding banchi.yaml (default: current directory)")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the geocoder to LLM agents over stdio (Model Context Protocol)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, version)
		},
	}

	getDBDirCmd := &cobra.Command{
		Use:   "get-db-dir",
		Short: "Print the resolved dictionary directory",
		Args:  cobra.NoArgs,
		RunE:  RunGetDBDir,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "banchi %s\n", version)
		},
	}

	rootCmd.AddCommand(
		searchCmd,
		reverseCmd,
		lookupCmd,
		serveCmd,
		mcpCmd,
		getDBDirCmd,
		versionCmd,
	)

	return rootCmd
}
