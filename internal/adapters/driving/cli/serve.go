package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/source/pdf"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docstash-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/docstash-cli/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library over MCP",
	Long: `Start the Model Context Protocol server over a finished library.

The server is read-only: it exposes documents, pages, figures and
tables as resources but never mutates the database.

By default, the server communicates over stdio using JSON-RPC and can
be used with Claude Desktop and other MCP-compatible AI assistants.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default, for Claude Desktop)
  docstash serve -d library.db

  # HTTP mode (for MCP Inspector, remote access)
  docstash serve -d library.db --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "docstash": {
        "command": "/path/to/docstash",
        "args": ["serve", "-d", "/path/to/library.db"]
      }
    }
  }`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("database", "d", "", "database path (default from config, then ~/.docstash/library.db)")
	serveCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	serveCmd.Flags().Int64("max-blob-size", 0, "largest blob to serve in bytes (0 = default)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	dbPath, err := databasePath(cmd)
	if err != nil {
		return err
	}
	if err := sniffDatabase(dbPath); err != nil {
		return err
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	maxBlobSize, err := cmd.Flags().GetInt64("max-blob-size")
	if err != nil {
		return fmt.Errorf("getting max-blob-size flag: %w", err)
	}
	if maxBlobSize == 0 {
		maxBlobSize = configStore.Config().Serve.MaxBlobSize
	}

	library := services.NewLibrary(store, pdf.NewAssembler())

	server, err := mcp.NewServer(mcp.Config{
		Library:     library,
		MaxBlobSize: maxBlobSize,
	})
	if err != nil {
		return err
	}

	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
