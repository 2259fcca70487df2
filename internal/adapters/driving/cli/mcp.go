package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mediafilter/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the media filter to MCP clients",
	Long: `Serves the media filter over the Model Context Protocol.

Tools: filter_item, filter_all, list_items, list_filters.
Resources: mediafilter://formats, mediafilter://items/{handle},
mediafilter://bitstreams/{id}.

Without --port the server speaks JSON-RPC on stdio, which is what desktop
clients expect:

  {
    "mcpServers": {
      "mediafilter": {
        "command": "/path/to/mediafilter",
        "args": ["mcp", "serve"]
      }
    }
  }

With --port it serves the streamable HTTP transport instead:

  mediafilter mcp serve --port 8080`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "serve HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		MediaFilter: mediaFilterService,
		Items:       itemService,
		Settings:    settingsService,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var addr string
	if port > 0 {
		addr = fmt.Sprintf(":%d", port)
		// stdout belongs to JSON-RPC in stdio mode, so only announce HTTP
		cmd.Printf("MCP server listening on http://localhost%s/\n", addr)
	}
	return server.Serve(ctx, addr)
}
