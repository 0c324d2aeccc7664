package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RAIL-Suite/RAIL-sub001/src/mcpbridge"
	"github.com/RAIL-Suite/RAIL-sub001/src/react"
)

// NewMCPCmd serves the broker's tools to an MCP host over stdio.
func NewMCPCmd(opts *Options) *cobra.Command {
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose broker tools as an MCP server on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bridge := mcpbridge.New(react.NewRemoteToolbox(rt.client, rt.endpoint),
				mcpbridge.WithServerInfo("rail", Version),
				mcpbridge.WithLogger(rt.logger),
				mcpbridge.WithRefreshInterval(refresh))
			return bridge.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&refresh, "refresh", 10*time.Second, "How often to re-read the broker's tool list (0 disables)")
	return cmd
}
