package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/broker"
	"github.com/RAIL-Suite/RAIL-sub001/src/mcpbridge"
	"github.com/RAIL-Suite/RAIL-sub001/src/react"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

// NewServeCmd runs the broker until interrupted. With --mcp the same process
// also serves the broker's tools over stdio and exits when stdin closes.
func NewServeCmd(opts *Options) *cobra.Command {
	var withMCP bool
	var refresh time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := broker.New(
				broker.WithLogger(rt.logger),
				broker.WithMetrics(rt.metrics),
				broker.WithTransport(rt.client),
				broker.WithMaxFrameSize(rt.cfg.Transport.MaxFrameBytes),
			)
			if rt.cfg.Metrics.Enabled {
				go serveMetrics(ctx, rt)
			}
			if !withMCP {
				return b.ListenAndServe(ctx, rt.endpoint)
			}

			ln, err := transport.Listen(rt.endpoint)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			served := make(chan error, 1)
			go func() { served <- b.Serve(ctx, ln) }()

			bridge := mcpbridge.New(react.NewBrokerToolbox(b),
				mcpbridge.WithServerInfo("rail", Version),
				mcpbridge.WithLogger(rt.logger),
				mcpbridge.WithRefreshInterval(refresh))
			err = bridge.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			cancel()
			if serveErr := <-served; err == nil {
				err = serveErr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&withMCP, "mcp", false, "Also expose the broker's tools as an MCP server on stdin/stdout")
	cmd.Flags().DurationVar(&refresh, "refresh", time.Second, "With --mcp, how often to re-read the tool list (0 disables)")
	return cmd
}

func serveMetrics(ctx context.Context, rt *runtime) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.metrics.Handler())
	srv := &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	rt.logger.Info("metrics listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rt.logger.Error("metrics server", zap.Error(err))
	}
}
