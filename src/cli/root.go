// Package cli implements the rail command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RAIL-Suite/RAIL-sub001/src/config"
	"github.com/RAIL-Suite/RAIL-sub001/src/logging"
	"github.com/RAIL-Suite/RAIL-sub001/src/observability"
	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
	"github.com/RAIL-Suite/RAIL-sub001/src/transport"
)

// Options holds global CLI options.
type Options struct {
	ConfigPath string
	Endpoint   string
	LogLevel   string
}

// NewRootCmd constructs the command tree.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:           "rail",
		Short:         "rail - route method calls between local processes and a reasoning loop",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ./rail.yaml or ./configs/rail.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "Broker endpoint, e.g. tcp://127.0.0.1:47800 or unix:///tmp/rail.sock")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewCallCmd(opts))
	cmd.AddCommand(NewPingCmd(opts))
	cmd.AddCommand(NewToolsCmd(opts))
	cmd.AddCommand(NewAskCmd(opts))
	cmd.AddCommand(NewManifestCmd(opts))
	cmd.AddCommand(NewMCPCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is what most commands need once flags and config are resolved.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	endpoint protocol.Endpoint
	client   *transport.Client
}

func newRuntime(opts *Options) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.NewLogger(level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	ep, err := cfg.BrokerEndpoint()
	if err != nil {
		return nil, err
	}
	if opts.Endpoint != "" {
		if ep, err = protocol.ParseEndpoint(opts.Endpoint); err != nil {
			return nil, fmt.Errorf("--endpoint: %w", err)
		}
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}
	client := transport.NewClient(
		transport.WithConnectTimeout(cfg.Transport.ConnectTimeout),
		transport.WithPingTimeout(cfg.Transport.PingTimeout),
		transport.WithCallTimeout(cfg.Transport.CallTimeout),
		transport.WithMaxFrameSize(cfg.Transport.MaxFrameBytes),
		transport.WithLogger(logging.Printf(logger)),
		transport.WithMetrics(metrics),
	)
	return &runtime{cfg: cfg, logger: logger, metrics: metrics, endpoint: ep, client: client}, nil
}

func (r *runtime) close() {
	_ = r.logger.Sync()
}
