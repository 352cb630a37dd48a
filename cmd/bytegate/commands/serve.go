package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harunnryd/bytegate/pkg/gateway"
	"github.com/harunnryd/bytegate/pkg/logging"
)

var (
	configPath string
	addr       string
	noBanner   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve client sessions over WebSocket",
	Long: `Serve client sessions over WebSocket.

Without --config the built-in defaults are used and every vendor key must
come from the client's config message.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	serveCmd.Flags().BoolVar(&noBanner, "no-banner", false, "skip the startup banner")
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		cfg gateway.Config
		err error
	)
	if configPath != "" {
		cfg, err = gateway.LoadConfig(configPath)
	} else {
		cfg, err = gateway.DefaultConfig()
	}
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	log := logging.InitLogger(cfg.Logging)
	opts := gateway.Options{Logger: log}
	if !noBanner {
		opts.Banner = cmd.OutOrStdout()
	}
	g, err := gateway.New(cfg, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return g.Run(ctx)
}
