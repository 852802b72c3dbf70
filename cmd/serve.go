// File: cmd/serve.go
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iamhimansu/template-repeater/internal/config"
	"github.com/iamhimansu/template-repeater/internal/observability"
	"github.com/iamhimansu/template-repeater/internal/server"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API over HTTP and websockets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), observability.GetLogger(), cfg)
		},
	}
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().String("engine", "", "default template engine: expr or go")
	overrides(serveCmd, "addr", "server.addr")
	overrides(serveCmd, "engine", "template.engine")
	return serveCmd
}

// runServe blocks until ctx is cancelled.
func runServe(ctx context.Context, logger *zap.Logger, cfg config.Interface) error {
	logger.Info("Starting render server", zap.String("addr", cfg.Server().Addr), zap.String("version", Version))
	return server.New(cfg, logger).Run(ctx)
}
