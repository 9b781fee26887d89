// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smellak/browser-worker-agent/internal/observability"
	"github.com/smellak/browser-worker-agent/internal/server"
)

// newServeCmd creates the `serve` command hosting the HTTP API.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the HTTP API that runs navigation requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			// Without a credential the service still starts and answers
			// /run-agent with a 500 detail, so no oracle is built.
			var comps *components
			if credErr := cfg.Agent.LLM.ValidateCredentials(); credErr != nil {
				logger.Warn("LLM credential missing, run requests will be rejected", zap.Error(credErr))
				comps = &components{logger: logger}
			} else {
				comps, err = initComponents(ctx, cfg, logger)
				if err != nil {
					return err
				}
			}
			defer comps.Shutdown()

			handlers := server.NewHandlers(logger, comps.Runner, comps.Store, cfg.Agent, cfg.Server)
			srv := server.New(cfg.Server, handlers, logger)
			return srv.ListenAndServe(ctx)
		},
	}

	serveCmd.Flags().StringP("listen", "l", "", "listen address (overrides server.listen_addr)")
	serveCmd.Flags().String("driver", "", "browser driver: chromedp or rod")
	annotateFlag(serveCmd, "listen", "server.listen_addr")
	annotateFlag(serveCmd, "driver", "browser.driver")

	return serveCmd
}
