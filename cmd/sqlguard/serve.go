package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tduhfajd/sql-guard/governance"
	"github.com/tduhfajd/sql-guard/governance/api"
	"github.com/tduhfajd/sql-guard/shared/logger"
)

// serveCmd returns the command that runs the governance API.
func serveCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance HTTP API",
		Long: `Serve the governance API. Requests authenticate with bearer tokens signed
with server.jwt_secret (see "sqlguard token").

Examples:
  JWT_SECRET=s3cret sqlguard serve --addr :8080
  sqlguard serve --config sqlguard.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := governance.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.ListenAddr = addr
			}
			if cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret or " + governance.EnvJWTSecret + " is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, appOptions{execute: true, quota: true, logs: os.Stdout})
			if err != nil {
				return err
			}
			defer a.Close()

			auth, err := api.NewAuthenticator(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
			if err != nil {
				return err
			}
			opts := []api.Option{
				api.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
				api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
				api.WithTarget(cfg.Target.DatabaseID, cfg.Target.DatabaseType),
				api.WithLogger(logger.New("api")),
			}
			if a.limiter != nil {
				opts = append(opts, api.WithLimiter(a.limiter))
			}
			srv := api.NewServer(a.pipeline, a.policies, auth, opts...)

			fmt.Fprintf(cmd.ErrOrStderr(), "sqlguard %s listening on %s (%d policies)\n",
				version, cfg.Server.ListenAddr, a.store.Snapshot().Len())
			return srv.ListenAndServe(ctx, cfg.Server.ListenAddr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.listen_addr)")
	return cmd
}
