package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/flowguard/internal/advisor"
	"github.com/zulandar/flowguard/internal/api"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			adv, err := advisor.New(a.cfg.Guardian, advisor.Options{Log: a.log, Metrics: a.metrics})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			ctx, stop := signalContext()
			defer stop()
			return api.Serve(ctx, addr, api.Options{
				Ledger:         a.ledger,
				Feed:           a.feed,
				Advisor:        adv,
				Metrics:        a.metrics,
				Log:            a.log,
				JWTSecret:      a.cfg.Server.JWTSecret,
				ExcludedOwners: a.cfg.Guardian.OwnerSaturationExclude,
				Location:       time.Local,
				Now:            clock,
			})
		},
	}
	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
