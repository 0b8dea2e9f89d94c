package main

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"dogovor/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.LogDevelopment {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(a.svc, a.log.Named("http"), a.registry)
			return api.RunServer(ctx, ":"+a.cfg.Port, router, a.log)
		},
	}
}
