package serve

import (
	"github.com/spf13/cobra"

	"github.com/platescale/platescale/internal/api"
	"github.com/platescale/platescale/internal/app"
	"github.com/platescale/platescale/internal/logger"
)

// Command creates the command that runs the HTTP API.
func Command(ctx *app.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the estimation HTTP API",
		Long:  "Serve POST /api/v1/estimate until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				ctx.Settings.Server.Listen = listen
			}
			return run(cmd, ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides server.listen")
	return cmd
}

func run(cmd *cobra.Command, ctx *app.Context) error {
	a, err := app.Build(cmd.Context(), ctx.Settings)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []api.ServerOption{
		api.WithLogger(logger.Global().Module("api")),
		api.WithBuildInfo(ctx.Build),
	}
	if ctx.Settings.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(a.Metrics))
	}
	if a.Detector != nil {
		opts = append(opts, api.WithHealthCheck("detector", a.Detector))
	}

	server, err := api.New(api.ConfigFromSettings(ctx.Settings), a.Pipeline, a.Table, opts...)
	if err != nil {
		return err
	}
	return server.StartWithGracefulShutdown()
}
