package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/platescale/platescale/cmd/estimate"
	"github.com/platescale/platescale/cmd/reference"
	"github.com/platescale/platescale/cmd/serve"
	"github.com/platescale/platescale/cmd/version"
	"github.com/platescale/platescale/internal/app"
)

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "platescale",
		Short:         "Plate photo weight and nutrition estimator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, ctx); err != nil {
		panic(err)
	}

	versionCmd := version.Command(ctx)
	rootCmd.AddCommand(
		serve.Command(ctx),
		estimate.Command(ctx),
		reference.Command(ctx),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs no configuration
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return ctx.Setup()
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		ctx.Teardown()
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, ctx *app.Context) error {
	rootCmd.PersistentFlags().StringVarP(&ctx.ConfigPath, "config", "c", "", "Path to config file (default: search standard locations)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
