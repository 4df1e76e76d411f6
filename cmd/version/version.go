package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platescale/platescale/internal/app"
)

// Command creates the version command.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "platescale %s (commit %s, built %s)\n",
				ctx.Build.GetVersion(), ctx.Build.GetCommit(), ctx.Build.GetBuildDate())
		},
	}
}
