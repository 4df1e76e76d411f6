package reference

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/platescale/platescale/internal/app"
)

// Command creates the command that prints the active reference table.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "Print the food reference table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := app.LoadReferenceTable(ctx.Settings)
			if err != nil {
				return err
			}

			g := table.Geometry()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "image %.1f x %.1f cm, fill fraction %.2f\n\n",
				g.ImageHeightCM, g.ImageWidthCM, g.AreaFillFraction)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LABEL\tDEPTH (cm)\tDENSITY (g/cm³)")
			for _, label := range table.Labels() {
				p, _ := table.Lookup(label)
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", label, p.DepthCM, p.DensityGPerCM3)
			}
			return w.Flush()
		},
	}
}
