package estimate

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/platescale/platescale/internal/app"
	"github.com/platescale/platescale/internal/errors"
)

// Command creates the command that estimates a single image file.
func Command(ctx *app.Context) *cobra.Command {
	var plateDiameter string

	cmd := &cobra.Command{
		Use:   "estimate [image]",
		Short: "Estimate weight and nutrition for an image file",
		Long:  "Run the estimation pipeline once and print the result as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(err).
					Component("cli").
					Category(errors.CategoryFileIO).
					Context("path", args[0]).
					Build()
			}

			a, err := app.Build(cmd.Context(), ctx.Settings)
			if err != nil {
				return err
			}
			defer a.Close()

			est, err := a.Pipeline.Estimate(cmd.Context(), image, plateDiameter)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(est)
		},
	}

	cmd.Flags().StringVarP(&plateDiameter, "plate-diameter", "p", "", "Plate diameter in centimeters (10-40, default 25)")
	return cmd
}
