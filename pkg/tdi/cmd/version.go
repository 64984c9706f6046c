package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/tdi/pkg/tdi/output"
	"github.com/telekom/tdi/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tdi version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := output.FormatTable
			if rt != nil {
				writer = rt.Writer()
				f, err := rt.OutputFormat()
				if err != nil {
					return err
				}
				format = f
			}

			if format == output.FormatTable {
				_, err := writer.Write([]byte(info.String() + "\n"))
				return err
			}
			return output.WriteObject(writer, format, info)
		},
	}
}
