package cli

import (
	"github.com/spf13/cobra"

	"github.com/ppiankov/amlgate/internal/token"
)

// version is set by ldflags at build time.
var version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"version":       version,
			"name":          "amlgate",
			"metadata_spec": token.MetadataSpec,
		})
	},
}
