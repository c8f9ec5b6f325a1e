package cmd

import (
	"fmt"

	"github.com/findy-network/findy-triangle/agent/utils"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of findy-triangle",
	Long: `
Prints the version of this binary. The version of the running server is
printed by the status command.
	`,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		defer err2.Handle(&err)

		try.To1(fmt.Fprintln(cmd.OutOrStdout(), utils.Settings.VersionInfo()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
