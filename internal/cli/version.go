package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaiaops/gaia/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gaia version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("full")
		if verbose {
			fmt.Println(version.Full())
			return
		}
		fmt.Println(version.Info())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("full", false, "include commit and build date")
}
