package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openshift-eng/kueue-dev/src/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the kueue-dev version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
