package cmd

import (
	"fmt"

	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "list available adapters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, a := range bs1200.ListAdapters() {
			fmt.Println(a.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
