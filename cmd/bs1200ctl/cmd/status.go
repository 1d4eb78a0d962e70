package cmd

import (
	"fmt"

	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [unit]",
	Short: "print fan and temperature status",
	Long:  `Wait for the next status broadcast of a unit, or of every configured unit`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			units := s.Units()
			if len(args) == 1 {
				u, err := parseUnit(args[0])
				if err != nil {
					return err
				}
				units = []bs1200.UnitID{u}
			}
			for _, u := range units {
				st, err := s.SystemStatus(cmd.Context(), u)
				if err != nil {
					return err
				}
				fmt.Print(st.String())
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
