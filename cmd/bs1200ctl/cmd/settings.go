package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/roffe/gobs1200/pkg/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "inspect unit settings files",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "print a settings file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		fmt.Printf("publish period: %d µs, suggested scan timeout: %s\n", s.PublishPeriod(), s.ScanTimeout())
		return nil
	},
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "validate a settings file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load(args[0])
		if err != nil {
			return err
		}
		name, ac := s.Adapter(cfg.Adapter.Port)
		logger.Infof("%s ok, unit %d reachable with adapter %s on %s", args[0], s.CAN.BoxID, name, ac.Port)
		return nil
	},
}

var settingsInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "write a settings file with default values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return settings.Default().Save(args[0])
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsCheckCmd, settingsInitCmd)
	rootCmd.AddCommand(settingsCmd)
}
