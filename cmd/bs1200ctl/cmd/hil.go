package cmd

import (
	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var hilCmd = &cobra.Command{
	Use:   "hil <unit> <on|off>",
	Short: "enable or disable HIL mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			return s.SetHILMode(cmd.Context(), unit, on)
		})
	},
}

const (
	flagPubDIO    = "dio"
	flagPubAO     = "ao"
	flagPubDIOBC  = "dio-broadcast"
	flagPubAI     = "ai"
	flagPubAI58   = "ai58"
	flagPubCal    = "cal"
	flagPubHILOff = "hil-off"
)

var publishCmd = &cobra.Command{
	Use:   "publish <unit>",
	Short: "configure what the unit publishes",
	Long: `Send the publish configuration. The unit ignores it in HIL mode, so
with --hil-off HIL mode is disabled first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		var pc bs1200.PublishConfig
		pc.DIOHILSet, _ = f.GetBool(flagPubDIO)
		pc.AOHILSet, _ = f.GetBool(flagPubAO)
		pc.DIOBroadcast, _ = f.GetBool(flagPubDIOBC)
		pc.AI1to4Broadcast, _ = f.GetBool(flagPubAI)
		pc.AI5to8Broadcast, _ = f.GetBool(flagPubAI58)
		pc.CalibrationMode, _ = f.GetBool(flagPubCal)
		hilOff, _ := f.GetBool(flagPubHILOff)
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			if hilOff {
				if err := s.SetHILMode(cmd.Context(), unit, false); err != nil {
					return err
				}
			}
			return s.ConfigurePublishing(cmd.Context(), unit, pc)
		})
	},
}

func init() {
	f := publishCmd.Flags()
	f.Bool(flagPubDIO, false, "DIO set by HIL")
	f.Bool(flagPubAO, false, "AO set by HIL")
	f.Bool(flagPubDIOBC, true, "broadcast DIO states")
	f.Bool(flagPubAI, true, "broadcast AI 1-4")
	f.Bool(flagPubAI58, true, "broadcast AI 5-8")
	f.Bool(flagPubCal, false, "calibration mode")
	f.Bool(flagPubHILOff, false, "disable HIL mode before configuring")
	rootCmd.AddCommand(hilCmd, publishCmd)
}
