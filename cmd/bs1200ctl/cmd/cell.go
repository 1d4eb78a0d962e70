package cmd

import (
	"fmt"
	"strconv"

	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var cellCmd = &cobra.Command{
	Use:   "cell",
	Short: "cell related commands",
}

var cellEnableCmd = &cobra.Command{
	Use:   "enable <unit> <channel|all> <on|off>",
	Short: "enable or disable cells",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		on, err := parseOnOff(args[2])
		if err != nil {
			return err
		}
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			if ch == 0 {
				return s.EnableAllCells(cmd.Context(), unit, on)
			}
			return s.EnableCell(cmd.Context(), unit, ch, on)
		})
	},
}

var cellVoltsCmd = &cobra.Command{
	Use:   "volts <unit> <channel|all> <volts>",
	Short: "set cell voltage, 0-5 V",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return err
		}
		if v < 0 || v > bs1200.MaxCellVolts {
			return fmt.Errorf("%g V outside 0-%g V", v, bs1200.MaxCellVolts)
		}
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			if ch == 0 {
				return s.SetAllCellVoltages(cmd.Context(), unit, v)
			}
			return s.SetCellVoltage(cmd.Context(), unit, ch, v)
		})
	},
}

const (
	flagSink   = "sink"
	flagSource = "source"
)

var cellCurrentCmd = &cobra.Command{
	Use:   "current <unit> <channel|all>",
	Short: "set cell sink and source current limits, 0-0.5 A",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		ch, err := parseChannel(args[1])
		if err != nil {
			return err
		}
		sink, _ := cmd.Flags().GetFloat64(flagSink)
		source, _ := cmd.Flags().GetFloat64(flagSource)
		for _, a := range []float64{sink, source} {
			if a < 0 || a > bs1200.MaxCellAmps {
				return fmt.Errorf("%g A outside 0-%g A", a, bs1200.MaxCellAmps)
			}
		}
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			if ch == 0 {
				return s.SetAllCellCurrents(cmd.Context(), unit, sink, source)
			}
			if err := s.SetCellSinkCurrent(cmd.Context(), unit, ch, sink); err != nil {
				return err
			}
			return s.SetCellSourceCurrent(cmd.Context(), unit, ch, source)
		})
	},
}

func init() {
	cellCurrentCmd.Flags().Float64(flagSink, bs1200.MaxCellAmps, "sink limit in A")
	cellCurrentCmd.Flags().Float64(flagSource, bs1200.MaxCellAmps, "source limit in A")
	cellCmd.AddCommand(cellEnableCmd, cellVoltsCmd, cellCurrentCmd)
	rootCmd.AddCommand(cellCmd)
}
