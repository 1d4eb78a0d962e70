package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var aoCmd = &cobra.Command{
	Use:   "ao <unit> <ao1 volts> <ao2 volts>",
	Short: "set both analog outputs, 0-5 V",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		var v [2]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(args[i+1], 64); err != nil {
				return err
			}
			if v[i] < 0 || v[i] > 5 {
				return fmt.Errorf("AO%d: %g V outside 0-5 V", i+1, v[i])
			}
		}
		return withSession(cmd.Context(), func(s *bs1200.Session) error {
			return s.SetAnalogOutputs(cmd.Context(), unit, v[0], v[1])
		})
	},
}

const (
	flagDIODir    = "dir"
	flagDIOEnable = "en"
	flagDIOCheck  = "check"
)

var dioCmd = &cobra.Command{
	Use:   "dio <unit>",
	Short: "set digital io direction and enable bits",
	Long: `Bits are given as a string with DIO 1 first, e.g. --dir 11110000 --en 10100000.
A line is driven high when it is an output and enabled. With --check the
states are read back afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		dirS, _ := cmd.Flags().GetString(flagDIODir)
		enS, _ := cmd.Flags().GetString(flagDIOEnable)
		check, _ := cmd.Flags().GetBool(flagDIOCheck)
		dir, err := parseBits(dirS)
		if err != nil {
			return err
		}
		en, err := parseBits(enS)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return withSession(ctx, func(s *bs1200.Session) error {
			if err := s.SetDigitalIO(ctx, unit, dir, en); err != nil {
				return err
			}
			if !check {
				return nil
			}
			time.Sleep(100 * time.Millisecond)
			readings, err := s.ReadDigitalIO(ctx, unit)
			if err != nil {
				return err
			}
			fmt.Print(bs1200.FormatTable(readings, 4))
			for i, r := range readings {
				if want := dir[i] && en[i]; want && !r.State {
					logger.Warnf("%s: expected high", r.Name())
				}
			}
			return nil
		})
	},
}

func init() {
	dioCmd.Flags().String(flagDIODir, "00000000", "direction bits, 1 = output")
	dioCmd.Flags().String(flagDIOEnable, "00000000", "enable bits")
	dioCmd.Flags().Bool(flagDIOCheck, false, "read back after setting")
	rootCmd.AddCommand(aoCmd, dioCmd)
}
