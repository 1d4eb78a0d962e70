package cmd

import (
	"fmt"

	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "read telemetry",
}

func readRunner(kind bs1200.ChannelKind) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		ch := 0
		if len(args) == 2 {
			if ch, err = parseChannel(args[1]); err != nil {
				return err
			}
		}
		ctx := cmd.Context()
		return withSession(ctx, func(s *bs1200.Session) error {
			var readings []bs1200.Reading
			var err error
			switch {
			case kind == bs1200.DigitalIO:
				readings, err = s.ReadDigitalIO(ctx, unit)
				if err == nil && ch != 0 {
					if ch < 1 || ch > len(readings) {
						return &bs1200.ChannelError{Kind: kind, Channel: ch}
					}
					readings = readings[ch-1 : ch]
				}
			case ch != 0:
				var r bs1200.Reading
				switch kind {
				case bs1200.CellVoltage:
					r, err = s.ReadCellVoltage(ctx, unit, ch)
				case bs1200.CellCurrent:
					r, err = s.ReadCellCurrent(ctx, unit, ch)
				case bs1200.AnalogInput:
					r, err = s.ReadAnalogInput(ctx, unit, ch)
				}
				readings = []bs1200.Reading{r}
			default:
				switch kind {
				case bs1200.CellVoltage:
					readings, err = s.ReadAllCellVoltages(ctx, unit)
				case bs1200.CellCurrent:
					readings, err = s.ReadAllCellCurrents(ctx, unit)
				case bs1200.AnalogInput:
					readings, err = s.ReadAllAnalogInputs(ctx, unit)
				}
			}
			if err != nil {
				return err
			}
			fmt.Print(bs1200.FormatTable(readings, 4))
			return nil
		})
	}
}

func init() {
	for _, c := range []struct {
		use   string
		short string
		kind  bs1200.ChannelKind
	}{
		{"volts <unit> [channel]", "read cell voltages", bs1200.CellVoltage},
		{"amps <unit> [channel]", "read cell currents", bs1200.CellCurrent},
		{"ai <unit> [channel]", "read analog inputs", bs1200.AnalogInput},
		{"dio <unit> [channel]", "read digital io states", bs1200.DigitalIO},
	} {
		readCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.RangeArgs(1, 2),
			RunE:  readRunner(c.kind),
		})
	}
	rootCmd.AddCommand(readCmd)
}
