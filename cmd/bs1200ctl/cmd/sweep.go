package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/roffe/gobs1200/pkg/bar"
	"github.com/spf13/cobra"
)

const (
	flagFrom      = "from"
	flagTo        = "to"
	flagStep      = "step"
	flagSettle    = "settle"
	flagTolerance = "tolerance"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <unit>",
	Short: "step every cell through a voltage range and verify the readback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := parseUnit(args[0])
		if err != nil {
			return err
		}
		f := cmd.Flags()
		from, _ := f.GetFloat64(flagFrom)
		to, _ := f.GetFloat64(flagTo)
		step, _ := f.GetFloat64(flagStep)
		settle, _ := f.GetDuration(flagSettle)
		tol, _ := f.GetFloat64(flagTolerance)
		if step <= 0 || from < 0 || to > bs1200.MaxCellVolts || from > to {
			return fmt.Errorf("invalid sweep %g..%g step %g", from, to, step)
		}
		steps := int(math.Floor((to-from)/step+1e-9)) + 1

		ctx := cmd.Context()
		return withSession(ctx, func(s *bs1200.Session) error {
			if err := s.SetAllCellVoltages(ctx, unit, 0); err != nil {
				return err
			}
			if err := s.SetAllCellCurrents(ctx, unit, bs1200.MaxCellAmps, bs1200.MaxCellAmps); err != nil {
				return err
			}
			if err := s.EnableAllCells(ctx, unit, true); err != nil {
				return err
			}
			defer s.EnableAllCells(ctx, unit, false)

			pb := bar.New(steps, fmt.Sprintf("unit %d", unit))
			var failures []string
			for i := 0; i < steps; i++ {
				v := from + float64(i)*step
				if err := s.SetAllCellVoltages(ctx, unit, v); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(settle):
				}
				readings, err := s.ReadAllCellVoltages(ctx, unit)
				if err != nil {
					return err
				}
				for _, r := range readings {
					if math.Abs(r.Value-v) > tol {
						failures = append(failures, fmt.Sprintf("%.3f V: %s", v, r))
					}
				}
				pb.Add(1)
			}
			fmt.Println()
			for _, fl := range failures {
				logger.Warn(fl)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d readings outside ±%g V", len(failures), tol)
			}
			logger.Infof("unit %d: %d steps ok", unit, steps)
			return nil
		})
	},
}

func init() {
	f := sweepCmd.Flags()
	f.Float64(flagFrom, 0, "start voltage")
	f.Float64(flagTo, bs1200.MaxCellVolts, "end voltage")
	f.Float64(flagStep, 0.5, "voltage step")
	f.Duration(flagSettle, time.Second, "wait before reading back")
	f.Float64(flagTolerance, 0.01, "allowed readback deviation in V")
	rootCmd.AddCommand(sweepCmd)
}
