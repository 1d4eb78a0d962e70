package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/roffe/gobs1200"
	"github.com/spf13/cobra"
)

const flagATPVolts = "volts"

var atpCmd = &cobra.Command{
	Use:   "atp",
	Short: "operator guided acceptance test",
	Long: `Initialize every configured unit, then drive one cell at a time and ask
the operator to confirm the measurement on a DMM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		volts, _ := cmd.Flags().GetFloat64(flagATPVolts)
		ctx := cmd.Context()
		return withSession(ctx, func(s *bs1200.Session) error {
			units, err := selectUnits(s.Units())
			if err != nil {
				return err
			}
			for _, u := range units {
				logger.Infof("initializing unit %d", u)
				if err := s.SetAllCellVoltages(ctx, u, 0); err != nil {
					return err
				}
				if err := s.SetAllCellCurrents(ctx, u, bs1200.MaxCellAmps, bs1200.MaxCellAmps); err != nil {
					return err
				}
				if err := s.EnableAllCells(ctx, u, true); err != nil {
					return err
				}
				if err := printCells(ctx, s, u); err != nil {
					return err
				}
			}
			if !confirm("All units initialized, continue") {
				return nil
			}

			var failed []string
			for _, u := range units {
				for cell := 1; cell <= bs1200.CellVoltage.Channels(); cell++ {
					fmt.Printf("\nUnit %d cell %d\n", u, cell)
					if err := s.SetCellVoltage(ctx, u, cell, volts); err != nil {
						return err
					}
					if err := s.SetCellSourceCurrent(ctx, u, cell, bs1200.MaxCellAmps); err != nil {
						return err
					}
					if err := s.SetCellSinkCurrent(ctx, u, cell, bs1200.MaxCellAmps); err != nil {
						return err
					}
					time.Sleep(10 * time.Millisecond)
					if err := printCells(ctx, s, u); err != nil {
						return err
					}
					if !confirm(fmt.Sprintf("Does the DMM read %.2f V on cell %d", volts, cell)) {
						failed = append(failed, fmt.Sprintf("unit %d cell %d", u, cell))
					}
					if err := s.SetCellVoltage(ctx, u, cell, 0); err != nil {
						return err
					}
				}
				if err := s.EnableAllCells(ctx, u, false); err != nil {
					return err
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("failed: %v", failed)
			}
			logger.Info("all cells passed")
			return nil
		})
	},
}

func printCells(ctx context.Context, s *bs1200.Session, u bs1200.UnitID) error {
	volts, err := s.ReadAllCellVoltages(ctx, u)
	if err != nil {
		return err
	}
	amps, err := s.ReadAllCellCurrents(ctx, u)
	if err != nil {
		return err
	}
	fmt.Print("Cell voltages:\n" + bs1200.FormatTable(volts, 4))
	fmt.Print("Cell currents:\n" + bs1200.FormatTable(amps, 4))
	return nil
}

func selectUnits(units []bs1200.UnitID) ([]bs1200.UnitID, error) {
	if len(units) == 1 {
		return units, nil
	}
	items := []string{"all"}
	for _, u := range units {
		items = append(items, strconv.Itoa(int(u)))
	}
	prompt := promptui.Select{
		Label:    "Unit to test",
		HideHelp: true,
		Items:    items,
	}
	i, _, err := prompt.Run()
	if err != nil {
		return nil, err
	}
	if i == 0 {
		return units, nil
	}
	return units[i-1 : i], nil
}

func confirm(label string) bool {
	prompt := promptui.Select{
		Label:    label + " [Yes/No]",
		HideHelp: true,
		Items:    []string{"Yes", "No"},
	}
	_, result, err := prompt.Run()
	if err != nil {
		logger.Warnf("prompt failed %v", err)
		return false
	}
	return result == "Yes"
}

func init() {
	atpCmd.Flags().Float64(flagATPVolts, 4.5, "test voltage per cell")
	rootCmd.AddCommand(atpCmd)
}
