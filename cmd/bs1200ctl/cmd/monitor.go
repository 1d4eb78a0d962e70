package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/roffe/gobs1200"
	"github.com/roffe/gobs1200/pkg/capture"
	"github.com/spf13/cobra"
)

const flagRecord = "record"

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "print bus traffic",
	Long:  `Print every frame on the bus, BS1200 frames annotated with kind and unit`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dev, err := bs1200.NewAdapter(cfg.Adapter.Name, adapterConfig())
		if err != nil {
			return err
		}
		if err := dev.Open(ctx); err != nil {
			return err
		}
		defer dev.Close()

		var rec *capture.Writer
		if path, _ := cmd.Flags().GetString(flagRecord); path != "" {
			if rec, err = capture.Create(path); err != nil {
				return err
			}
			defer rec.Close()
			logger.Infof("recording to %s", path)
		}

		out := color.Output
		for {
			select {
			case <-ctx.Done():
				return nil
			case err := <-dev.Err():
				return err
			case evt := <-dev.Event():
				logger.Log(evt.Type.Level(), evt.Details)
			case f, ok := <-dev.Recv():
				if !ok {
					return bs1200.ErrAdapterClosed
				}
				if rec != nil {
					rec.Tap(f)
				}
				fmt.Fprintln(out, f.ColorString())
			}
		}
	},
}

func init() {
	monitorCmd.Flags().String(flagRecord, "", "record frames to a capture file")
	rootCmd.AddCommand(monitorCmd)
}
