package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/roffe/gobs1200"
	"github.com/roffe/gobs1200/pkg/sink"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	flagInterval = "interval"
	flagDryRun   = "dry-run"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "poll every unit and publish readings to redis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration(flagInterval)
		dryRun, _ := cmd.Flags().GetBool(flagDryRun)
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}

		g, ctx := errgroup.WithContext(cmd.Context())

		var extra []bs1200.Option
		if cfg.Metrics.Enabled {
			reg := prometheus.NewRegistry()
			m, err := bs1200.NewMetrics(reg)
			if err != nil {
				return err
			}
			extra = append(extra, bs1200.WithMetrics(m))
			srv := &http.Server{
				Addr:    cfg.Metrics.Listen,
				Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			}
			g.Go(func() error {
				logger.Infof("metrics on %s/metrics", cfg.Metrics.Listen)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
		}

		publish := func(ctx context.Context, m sink.Message) error {
			b, err := json.Marshal(m)
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		if !dryRun {
			pub, err := sink.NewPublisher(ctx, sink.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Channel:  cfg.Redis.Channel,
				History:  cfg.Redis.History,
			}, logger)
			if err != nil {
				return err
			}
			defer pub.Close()
			publish = pub.Publish
		}

		g.Go(func() error {
			err := withSession(ctx, func(s *bs1200.Session) error {
				t := time.NewTicker(interval)
				defer t.Stop()
				for {
					for _, u := range s.Units() {
						m, err := poll(ctx, s, u)
						if err != nil {
							if errors.Is(err, bs1200.ErrCorrelationTimeout) {
								logger.WithError(err).Warnf("unit %d", u)
								continue
							}
							return err
						}
						if err := publish(ctx, m); err != nil {
							logger.WithError(err).Warn("publish")
						}
					}
					select {
					case <-ctx.Done():
						return nil
					case <-t.C:
					}
				}
			}, extra...)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		return g.Wait()
	},
}

func poll(ctx context.Context, s *bs1200.Session, u bs1200.UnitID) (sink.Message, error) {
	m := sink.Message{Time: time.Now(), Unit: u}
	for _, read := range []func(context.Context, bs1200.UnitID) ([]bs1200.Reading, error){
		s.ReadAllCellVoltages,
		s.ReadAllCellCurrents,
		s.ReadAllAnalogInputs,
		s.ReadDigitalIO,
	} {
		r, err := read(ctx, u)
		if err != nil {
			return m, err
		}
		m.Readings = append(m.Readings, r...)
	}
	st, err := s.SystemStatus(ctx, u)
	if err != nil {
		return m, err
	}
	m.Status = sink.NewStatus(st)
	return m, nil
}

func init() {
	streamCmd.Flags().Duration(flagInterval, time.Second, "poll interval")
	streamCmd.Flags().Bool(flagDryRun, false, "print messages instead of publishing")
	rootCmd.AddCommand(streamCmd)
}
