package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/roffe/gobs1200/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:               "bs1200ctl",
	Short:             "BS1200 battery simulator control",
	Long:              `Drive BS1200 battery cell simulators over CAN, SLCAN or Ethernet`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagConfig      = "config"
	flagAdapter     = "adapter"
	flagPort        = "port"
	flagBaudrate    = "baudrate"
	flagCANRate     = "canrate"
	flagUnits       = "units"
	flagDebug       = "debug"
	flagScanFrames  = "scan-frames"
	flagScanTimeout = "scan-timeout"
	flagLogLevel    = "log-level"
	flagLogFormat   = "log-format"
)

var (
	cfg    *config.Config
	logger *logrus.Logger
)

func init() {
	addGlobalFlags(rootCmd.PersistentFlags())
}

func addGlobalFlags(pf *pflag.FlagSet) {
	pf.StringP(flagConfig, "c", "", "configuration file")
	pf.StringP(flagAdapter, "a", "SocketCAN", "what adapter to use")
	pf.StringP(flagPort, "p", "can0", "interface, com-port, unit IP or capture file")
	pf.IntP(flagBaudrate, "b", 115200, "serial baudrate")
	pf.Float64P(flagCANRate, "r", 1000, "CAN rate in kbit/s")
	pf.IntSliceP(flagUnits, "u", []int{1}, "unit ids on the bus")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.Int(flagScanFrames, bs1200.DefaultMaxScanFrames, "max frames inspected per readback, 0 = unbounded")
	pf.Duration(flagScanTimeout, bs1200.DefaultScanTimeout, "max time per readback, 0 = unbounded")
	pf.String(flagLogLevel, "info", "log level")
	pf.String(flagLogFormat, "text", "log format, text or json")
}

// loadConfig reads the config file if given, then applies every flag the
// user set on top of it.
func loadConfig(cmd *cobra.Command, _ []string) error {
	pf := cmd.Flags()
	cfg = config.Default()
	if path, _ := pf.GetString(flagConfig); path != "" {
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
	}
	applyFlags(pf, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger = cfg.Logger()
	return nil
}

func applyFlags(pf *pflag.FlagSet, cfg *config.Config) {
	if pf.Changed(flagAdapter) || cfg.Adapter.Name == "" {
		cfg.Adapter.Name, _ = pf.GetString(flagAdapter)
	}
	if pf.Changed(flagPort) {
		cfg.Adapter.Port, _ = pf.GetString(flagPort)
	}
	if pf.Changed(flagBaudrate) {
		cfg.Adapter.Baudrate, _ = pf.GetInt(flagBaudrate)
	}
	if pf.Changed(flagCANRate) {
		cfg.Adapter.CANRate, _ = pf.GetFloat64(flagCANRate)
	}
	if pf.Changed(flagUnits) {
		cfg.Units, _ = pf.GetIntSlice(flagUnits)
	}
	if pf.Changed(flagScanFrames) {
		cfg.Scan.MaxFrames, _ = pf.GetInt(flagScanFrames)
	}
	if pf.Changed(flagScanTimeout) {
		cfg.Scan.Timeout, _ = pf.GetDuration(flagScanTimeout)
	}
	if pf.Changed(flagLogLevel) {
		cfg.Log.Level, _ = pf.GetString(flagLogLevel)
	}
	if pf.Changed(flagLogFormat) {
		cfg.Log.Format, _ = pf.GetString(flagLogFormat)
	}
	if debug, _ := pf.GetBool(flagDebug); debug {
		cfg.Log.Level = "debug"
	}
}

func adapterConfig() *bs1200.AdapterConfig {
	ac := cfg.AdapterConfig()
	ac.Debug = logger.IsLevelEnabled(logrus.DebugLevel)
	ac.OnMessage = func(msg string) {
		logger.WithField("adapter", cfg.Adapter.Name).Debug(msg)
	}
	return ac
}

func sessionOptions(extra ...bs1200.Option) []bs1200.Option {
	opts := []bs1200.Option{
		bs1200.WithLogger(logger),
		bs1200.WithMaxScanFrames(cfg.Scan.MaxFrames),
		bs1200.WithScanTimeout(cfg.Scan.Timeout),
		bs1200.WithOpenRetry(cfg.OpenAttempts, time.Second),
	}
	return append(opts, extra...)
}

// withSession opens the configured bus for the duration of fn.
func withSession(ctx context.Context, fn func(*bs1200.Session) error, extra ...bs1200.Option) error {
	return bs1200.WithSession(ctx, cfg.Adapter.Name, adapterConfig(), cfg.Units, fn, sessionOptions(extra...)...)
}

func parseUnit(s string) (bs1200.UnitID, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < bs1200.MinUnitID || n > bs1200.MaxUnitID {
		return 0, &bs1200.UnitIDError{ID: n}
	}
	return bs1200.UnitID(n), nil
}

// parseChannel accepts a channel number or "all", which returns 0.
func parseChannel(s string) (int, error) {
	if strings.EqualFold(s, "all") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	return n, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "enable":
		return true, nil
	case "off", "0", "false", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// parseBits reads a bit string like "10100000" where the first character
// is channel 1.
func parseBits(s string) ([8]bool, error) {
	var out [8]bool
	if len(s) > len(out) {
		return out, fmt.Errorf("bit string %q longer than %d", s, len(out))
	}
	for i, c := range s {
		switch c {
		case '1':
			out[i] = true
		case '0':
		default:
			return out, fmt.Errorf("invalid bit %q in %q", c, s)
		}
	}
	return out, nil
}
