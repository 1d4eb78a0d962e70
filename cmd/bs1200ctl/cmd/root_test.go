package cmd

import (
	"testing"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/roffe/gobs1200/pkg/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	pf := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addGlobalFlags(pf)
	require.NoError(t, pf.Parse([]string{"--units", "2,4", "--scan-timeout", "250ms", "-d"}))

	c := config.Default()
	c.Adapter.Port = "vcan1"
	applyFlags(pf, c)
	assert.Equal(t, []int{2, 4}, c.Units)
	assert.Equal(t, 250*time.Millisecond, c.Scan.Timeout)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "vcan1", c.Adapter.Port, "unset flags keep the file value")
}

func TestParseUnit(t *testing.T) {
	u, err := parseUnit("15")
	require.NoError(t, err)
	assert.Equal(t, bs1200.UnitID(15), u)

	for _, in := range []string{"0", "16", "x", "-1"} {
		_, err := parseUnit(in)
		assert.ErrorIs(t, err, bs1200.ErrInvalidUnitID, in)
	}
}

func TestParseChannel(t *testing.T) {
	ch, err := parseChannel("ALL")
	require.NoError(t, err)
	assert.Equal(t, 0, ch)
	ch, err = parseChannel("7")
	require.NoError(t, err)
	assert.Equal(t, 7, ch)
	_, err = parseChannel("seven")
	assert.Error(t, err)
}

func TestParseOnOff(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "Enable": true, "1": true, "off": false, "false": false} {
		got, err := parseOnOff(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}

func TestParseBits(t *testing.T) {
	bits, err := parseBits("101")
	require.NoError(t, err)
	assert.Equal(t, [8]bool{true, false, true}, bits)

	_, err = parseBits("101000001")
	assert.Error(t, err)
	_, err = parseBits("10x")
	assert.Error(t, err)
}
