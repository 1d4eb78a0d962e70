package sink

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "bs1200:7:readings", HistoryKey(7))
}

func TestMessageJSON(t *testing.T) {
	m := Message{
		Time: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Unit: 2,
		Readings: []bs1200.Reading{
			{Unit: 2, Kind: bs1200.CellVoltage, Channel: 1, Value: 2.5, Raw: 25000},
		},
		Status: NewStatus(bs1200.SystemStatus{Unit: 2, FanRaw: 0, Temperatures: [3]int{30, 31, 32}}),
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "2024-05-01T08:00:00Z", got["time"])
	assert.Equal(t, float64(2), got["unit"])
	r := got["readings"].([]any)[0].(map[string]any)
	assert.Equal(t, "cell voltage", r["kind"])
	assert.Equal(t, 2.5, r["value"])
	st := got["status"].(map[string]any)
	assert.Equal(t, true, st["fan_fault"])

	b, err = json.Marshal(Message{Unit: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "status")
}

func TestNewPublisherUnreachable(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewPublisher(ctx, Options{Addr: "127.0.0.1:1", Channel: "x"}, log)
	assert.Error(t, err)
}
