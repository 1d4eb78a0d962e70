package capture

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roffe/gobs1200"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(FromFrame(bs1200.NewFrame(0x141, []byte{1, 2, 3}, bs1200.Outgoing), at)))
	require.NoError(t, w.Write(FromFrame(bs1200.NewExtendedFrame(0x18DAF110, []byte{0xFF}, bs1200.Incoming), at.Add(time.Millisecond))))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(Record{}), os.ErrClosed)

	records, err := NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Time.Equal(at))
	assert.True(t, records[0].Outgoing)
	f := records[0].Frame()
	assert.Equal(t, uint32(0x141), f.Identifier)
	assert.Equal(t, []byte{1, 2, 3}, f.Data)
	assert.Equal(t, bs1200.Outgoing, f.Direction)

	f = records[1].Frame()
	assert.True(t, f.Extended)
	assert.Equal(t, bs1200.Incoming, f.Direction)
}

func TestReaderEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)

	_, err = NewReader(bytes.NewReader([]byte{0xA5, 0x01})).Next()
	assert.Error(t, err)
}

func TestTap(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	w.Tap(bs1200.NewFrame(0x281, []byte{0x0F}, bs1200.Incoming))

	rec, err := NewReader(&buf).Next()
	require.NoError(t, err)
	assert.True(t, rec.Time.Equal(fixed))
	assert.Equal(t, []byte{0x0F}, rec.Data)
}

func writeCapture(t *testing.T, frames ...*bs1200.Frame) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bus.cbor")
	w, err := Create(path)
	require.NoError(t, err)
	at := time.Now()
	for i, f := range frames {
		require.NoError(t, w.Write(FromFrame(f, at.Add(time.Duration(i)*time.Millisecond))))
	}
	require.NoError(t, w.Close())
	return path
}

func TestReplaySession(t *testing.T) {
	path := writeCapture(t,
		bs1200.NewFrame(0x101, []byte{1}, bs1200.Outgoing),
		bs1200.NewFrame(0x281, []byte{0x03}, bs1200.Incoming),
		bs1200.NewFrame(0x291, []byte{0x10, 30, 31, 32}, bs1200.Incoming),
	)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	err := bs1200.WithSession(context.Background(), "Replay", &bs1200.AdapterConfig{Port: path}, []int{1}, func(s *bs1200.Session) error {
		require.NoError(t, s.SetHILMode(context.Background(), 1, true), "sends are accepted")

		dio, err := s.ReadDigitalIO(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, dio[0].State)
		assert.True(t, dio[1].State)
		assert.False(t, dio[2].State)

		st, err := s.SystemStatus(context.Background(), 1)
		require.NoError(t, err)
		assert.False(t, st.FanFault())
		assert.Equal(t, [3]int{30, 31, 32}, st.Temperatures)
		return nil
	}, bs1200.WithLogger(logger), bs1200.WithScanTimeout(time.Second))
	require.NoError(t, err)
}

func TestReplayMissingFile(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	_, err := bs1200.Open(context.Background(), "Replay", &bs1200.AdapterConfig{Port: filepath.Join(t.TempDir(), "none")}, []int{1}, bs1200.WithLogger(logger))
	assert.ErrorIs(t, err, bs1200.ErrTransport)

	_, err = bs1200.Open(context.Background(), "Replay", &bs1200.AdapterConfig{}, []int{1}, bs1200.WithLogger(logger))
	assert.Error(t, err)
}

func TestReplayLargeCaptureKeepsEveryFrame(t *testing.T) {
	const n = 1500
	frames := make([]*bs1200.Frame, n)
	for i := range frames {
		frames[i] = bs1200.NewFrame(0x281, []byte{byte(i), byte(i >> 8)}, bs1200.Incoming)
	}
	path := writeCapture(t, frames...)

	dev, err := NewReplay(&bs1200.AdapterConfig{Port: path})
	require.NoError(t, err)
	require.NoError(t, dev.Open(context.Background()))
	defer dev.Close()

	// let the player fill the receive buffer before draining
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < n; i++ {
		select {
		case f := <-dev.Recv():
			require.Equal(t, []byte{byte(i), byte(i >> 8)}, f.Data, "frame %d", i)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d of %d frames", i, n)
		}
	}
}
