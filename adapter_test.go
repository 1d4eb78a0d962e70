package bs1200

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestEthernetRecord(t *testing.T) {
	f := NewFrame(0x211, []byte{0xA8, 0x61, 0, 0, 0, 0, 0, 0}, Incoming)
	rec := encodeRecord(f)
	require.Len(t, rec, ethRecordSize)
	assert.Equal(t, []byte{0, 0, 0x02, 0x11, 0, 0, 0, 0, 0, 8, 0xA8, 0x61}, rec[:12])

	got, err := decodeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, f.Identifier, got.Identifier)
	assert.Equal(t, f.Data, got.Data)
	assert.False(t, got.Extended)
}

func TestEthernetDatagram(t *testing.T) {
	a := encodeRecord(NewFrame(0x281, []byte{0x05}, Incoming))
	b := encodeRecord(NewExtendedFrame(0x18DAF110, []byte{1, 2, 3}, Incoming))

	frames, err := decodeDatagram(append(append([]byte{}, a...), b...))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint32(0x281), frames[0].Identifier)
	assert.Equal(t, []byte{0x05}, frames[0].Data)
	assert.True(t, frames[1].Extended)
	assert.Equal(t, []byte{1, 2, 3}, frames[1].Data)

	frames, err = decodeDatagram(append(append([]byte{}, a...), b[:7]...))
	assert.ErrorIs(t, err, errRecordSize)
	assert.Len(t, frames, 1, "complete records before the tail are kept")

	bad := append([]byte{}, a...)
	bad[9] = 9
	_, err = decodeDatagram(bad)
	assert.Error(t, err)
}

func TestDecodeSLCanFrame(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		id       uint32
		data     []byte
		extended bool
		wantErr  bool
	}{
		{name: "standard", in: "t2818A861000000000000", id: 0x281, data: []byte{0xA8, 0x61, 0, 0, 0, 0, 0, 0}},
		{name: "empty", in: "t1000", id: 0x100, data: []byte{}},
		{name: "extended", in: "T18DAF1102AABB", id: 0x18DAF110, data: []byte{0xAA, 0xBB}, extended: true},
		{name: "short header", in: "t28", wantErr: true},
		{name: "short body", in: "t2812AA", wantErr: true},
		{name: "bad dlc", in: "t281F", wantErr: true},
		{name: "bad hex", in: "t2811ZZ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := decodeSLCanFrame([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, f.Identifier)
			assert.Equal(t, tt.data, f.Data)
			assert.Equal(t, tt.extended, f.Extended)
		})
	}
}

func TestListAdapters(t *testing.T) {
	names := ListAdapterNames()
	assert.Contains(t, names, "Virtual")
	assert.Contains(t, names, "Ethernet")
	_, err := NewAdapter("no such adapter", nil)
	assert.Error(t, err)
}

func TestVirtualOptions(t *testing.T) {
	_, err := NewVirtual(&AdapterConfig{AdditionalConfig: map[string]string{"simulate": "1,16"}})
	assert.ErrorIs(t, err, ErrInvalidUnitID)
	_, err = NewVirtual(&AdapterConfig{AdditionalConfig: map[string]string{"interval": "soon"}})
	assert.Error(t, err)
}

func TestVirtualSimulator(t *testing.T) {
	dev, err := NewVirtual(&AdapterConfig{AdditionalConfig: map[string]string{
		"simulate": "1",
		"interval": "2ms",
	}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := NewSession(ctx, dev, []int{1}, WithLogger(quietLogger()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetAnalogOutputs(ctx, 1, 1.25, 0))
	require.NoError(t, s.SetDigitalIO(ctx, 1, [8]bool{true, true}, [8]bool{true}))
	require.NoError(t, s.EnableAllCells(ctx, 1, true))
	require.NoError(t, s.SetAllCellVoltages(ctx, 1, 3.3))

	// telemetry queued before the setpoints may still be in flight
	assert.Eventually(t, func() bool {
		r, err := s.ReadAllCellVoltages(ctx, 1)
		return err == nil && r[11].Value > 3.29 && r[11].Value < 3.31
	}, time.Second, 5*time.Millisecond)

	ai, err := s.ReadAnalogInput(ctx, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, ai.Value, VoltsPerCount)

	amps, err := s.ReadAllCellCurrents(ctx, 1)
	require.NoError(t, err)
	for _, r := range amps {
		assert.InDelta(t, 0, r.Value, AmpsPerCount)
	}

	dio, err := s.ReadDigitalIO(ctx, 1)
	require.NoError(t, err)
	assert.True(t, dio[0].State)
	assert.False(t, dio[1].State, "output without enable stays low")

	st, err := s.SystemStatus(ctx, 1)
	require.NoError(t, err)
	assert.False(t, st.FanFault())
}

func TestSLCanParseAcrossReads(t *testing.T) {
	sl := &SLCan{BaseAdapter: NewBaseAdapter("SLCan", nil)}
	rest := sl.parse(nil, []byte("z\rt2812A8"))
	assert.Equal(t, []byte("t2812A8"), rest)
	rest = sl.parse(rest, []byte("61\r\x07t10"))
	assert.Equal(t, []byte("t10"), rest)

	require.Len(t, sl.Recv(), 1)
	f := <-sl.Recv()
	assert.Equal(t, uint32(0x281), f.Identifier)
	assert.Equal(t, []byte{0xA8, 0x61}, f.Data)
	assert.Equal(t, Incoming, f.Direction)

	evt := <-sl.Event()
	assert.Equal(t, EventTypeWarning, evt.Type)
}

type fakePort struct {
	mu       sync.Mutex
	writes   []string
	failAt   int // 1-based write that fails, 0 never
	closes   int
	isClosed bool
}

func (p *fakePort) SetMode(*serial.Mode) error { return nil }

func (p *fakePort) Read(b []byte) (int, error) {
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return 0, errors.New("port closed")
	}
	return 0, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isClosed {
		return 0, errors.New("port closed")
	}
	if p.failAt == len(p.writes)+1 {
		return 0, errors.New("write failed")
	}
	p.writes = append(p.writes, string(b))
	return len(b), nil
}

func (p *fakePort) ResetInputBuffer() error  { return nil }
func (p *fakePort) ResetOutputBuffer() error { return nil }
func (p *fakePort) SetDTR(bool) error        { return nil }
func (p *fakePort) SetRTS(bool) error        { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	p.isClosed = true
	return nil
}

func TestSLCanStart(t *testing.T) {
	p := &fakePort{}
	sl := &SLCan{BaseAdapter: NewBaseAdapter("SLCan", nil)}
	require.NoError(t, sl.start(context.Background(), p, "S8"))
	require.NoError(t, sl.Close())

	assert.Equal(t, []string{"C\r", "S8\r", "O\r", "C\r"}, p.writes)
	assert.Equal(t, 1, p.closes)
}

func TestSLCanStartFailureReleasesPort(t *testing.T) {
	p := &fakePort{failAt: 2}
	sl := &SLCan{BaseAdapter: NewBaseAdapter("SLCan", nil)}
	require.Error(t, sl.start(context.Background(), p, "S8"))
	assert.Nil(t, sl.port)

	require.NoError(t, sl.Close())
	assert.Equal(t, []string{"C\r"}, p.writes, "nothing written after the failed setup")
	assert.Equal(t, 1, p.closes)
}

func TestDeliverWait(t *testing.T) {
	base := NewBaseAdapter("test", nil)
	for i := 0; i < cap(base.recvChan); i++ {
		base.Deliver(NewFrame(0x281, nil, Incoming))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, base.DeliverWait(ctx, NewFrame(0x281, nil, Incoming)), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- base.DeliverWait(context.Background(), NewFrame(0x282, nil, Outgoing)) }()
	<-base.Recv()
	require.NoError(t, <-done)

	// full again, closing releases the waiter
	go func() { done <- base.DeliverWait(context.Background(), NewFrame(0x283, nil, Incoming)) }()
	time.Sleep(10 * time.Millisecond)
	base.Close()
	assert.ErrorIs(t, <-done, ErrAdapterClosed)
}
