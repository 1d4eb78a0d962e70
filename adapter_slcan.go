package bs1200

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.bug.st/serial"
)

type SLCan struct {
	*BaseAdapter
	port serial.Port
	wmu  sync.Mutex
	wg   sync.WaitGroup
}

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "SLCan",
		Description:        "Canable SLCan adapter",
		RequiresSerialPort: true,
		New:                NewSLCan,
	}); err != nil {
		panic(err)
	}
}

func NewSLCan(cfg *AdapterConfig) (Adapter, error) {
	return &SLCan{
		BaseAdapter: NewBaseAdapter("SLCan", cfg),
	}, nil
}

var slcanRates = map[float64]string{
	10:      "S0",
	20:      "S1",
	50:      "S2",
	100:     "S3",
	125:     "S4",
	250:     "S5",
	500:     "S6",
	750:     "S7",
	1000:    "S8",
	615.384: "S9",
}

func (sl *SLCan) Open(ctx context.Context) error {
	rate, ok := slcanRates[sl.cfg.CANRate]
	if !ok {
		return fmt.Errorf("unsupported CAN rate %g kbit/s", sl.cfg.CANRate)
	}
	mode := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(sl.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %v", sl.cfg.Port, err)
	}
	return sl.start(ctx, p, rate)
}

// start puts an opened port into bus mode. On failure the port is closed
// and released so a later Close does not touch it.
func (sl *SLCan) start(ctx context.Context, p serial.Port, rate string) error {
	if err := p.SetReadTimeout(3 * time.Millisecond); err != nil {
		p.Close()
		return err
	}
	sl.port = p

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	for _, cmd := range []string{"C", rate, "O"} {
		if err := sl.command(cmd); err != nil {
			p.Close()
			sl.port = nil
			return err
		}
		time.Sleep(10 * time.Millisecond)
	}

	sl.wg.Add(1)
	go sl.recvManager(ctx)
	return nil
}

func (sl *SLCan) command(cmd string) error {
	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	if sl.cfg.Debug {
		sl.Debug(">> " + cmd)
	}
	if _, err := sl.port.Write([]byte(cmd + "\r")); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	return nil
}

func (sl *SLCan) Close() error {
	if sl.closed() {
		return nil
	}
	sl.BaseAdapter.Close()
	if sl.port == nil {
		return nil
	}
	time.Sleep(10 * time.Millisecond)
	sl.command("C")
	time.Sleep(10 * time.Millisecond)
	err := sl.port.Close()
	sl.wg.Wait()
	return err
}

// Send writes one frame as 't' + 3 hex id + dlc + hex data + '\r', or
// 'T' with an 8 digit id for extended frames.
func (sl *SLCan) Send(ctx context.Context, frame *Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sl.closed() {
		return ErrAdapterClosed
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	buf := make([]byte, 0, 27)
	if frame.Extended {
		buf = append(buf, 'T')
		buf = append(buf, fmt.Sprintf("%08X", frame.Identifier)...)
	} else {
		id := frame.Identifier & maxStdID
		buf = append(buf, 't', nybbleToHex(byte(id>>8)), nybbleToHex(byte(id>>4)&0xF), nybbleToHex(byte(id)&0xF))
	}
	buf = append(buf, nybbleToHex(byte(frame.DLC())))
	for _, b := range frame.Data {
		buf = append(buf, nybbleToHex(b>>4), nybbleToHex(b&0xF))
	}
	buf = append(buf, '\r')

	sl.wmu.Lock()
	defer sl.wmu.Unlock()
	if _, err := sl.port.Write(buf); err != nil {
		return fmt.Errorf("failed to write to com port: %w", err)
	}
	if sl.cfg.Debug {
		sl.Debug(">> " + string(buf[:len(buf)-1]))
	}
	return nil
}

func nybbleToHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

func (sl *SLCan) recvManager(ctx context.Context) {
	defer sl.wg.Done()
	buf := make([]byte, 0, 1024)
	readBuf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.closed() {
				sl.Fatal(fmt.Errorf("failed to read com port: %w", err))
			}
			return
		}
		if n == 0 {
			if sl.closed() {
				return
			}
			continue
		}
		buf = sl.parse(buf, readBuf[:n])
	}
}

// parse processes the read data and returns any remaining partial data.
func (sl *SLCan) parse(buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		switch b {
		case '\r':
			if len(buf) == 0 {
				continue
			}
			switch buf[0] {
			case 't', 'T':
				f, err := decodeSLCanFrame(buf)
				if err != nil {
					sl.Warn(fmt.Sprintf("%v: %q", err, buf))
					break
				}
				if sl.cfg.Debug {
					sl.Debug("<< " + string(buf))
				}
				sl.Deliver(f)
			case 'z', 'Z':
				// transmit ack
			default:
				sl.Warn("unknown>> " + string(buf))
			}
			buf = buf[:0]
		case 0x07:
			sl.Warn("adapter rejected command")
			buf = buf[:0]
		default:
			buf = append(buf, b)
		}
	}
	return buf
}

var errShortSLCan = errors.New("short slcan frame")

func decodeSLCanFrame(buf []byte) (*Frame, error) {
	idLen := 3
	if buf[0] == 'T' {
		idLen = 8
	}
	if len(buf) < 2+idLen {
		return nil, errShortSLCan
	}
	id, err := strconv.ParseUint(string(buf[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %v", err)
	}
	dataLen, err := strconv.ParseUint(string(buf[1+idLen]), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data length: %v", err)
	}
	if dataLen > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dataLen)
	}
	start := 2 + idLen
	if len(buf) < start+int(dataLen)*2 {
		return nil, errShortSLCan
	}
	data, err := hex.DecodeString(string(buf[start : start+int(dataLen)*2]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %v", err)
	}
	f := NewFrame(uint32(id), data, Incoming)
	f.Extended = buf[0] == 'T'
	return f, nil
}
