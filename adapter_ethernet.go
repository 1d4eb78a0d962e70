package bs1200

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "Ethernet",
		Description:        "BS1200 in Ethernet mode, commands over TCP and telemetry over UDP, port is the unit IP",
		RequiresSerialPort: false,
		New:                NewEthernet,
	}); err != nil {
		panic(err)
	}
}

const (
	ethRecordSize  = 18
	defaultTCPPort = 12345
	defaultUDPPort = 54321
)

var errRecordSize = errors.New("short ethernet record")

// Ethernet records are 18 bytes: u32 BE identifier, extended flag, frame
// type, i32 BE data length, 8 data bytes.
func encodeRecord(f *Frame) []byte {
	rec := make([]byte, ethRecordSize)
	binary.BigEndian.PutUint32(rec[0:4], f.Identifier)
	rec[4] = boolByte(f.Extended)
	binary.BigEndian.PutUint32(rec[6:10], uint32(int32(f.DLC())))
	copy(rec[10:], f.Data)
	return rec
}

func decodeRecord(rec []byte) (*Frame, error) {
	if len(rec) < ethRecordSize {
		return nil, errRecordSize
	}
	n := int32(binary.BigEndian.Uint32(rec[6:10]))
	if n < 0 || n > 8 {
		return nil, fmt.Errorf("invalid data length: %d", n)
	}
	f := NewFrame(binary.BigEndian.Uint32(rec[0:4]), rec[10:10+n], Incoming)
	f.Extended = rec[4] != 0
	return f, nil
}

// decodeDatagram splits a telemetry datagram into frames. A trailing
// partial record is an error, the complete ones before it are returned.
func decodeDatagram(b []byte) ([]*Frame, error) {
	var out []*Frame
	for len(b) >= ethRecordSize {
		f, err := decodeRecord(b[:ethRecordSize])
		if err != nil {
			return out, err
		}
		out = append(out, f)
		b = b[ethRecordSize:]
	}
	if len(b) > 0 {
		return out, errRecordSize
	}
	return out, nil
}

type Ethernet struct {
	*BaseAdapter
	tcpPort int
	udpPort int

	wmu  sync.Mutex
	cmd  net.Conn
	tele net.PacketConn
	wg   sync.WaitGroup
}

func NewEthernet(cfg *AdapterConfig) (Adapter, error) {
	e := &Ethernet{BaseAdapter: NewBaseAdapter("Ethernet", cfg)}
	var err error
	if e.tcpPort, err = strconv.Atoi(e.cfg.option("tcp_port", strconv.Itoa(defaultTCPPort))); err != nil {
		return nil, fmt.Errorf("invalid tcp_port: %w", err)
	}
	if e.udpPort, err = strconv.Atoi(e.cfg.option("udp_port", strconv.Itoa(defaultUDPPort))); err != nil {
		return nil, fmt.Errorf("invalid udp_port: %w", err)
	}
	return e, nil
}

func (e *Ethernet) Open(ctx context.Context) error {
	if e.cfg.Port == "" {
		return fmt.Errorf("no unit address given")
	}
	var lc net.ListenConfig
	tele, err := lc.ListenPacket(ctx, "udp", ":"+strconv.Itoa(e.udpPort))
	if err != nil {
		return fmt.Errorf("listen telemetry: %w", err)
	}
	var d net.Dialer
	cmd, err := d.DialContext(ctx, "tcp", net.JoinHostPort(e.cfg.Port, strconv.Itoa(e.tcpPort)))
	if err != nil {
		tele.Close()
		return fmt.Errorf("dial command port: %w", err)
	}
	e.tele, e.cmd = tele, cmd
	e.wg.Add(1)
	go e.recvManager()
	e.Info(fmt.Sprintf("connected to %s, telemetry on udp/%d", cmd.RemoteAddr(), e.udpPort))
	return nil
}

func (e *Ethernet) Close() error {
	if e.closed() {
		return nil
	}
	e.BaseAdapter.Close()
	var err error
	if e.cmd != nil {
		err = e.cmd.Close()
	}
	if e.tele != nil {
		if terr := e.tele.Close(); terr != nil && err == nil {
			err = terr
		}
		e.wg.Wait()
	}
	return err
}

func (e *Ethernet) Send(ctx context.Context, f *Frame) error {
	if e.closed() {
		return ErrAdapterClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}
	e.wmu.Lock()
	defer e.wmu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		e.cmd.SetWriteDeadline(dl)
	} else {
		e.cmd.SetWriteDeadline(time.Time{})
	}
	if _, err := e.cmd.Write(encodeRecord(f)); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (e *Ethernet) recvManager() {
	defer e.wg.Done()
	buf := make([]byte, 1500)
	for {
		n, _, err := e.tele.ReadFrom(buf)
		if err != nil {
			if !e.closed() {
				e.Fatal(fmt.Errorf("read telemetry: %w", err))
			}
			return
		}
		frames, err := decodeDatagram(buf[:n])
		if err != nil {
			e.Warn(fmt.Sprintf("datagram of %d bytes: %v", n, err))
		}
		for _, f := range frames {
			e.Deliver(f)
		}
	}
}
