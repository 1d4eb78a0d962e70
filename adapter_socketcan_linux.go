//go:build linux

package bs1200

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "SocketCAN",
		Description:        "Linux SocketCAN interface, port is the interface name",
		RequiresSerialPort: false,
		New:                NewSocketCAN,
	}); err != nil {
		panic(err)
	}
	for _, dev := range FindDevices() {
		if err := RegisterAdapter(&AdapterInfo{
			Name:               "SocketCAN " + dev,
			Description:        "Linux Driver",
			RequiresSerialPort: false,
			New:                NewSocketCANFromDevName(dev),
		}); err != nil {
			panic(err)
		}
	}
}

type SocketCAN struct {
	*BaseAdapter
	d    *candevice.Device
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver
	wg   sync.WaitGroup
}

func NewSocketCANFromDevName(dev string) func(cfg *AdapterConfig) (Adapter, error) {
	return func(cfg *AdapterConfig) (Adapter, error) {
		cfg.Port = dev
		return NewSocketCAN(cfg)
	}
}

func NewSocketCAN(cfg *AdapterConfig) (Adapter, error) {
	return &SocketCAN{
		BaseAdapter: NewBaseAdapter("SocketCAN", cfg),
	}, nil
}

// Open configures the bitrate and brings the interface up when the
// "configure" option is "true", which needs CAP_NET_ADMIN. Otherwise the
// interface is used as the system set it up.
func (a *SocketCAN) Open(ctx context.Context) error {
	if a.cfg.Port == "" {
		return fmt.Errorf("no interface name given")
	}
	if a.cfg.option("configure", "false") == "true" {
		d, err := candevice.New(a.cfg.Port)
		if err != nil {
			return err
		}
		if err := d.SetBitrate(uint32(a.cfg.CANRate * 1000)); err != nil {
			return err
		}
		if err := d.SetUp(); err != nil {
			return err
		}
		a.d = d
	}

	conn, err := socketcan.DialContext(ctx, "can", a.cfg.Port)
	if err != nil {
		return err
	}
	a.conn = conn
	a.tx = socketcan.NewTransmitter(conn)
	a.rx = socketcan.NewReceiver(conn)

	a.wg.Add(1)
	go a.recvManager()
	return nil
}

func (a *SocketCAN) Close() error {
	if a.closed() {
		return nil
	}
	a.BaseAdapter.Close()
	var err error
	if a.conn != nil {
		err = a.conn.Close()
		a.wg.Wait()
	}
	if a.d != nil {
		if derr := a.d.SetDown(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

func (a *SocketCAN) Send(ctx context.Context, f *Frame) error {
	if a.closed() {
		return ErrAdapterClosed
	}
	if err := f.Validate(); err != nil {
		return err
	}
	frame := can.Frame{
		ID:         f.Identifier,
		Length:     uint8(f.DLC()),
		IsExtended: f.Extended || a.cfg.UseExtendedID,
	}
	copy(frame.Data[:], f.Data)
	return a.tx.TransmitFrame(ctx, frame)
}

func (a *SocketCAN) recvManager() {
	defer a.wg.Done()
	for a.rx.Receive() {
		if a.rx.HasErrorFrame() {
			a.Warn(fmt.Sprintf("error frame: %v", a.rx.ErrorFrame()))
			continue
		}
		f := a.rx.Frame()
		if f.IsRemote {
			continue
		}
		frame := NewFrame(f.ID, f.Data[:f.Length], Incoming)
		frame.Extended = f.IsExtended
		a.Deliver(frame)
	}
	if err := a.rx.Err(); err != nil && !a.closed() {
		a.Fatal(fmt.Errorf("socketcan receive: %w", err))
	}
}

func FindDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
