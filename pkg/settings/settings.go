// Package settings reads and writes the unit configuration object used by
// the vendor tooling. Transferring it to a unit is not handled here.
package settings

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/roffe/gobs1200"
)

type Protocol string

const (
	ProtocolCAN      Protocol = "CAN"
	ProtocolEthernet Protocol = "Ethernet"
)

type Settings struct {
	Protocol  Protocol `json:"Protocol"`
	IPAddress string   `json:"IP_Address"`
	Ethernet  Ethernet `json:"Ethernet_Settings"`
	CAN       CAN      `json:"CAN_Settings"`
}

type Ethernet struct {
	TCPCmdPort        int     `json:"TCP_Cmd_Port"`
	TCPCmdIntervalMS  float64 `json:"TCP_Cmd_Interval_ms"`
	UDPReadPort       int     `json:"UDP_Read_Port"`
	UDPReadIntervalMS float64 `json:"UDP_Read_Interval_ms"`
}

type CAN struct {
	BoxID         int     `json:"Box_ID"`
	WritePeriodMS float64 `json:"Write_Period_ms"`
}

func Default() Settings {
	return Settings{
		Protocol:  ProtocolCAN,
		IPAddress: "192.168.1.103",
		Ethernet: Ethernet{
			TCPCmdPort:        12345,
			TCPCmdIntervalMS:  10,
			UDPReadPort:       54321,
			UDPReadIntervalMS: 5,
		},
		CAN: CAN{
			BoxID:         1,
			WritePeriodMS: 5,
		},
	}
}

func Load(path string) (Settings, error) {
	var s Settings
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, s.Validate()
}

func (s Settings) Save(path string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}

func (s Settings) Validate() error {
	switch s.Protocol {
	case ProtocolCAN, ProtocolEthernet:
	default:
		return fmt.Errorf("unknown protocol %q", s.Protocol)
	}
	if net.ParseIP(s.IPAddress) == nil {
		return fmt.Errorf("invalid IP address %q", s.IPAddress)
	}
	for name, p := range map[string]int{"TCP_Cmd_Port": s.Ethernet.TCPCmdPort, "UDP_Read_Port": s.Ethernet.UDPReadPort} {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s %d", name, p)
		}
	}
	if s.Ethernet.TCPCmdIntervalMS <= 0 || s.Ethernet.UDPReadIntervalMS <= 0 || s.CAN.WritePeriodMS <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if s.CAN.BoxID < bs1200.MinUnitID || s.CAN.BoxID > bs1200.MaxUnitID {
		return &bs1200.UnitIDError{ID: s.CAN.BoxID}
	}
	return nil
}

// PublishPeriod is the CAN write period in microseconds, the unit the
// device stores it in.
func (s Settings) PublishPeriod() int {
	return int(s.CAN.WritePeriodMS * 1000)
}

// ScanTimeout suggests a readback bound: a few publish periods of the
// active protocol, never below 100ms.
func (s Settings) ScanTimeout() time.Duration {
	period := time.Duration(s.PublishPeriod()) * time.Microsecond
	if s.Protocol == ProtocolEthernet {
		period = time.Duration(s.Ethernet.UDPReadIntervalMS * float64(time.Millisecond))
	}
	if d := 10 * period; d > 100*time.Millisecond {
		return d
	}
	return 100 * time.Millisecond
}

// Adapter returns the adapter name and configuration to reach the unit
// over its configured protocol. canPort is the CAN interface used when
// the unit speaks CAN.
func (s Settings) Adapter(canPort string) (string, *bs1200.AdapterConfig) {
	if s.Protocol == ProtocolEthernet {
		return "Ethernet", &bs1200.AdapterConfig{
			Port: s.IPAddress,
			AdditionalConfig: map[string]string{
				"tcp_port": strconv.Itoa(s.Ethernet.TCPCmdPort),
				"udp_port": strconv.Itoa(s.Ethernet.UDPReadPort),
			},
		}
	}
	return "SocketCAN", &bs1200.AdapterConfig{Port: canPort, CANRate: 1000}
}
