package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vendorJSON = `{
    "Protocol": "Ethernet",
    "IP_Address": "10.0.0.7",
    "Ethernet_Settings": {
        "TCP_Cmd_Port": 2000,
        "TCP_Cmd_Interval_ms": 10,
        "UDP_Read_Port": 2001,
        "UDP_Read_Interval_ms": 20
    },
    "CAN_Settings": {
        "Box_ID": 3,
        "Write_Period_ms": 2.5
    }
}`

func TestLoadVendorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(vendorJSON), 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProtocolEthernet, s.Protocol)
	assert.Equal(t, "10.0.0.7", s.IPAddress)
	assert.Equal(t, 2001, s.Ethernet.UDPReadPort)
	assert.Equal(t, 3, s.CAN.BoxID)
	assert.Equal(t, 2500, s.PublishPeriod())
	assert.Equal(t, 200*time.Millisecond, s.ScanTimeout())

	name, ac := s.Adapter("can0")
	assert.Equal(t, "Ethernet", name)
	assert.Equal(t, "10.0.0.7", ac.Port)
	assert.Equal(t, "2000", ac.AdditionalConfig["tcp_port"])
	assert.Equal(t, "2001", ac.AdditionalConfig["udp_port"])

	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, s.Save(out))
	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, 5000, s.PublishPeriod())
	assert.Equal(t, 100*time.Millisecond, s.ScanTimeout())

	name, ac := s.Adapter("vcan0")
	assert.Equal(t, "SocketCAN", name)
	assert.Equal(t, "vcan0", ac.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Settings)
	}{
		{"protocol", func(s *Settings) { s.Protocol = "RS485" }},
		{"ip", func(s *Settings) { s.IPAddress = "10.0.0" }},
		{"tcp port", func(s *Settings) { s.Ethernet.TCPCmdPort = 70000 }},
		{"udp port", func(s *Settings) { s.Ethernet.UDPReadPort = 0 }},
		{"write period", func(s *Settings) { s.CAN.WritePeriodMS = 0 }},
		{"tcp interval", func(s *Settings) { s.Ethernet.TCPCmdIntervalMS = 0 }},
		{"udp interval", func(s *Settings) { s.Ethernet.UDPReadIntervalMS = 0 }},
		{"box id", func(s *Settings) { s.CAN.BoxID = 16 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.modify(&s)
			assert.Error(t, s.Validate())
			assert.Error(t, s.Save(filepath.Join(t.TempDir(), "x.json")))
		})
	}
}
