package bs1200

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Adapter is the bus transport a Session drives. Send returns once the
// frame has been handed to the link layer; Recv yields every inbound frame
// in arrival order until the adapter is closed.
type Adapter interface {
	Name() string
	Open(context.Context) error
	Close() error
	Send(context.Context, *Frame) error
	Recv() <-chan *Frame
	Err() <-chan error
	Event() <-chan Event
}

type AdapterInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*AdapterConfig) (Adapter, error)
}

func (a *AdapterInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", a.Name, a.Description, a.RequiresSerialPort)
}

type AdapterConfig struct {
	Debug         bool
	Port          string
	PortBaudrate  int
	CANRate       float64 // kbit/s
	CANFilter     []uint32
	UseExtendedID bool
	OnMessage     func(string)
	// adapter specific settings, e.g. tcp_port for the Ethernet adapter
	AdditionalConfig map[string]string
}

func (cfg *AdapterConfig) option(key, def string) string {
	if v, ok := cfg.AdditionalConfig[key]; ok && v != "" {
		return v
	}
	return def
}

func (cfg *AdapterConfig) accepts(id uint32) bool {
	if len(cfg.CANFilter) == 0 {
		return true
	}
	for _, f := range cfg.CANFilter {
		if f == id {
			return true
		}
	}
	return false
}

var (
	adapterMu  sync.RWMutex
	adapterMap = make(map[string]*AdapterInfo)
)

// NewAdapter creates the adapter registered under name. Lookup is case insensitive.
func NewAdapter(name string, cfg *AdapterConfig) (Adapter, error) {
	if cfg == nil {
		cfg = &AdapterConfig{}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s#%d %v\n", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	adapterMu.RLock()
	defer adapterMu.RUnlock()
	for n, info := range adapterMap {
		if strings.EqualFold(n, name) {
			return info.New(cfg)
		}
	}
	return nil, fmt.Errorf("unknown adapter %q", name)
}

func RegisterAdapter(adapter *AdapterInfo) error {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	if _, found := adapterMap[adapter.Name]; !found {
		adapterMap[adapter.Name] = adapter
		return nil
	}
	return fmt.Errorf("adapter %s already registered", adapter.Name)
}

func ListAdapterNames() []string {
	adapterMu.RLock()
	defer adapterMu.RUnlock()
	var out []string
	for name := range adapterMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListAdapters() []AdapterInfo {
	var out []AdapterInfo
	for _, name := range ListAdapterNames() {
		adapterMu.RLock()
		out = append(out, *adapterMap[name])
		adapterMu.RUnlock()
	}
	return out
}
