package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/aayushadhikari7/aegis/internal/capability"
)

// NetProbeWire is the JSON wire format for a `net_probe` request from the
// guest.
type NetProbeWire struct {
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Protocol string `json:"protocol"`
}

const netProbeDialTimeout = 3 * time.Second

// netProbeEntry implements `net_probe`: the guest passes a packed ptr+len
// JSON NetProbeWire and receives 1 when the endpoint accepted a connection,
// 0 when it did not. Reachability only, no payload exchange.
func netProbeEntry() Entry {
	return Entry{
		Name:        "net_probe",
		ParamCount:  1,
		ResultCount: 1,
		Description: "probe a remote endpoint; requires a network grant covering host, port and protocol",
		RequestFor: func(hctx *Context, args []uint64) (capability.Request, error) {
			wire, err := readNetProbe(hctx, args[0])
			if err != nil {
				return nil, err
			}
			return capability.NetworkRequest{
				Host:     wire.Host,
				Port:     wire.Port,
				Protocol: capability.Protocol(wire.Protocol),
			}, nil
		},
		Impl: func(ctx context.Context, hctx *Context, args []uint64) ([]uint64, error) {
			wire, err := readNetProbe(hctx, args[0])
			if err != nil {
				return nil, err
			}
			network := "tcp"
			if wire.Protocol == string(capability.ProtocolUDP) {
				network = "udp"
			}
			addr := net.JoinHostPort(wire.Host, fmt.Sprintf("%d", wire.Port))
			dialer := net.Dialer{Timeout: netProbeDialTimeout}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return []uint64{0}, nil
			}
			conn.Close()
			return []uint64{1}, nil
		},
	}
}

func readNetProbe(hctx *Context, packed uint64) (*NetProbeWire, error) {
	raw, err := hctx.ReadBytes(packed)
	if err != nil {
		return nil, err
	}
	var wire NetProbeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("unmarshaling net probe request: %w", err)
	}
	return &wire, nil
}
