package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Protocol is a network protocol a grant may cover.
type Protocol string

const (
	ProtocolHTTP  Protocol = "http"
	ProtocolHTTPS Protocol = "https"
	ProtocolTCP   Protocol = "tcp"
	ProtocolUDP   Protocol = "udp"
)

// NetworkRequest is an attempt to reach a remote endpoint.
type NetworkRequest struct {
	Host     string
	Port     uint16
	Protocol Protocol
}

func (r NetworkRequest) Kind() Kind { return KindNetwork }

func (r NetworkRequest) Describe() string {
	return fmt.Sprintf("%s://%s:%d", r.Protocol, r.Host, r.Port)
}

// NetworkGrant permits outbound connections to hosts matching a pattern,
// restricted to a protocol set and optionally to a port allowlist. A pattern
// of the form "*.example.com" matches any subdomain and the bare domain
// itself; any other pattern matches exactly.
type NetworkGrant struct {
	hostPattern string
	protocols   map[Protocol]struct{}
	ports       map[uint16]struct{} // nil means any port
}

// NewNetworkGrant builds a grant for hostPattern over the given protocols.
// An empty ports slice places no port restriction.
func NewNetworkGrant(hostPattern string, protocols []Protocol, ports []uint16) (*NetworkGrant, error) {
	if hostPattern == "" {
		return nil, fmt.Errorf("network grant requires a host pattern")
	}
	if len(protocols) == 0 {
		return nil, fmt.Errorf("network grant for %q permits no protocols", hostPattern)
	}
	g := &NetworkGrant{
		hostPattern: strings.ToLower(hostPattern),
		protocols:   make(map[Protocol]struct{}, len(protocols)),
	}
	for _, p := range protocols {
		switch p {
		case ProtocolHTTP, ProtocolHTTPS, ProtocolTCP, ProtocolUDP:
			g.protocols[p] = struct{}{}
		default:
			return nil, fmt.Errorf("unknown protocol %q", p)
		}
	}
	if len(ports) > 0 {
		g.ports = make(map[uint16]struct{}, len(ports))
		for _, port := range ports {
			g.ports[port] = struct{}{}
		}
	}
	return g, nil
}

// HTTPSOnly grants HTTPS access on port 443 to each host pattern.
func HTTPSOnly(hostPatterns ...string) ([]*NetworkGrant, error) {
	grants := make([]*NetworkGrant, 0, len(hostPatterns))
	for _, pattern := range hostPatterns {
		g, err := NewNetworkGrant(pattern, []Protocol{ProtocolHTTPS}, []uint16{443})
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, nil
}

func (g *NetworkGrant) Kind() Kind { return KindNetwork }

func (g *NetworkGrant) Allows(req Request) bool {
	netReq, ok := req.(NetworkRequest)
	if !ok {
		return false
	}
	if _, ok := g.protocols[netReq.Protocol]; !ok {
		return false
	}
	if g.ports != nil {
		if _, ok := g.ports[netReq.Port]; !ok {
			return false
		}
	}
	return matchHost(g.hostPattern, strings.ToLower(netReq.Host))
}

func (g *NetworkGrant) Describe() string {
	protos := make([]string, 0, len(g.protocols))
	for p := range g.protocols {
		protos = append(protos, string(p))
	}
	sort.Strings(protos)
	desc := fmt.Sprintf("network %s to %s", strings.Join(protos, ","), g.hostPattern)
	if g.ports != nil {
		ports := make([]string, 0, len(g.ports))
		for port := range g.ports {
			ports = append(ports, fmt.Sprintf("%d", port))
		}
		sort.Strings(ports)
		desc += " ports " + strings.Join(ports, ",")
	}
	return desc
}

// matchHost matches a lowercase host against a lowercase pattern. Wildcard
// patterns cover both subdomains and the apex, so "*.example.com" allows
// "api.example.com" and "example.com" but never "notexample.com".
func matchHost(pattern, host string) bool {
	suffix, ok := strings.CutPrefix(pattern, "*.")
	if !ok {
		return host == pattern
	}
	if host == suffix {
		return true
	}
	return strings.HasSuffix(host, "."+suffix)
}
