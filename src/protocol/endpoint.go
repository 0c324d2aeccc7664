package protocol

import (
	"fmt"
	"strings"
)

// Networks accepted by Endpoint.
const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
)

// DefaultBrokerAddress is the well-known loopback address of the broker.
const DefaultBrokerAddress = "127.0.0.1:47800"

// Endpoint names a local stream endpoint a process listens on.
type Endpoint struct {
	Network string `json:"network"`
	Address string `json:"address"`
}

// DefaultBrokerEndpoint returns the well-known broker endpoint.
func DefaultBrokerEndpoint() Endpoint {
	return Endpoint{Network: NetworkTCP, Address: DefaultBrokerAddress}
}

// ParseEndpoint accepts "tcp://host:port", "unix:///path/to.sock" or a bare
// "host:port".
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	network, addr, found := strings.Cut(raw, "://")
	if !found {
		return Endpoint{Network: NetworkTCP, Address: raw}, nil
	}
	ep := Endpoint{Network: strings.ToLower(network), Address: addr}
	if err := ep.Validate(); err != nil {
		return Endpoint{}, err
	}
	return ep, nil
}

// Validate checks the network is supported and the address is present.
func (e Endpoint) Validate() error {
	switch e.Network {
	case NetworkTCP, NetworkUnix:
	default:
		return fmt.Errorf("unsupported endpoint network %q", e.Network)
	}
	if strings.TrimSpace(e.Address) == "" {
		return fmt.Errorf("endpoint address is required")
	}
	return nil
}

// IsZero reports whether the endpoint is unset.
func (e Endpoint) IsZero() bool {
	return e.Network == "" && e.Address == ""
}

func (e Endpoint) String() string {
	if e.IsZero() {
		return ""
	}
	return e.Network + "://" + e.Address
}
