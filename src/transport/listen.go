package transport

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/RAIL-Suite/RAIL-sub001/src/protocol"
)

// Listen opens a listener on ep. A stale unix socket file left by a previous
// process is removed first.
func Listen(ep protocol.Endpoint) (net.Listener, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	if ep.Network == protocol.NetworkUnix {
		if err := os.Remove(ep.Address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("transport: remove stale socket %s: %w", ep.Address, err)
		}
	}
	ln, err := net.Listen(ep.Network, ep.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", ep, err)
	}
	return ln, nil
}

// EndpointOf describes the address a listener is bound to.
func EndpointOf(ln net.Listener) protocol.Endpoint {
	addr := ln.Addr()
	return protocol.Endpoint{Network: addr.Network(), Address: addr.String()}
}
