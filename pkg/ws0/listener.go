package ws0

import (
	"fmt"
	"net"
	"strings"
)

// DefaultPort is the port used when an address does not specify one.
const DefaultPort = 8765

// Listen creates a listener for the given network and address. Only "tcp"
// (or empty, which means tcp) is supported; TLS termination is out of scope
// for this transport. An address without a port gets DefaultPort.
func Listen(network, addr string) (net.Listener, error) {
	switch strings.ToLower(network) {
	case "tcp", "":
		if !strings.Contains(addr, ":") {
			addr = fmt.Sprintf("%s:%d", addr, DefaultPort)
		}
		return net.Listen("tcp", addr)
	default:
		return nil, fmt.Errorf("ws0: unsupported network: %s", network)
	}
}
