// Package thread
// Author: momentics
//
// Endpoint spec parsing. A spec is "network/host:port" or a bare
// "host:port", defaulting to tcp. The spec string itself is opaque to
// the dispatcher; only workers interpret it.

package thread

import (
	"fmt"
	"net"
	"strings"

	"github.com/momentics/hioload-transport/api"
)

// parseSpec splits an endpoint spec into a network and a host:port.
func parseSpec(spec string) (network, hostport string, err error) {
	network, hostport = "tcp", spec
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		network, hostport = spec[:i], spec[i+1:]
	}
	if network == "" || hostport == "" {
		return "", "", fmt.Errorf("%w: %q", api.ErrBadSpec, spec)
	}
	if _, _, splitErr := net.SplitHostPort(hostport); splitErr != nil {
		return "", "", fmt.Errorf("%w: %q: %v", api.ErrBadSpec, spec, splitErr)
	}
	return network, hostport, nil
}
