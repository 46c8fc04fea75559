// Package endpoint provides the host+port value type shared by both sides
// of the proxy (downstream listener, upstream target).
package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEndpoint is wrapped by every error Parse returns, so callers
// can errors.Is against it.
var ErrMalformedEndpoint = errors.New("endpoint: malformed endpoint")

// Endpoint is a parsed "host:port" address. Equality is structural.
type Endpoint struct {
	Host string
	Port uint16
}

// New builds an Endpoint directly, without going through string parsing.
func New(host string, port uint16) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// Parse splits "host:port" into an Endpoint. The host is passed through
// verbatim; name resolution is left to the socket layer. Parse fails if the
// colon is missing or the port is not a valid uint16.
func Parse(raw string) (Endpoint, error) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return Endpoint{}, fmt.Errorf("%w %q: missing colon", ErrMalformedEndpoint, raw)
	}

	host, portStr := raw[:idx], raw[idx+1:]
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w %q: invalid port: %w", ErrMalformedEndpoint, raw, err)
	}

	return Endpoint{Host: host, Port: uint16(port)}, nil
}

// String renders the Endpoint back as "host:port".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
