package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultPort is the standard unencrypted MQTT port, used whenever an
// address carries no usable port.
const DefaultPort = 1883

// Address is a parsed broker location.
type Address struct {
	Host string
	Port uint16
}

// ParseAddress splits a "host:port" string.
//
// Anything that is not exactly one colon followed by a numeric port in
// range falls back to DefaultPort. When there is no single colon at all the
// whole input is kept verbatim as the host, so "onlyhost" parses to
// {onlyhost 1883}. A single colon with a bad port keeps the host part.
func ParseAddress(s string) Address {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Address{Host: s, Port: DefaultPort}
	}

	port, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return Address{Host: parts[0], Port: DefaultPort}
	}
	return Address{Host: parts[0], Port: uint16(port)}
}

// String returns the address in "host:port" form.
func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// BrokerURL returns the paho broker URL for the address.
func (a Address) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", a.Host, a.Port)
}
