// Package addr derives network addresses for boards from their numeric IDs.
// Everything here is pure; no lookups are performed.
package addr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidID is returned for board IDs outside [1,99].
var ErrInvalidID = errors.New("board id must be between 1 and 99")

// Port bases. A board's ID is added to each.
const (
	WebPortBase = 8000
	OTAPortBase = 8200
	APIPortBase = 6000
)

// Prefixes stripped from a board name when deriving its hostname.
var hostnamePrefixes = []string{"cactus-", "esp32-", "esp-"}

// Ports holds the three well-known ports for a board.
type Ports struct {
	Web int
	OTA int
	API int
}

// Addr is a fully resolved board address.
type Addr struct {
	Host     string
	Hostname string
	Ports    Ports
}

// PortsFor returns the derived ports for a board ID.
func PortsFor(id int) (Ports, error) {
	if id < 1 || id > 99 {
		return Ports{}, fmt.Errorf("%w: got %d", ErrInvalidID, id)
	}
	return Ports{
		Web: WebPortBase + id,
		OTA: OTAPortBase + id,
		API: APIPortBase + id,
	}, nil
}

// IDFromOTAPort is the inverse of the OTA port derivation, used by
// network discovery to turn a responding port back into a candidate ID.
func IDFromOTAPort(port int) int {
	return port - OTAPortBase
}

// Hostname derives a board's hostname from its name and ID. An explicit
// override wins; otherwise one known prefix is stripped from the name and
// the zero-padded ID plus base host are appended.
func Hostname(name string, id int, override, baseHost string) string {
	if override != "" {
		return override
	}
	short := name
	for _, prefix := range hostnamePrefixes {
		if strings.HasPrefix(short, prefix) {
			short = short[len(prefix):]
			break
		}
	}
	return fmt.Sprintf("%s-%02d.%s", short, id, baseHost)
}

// Resolve maps a board's identity and optional overrides to a concrete
// address. hostOverride and hostnameOverride may be empty.
func Resolve(name string, id int, hostOverride, hostnameOverride, baseHost string) (Addr, error) {
	ports, err := PortsFor(id)
	if err != nil {
		return Addr{}, err
	}
	host := hostOverride
	if host == "" {
		host = baseHost
	}
	return Addr{
		Host:     host,
		Hostname: Hostname(name, id, hostnameOverride, baseHost),
		Ports:    ports,
	}, nil
}
