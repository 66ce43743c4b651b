package scanner

import (
	"net"
	"os"
	"time"

	"github.com/go-ping/ping"
)

// PingChecker performs a best-effort ICMP reachability check of the base
// host before a sweep, so "every board offline" can be told apart from
// "the DDNS host itself is down". The result is advisory only and never
// gates a scan.
type PingChecker struct {
	privileged bool
}

func NewPingChecker() *PingChecker {
	privileged := os.Geteuid() == 0 || canUseRawSocket()
	return &PingChecker{privileged: privileged}
}

// Ping reports whether the host answers ICMP. Without raw socket access
// the check is skipped and (false, false) is returned.
func (pc *PingChecker) Ping(host string, timeout time.Duration) (alive bool, checked bool) {
	if !pc.privileged {
		return false, false
	}

	pinger, err := ping.NewPinger(host)
	if err != nil {
		return false, false
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return false, false
	}
	return pinger.Statistics().PacketsRecv > 0, true
}

func canUseRawSocket() bool {
	conn, err := net.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
