package scanner

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Prober issues bounded-timeout liveness checks against a single board.
// Every check retries once after a short delay and degrades all failures
// to false; probes never surface errors to the caller.
type Prober struct {
	Timeout    time.Duration
	RetryDelay time.Duration

	client *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		Timeout:    timeout,
		RetryDelay: 500 * time.Millisecond,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// CheckTCP reports whether a bare TCP connection to host:port can be
// established. No bytes are written: the boards' OTA listener speaks a
// binary protocol and treats stray application data (even an HTTP request
// line) as a fatal framing error.
func (p *Prober) CheckTCP(ctx context.Context, host string, port int) bool {
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.RetryDelay):
			case <-ctx.Done():
				return false
			}
		}

		dialer := net.Dialer{Timeout: p.Timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err == nil {
			conn.Close()
			return true
		}
	}
	return false
}

// CheckHTTP reports whether the board's web server answers a GET on /.
// Any HTTP status counts as reachable, including auth challenges; only a
// connection failure or timeout counts as unreachable.
func (p *Prober) CheckHTTP(ctx context.Context, host string, port int) bool {
	url := fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprintf("%d", port)))

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.RetryDelay):
			case <-ctx.Done():
				return false
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := p.client.Do(req)
		if err == nil {
			resp.Body.Close()
			return true
		}
	}
	return false
}
