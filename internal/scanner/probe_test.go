package scanner

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testProber() *Prober {
	p := NewProber(500 * time.Millisecond)
	p.RetryDelay = 10 * time.Millisecond
	return p
}

func listenTCP(t *testing.T) (net.Listener, string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	host, portStr, _ := net.SplitHostPort(l.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return l, host, port
}

func TestCheckTCPOpenPort(t *testing.T) {
	l, host, port := listenTCP(t)

	received := make(chan int, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(time.Second))
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- n
	}()

	if !testProber().CheckTCP(context.Background(), host, port) {
		t.Fatal("open port reported unreachable")
	}

	// The OTA listener must not see any application data from a probe.
	select {
	case n := <-received:
		if n != 0 {
			t.Errorf("probe sent %d bytes, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener never observed the probe connection")
	}
}

func TestCheckTCPClosedPort(t *testing.T) {
	l, host, port := listenTCP(t)
	l.Close() // free the port so nothing listens there

	if testProber().CheckTCP(context.Background(), host, port) {
		t.Fatal("closed port reported reachable")
	}
}

func TestCheckTCPRetriesOnce(t *testing.T) {
	l, host, port := listenTCP(t)
	l.Close()

	p := testProber()
	start := time.Now()
	p.CheckTCP(context.Background(), host, port)
	// Two attempts with one backoff between them; refusals are immediate.
	if elapsed := time.Since(start); elapsed < p.RetryDelay {
		t.Errorf("probe returned after %v, expected at least one retry delay", elapsed)
	}
}

func TestCheckHTTP(t *testing.T) {
	statuses := []int{200, 401, 403, 500}
	for _, status := range statuses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		host, portStr, _ := net.SplitHostPort(srv.Listener.Addr().String())
		port, _ := strconv.Atoi(portStr)

		if !testProber().CheckHTTP(context.Background(), host, port) {
			t.Errorf("status %d should count as reachable", status)
		}
		srv.Close()
	}
}

func TestCheckHTTPUnreachable(t *testing.T) {
	l, host, port := listenTCP(t)
	l.Close()

	if testProber().CheckHTTP(context.Background(), host, port) {
		t.Fatal("connection failure should count as unreachable")
	}
}

func TestCheckTCPCancelledContext(t *testing.T) {
	l, host, port := listenTCP(t)
	l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if testProber().CheckTCP(ctx, host, port) {
		t.Fatal("cancelled probe reported reachable")
	}
}
