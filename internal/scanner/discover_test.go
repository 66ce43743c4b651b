package scanner

import (
	"context"
	"fmt"
	"net"
	"testing"
)

func TestDiscoverFindsListeningPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:8203")
	if err != nil {
		t.Skipf("cannot bind port 8203: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := testScanner()
	devices := s.Discover(context.Background(), 8201, 8205, nil)

	if len(devices) != 1 {
		t.Fatalf("discovered %d devices, want 1: %+v", len(devices), devices)
	}
	d := devices[0]
	if d.ID != 3 {
		t.Errorf("id = %d, want 3", d.ID)
	}
	if d.OTAPort != 8203 || d.WebPort != 8003 || d.APIPort != 6003 {
		t.Errorf("ports = %+v", d)
	}
	if !d.IsNew {
		t.Error("unknown id must be flagged new")
	}
}

func TestDiscoverKnownID(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:8204")
	if err != nil {
		t.Skipf("cannot bind port 8204: %v", err)
	}
	defer l.Close()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := testScanner()
	devices := s.Discover(context.Background(), 8204, 8204, map[int]bool{4: true})
	if len(devices) != 1 {
		t.Fatalf("discovered %d devices, want 1", len(devices))
	}
	if devices[0].IsNew {
		t.Error("registered id must not be flagged new")
	}
}

func TestDiscoverAscendingOrder(t *testing.T) {
	var listeners []net.Listener
	for _, port := range []int{8215, 8211, 8219} {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			t.Skipf("cannot bind port %d: %v", port, err)
		}
		listeners = append(listeners, l)
		go func(l net.Listener) {
			for {
				conn, err := l.Accept()
				if err != nil {
					return
				}
				conn.Close()
			}
		}(l)
	}
	defer func() {
		for _, l := range listeners {
			l.Close()
		}
	}()

	s := testScanner()
	devices := s.Discover(context.Background(), 8210, 8220, nil)
	if len(devices) != 3 {
		t.Fatalf("discovered %d devices, want 3", len(devices))
	}
	for i := 1; i < len(devices); i++ {
		if devices[i].OTAPort <= devices[i-1].OTAPort {
			t.Errorf("results not in ascending port order: %+v", devices)
		}
	}
}

func TestDiscoverEmptyRange(t *testing.T) {
	s := testScanner()
	devices := s.Discover(context.Background(), 8290, 8292, nil)
	if len(devices) != 0 {
		t.Errorf("discovered %d devices on silent range", len(devices))
	}
}
