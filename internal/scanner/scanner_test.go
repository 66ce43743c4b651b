package scanner

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"cactusd/internal/model"
)

// fakeRecorder collects status events in memory.
type fakeRecorder struct {
	mu     sync.Mutex
	events map[string]string
	count  int
}

func (f *fakeRecorder) RecordIfChanged(name, event, details string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events == nil {
		f.events = map[string]string{}
	}
	if f.events[name] == event {
		return false, nil
	}
	f.events[name] = event
	f.count++
	return true, nil
}

func testScanner() *Scanner {
	s := New(testProber(), nil, "127.0.0.1")
	return s
}

// serveOTA opens a plain TCP listener on the board's derived OTA port.
func serveOTA(t *testing.T, id int) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", 8200+id))
	if err != nil {
		t.Skipf("cannot bind derived OTA port: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return l
}

func TestScanDeviceSignals(t *testing.T) {
	const id = 91
	serveOTA(t, id)
	s := testScanner()

	dev := &model.Device{ID: id, Type: "esp32", Host: "127.0.0.1"}
	res := s.ScanDevice(context.Background(), "cactus-test", dev)

	if !res.OTAOnline {
		t.Error("ota signal should be online")
	}
	if res.WebOnline {
		t.Error("web signal should be offline, nothing listens on the web port")
	}
	if !res.Online {
		t.Error("online must be the OR of the signals")
	}
	if res.OTAPort != 8200+id || res.WebPort != 8000+id || res.APIPort != 6000+id {
		t.Errorf("derived ports wrong: %+v", res)
	}
}

func TestScanDeviceAPIOnlyWhenOTAUp(t *testing.T) {
	const id = 92
	s := testScanner()

	// No OTA listener: the API port must not even be probed; if it were,
	// a listener there would flip the signal.
	apiListener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", 6000+id))
	if err != nil {
		t.Skipf("cannot bind derived API port: %v", err)
	}
	defer apiListener.Close()

	dev := &model.Device{ID: id, Host: "127.0.0.1"}
	res := s.ScanDevice(context.Background(), "board", dev)
	if res.APIOnline {
		t.Error("api signal must stay false when the ota check failed")
	}
}

func TestScanDeviceInvalidID(t *testing.T) {
	s := testScanner()
	res := s.ScanDevice(context.Background(), "broken", &model.Device{ID: 0})
	if res.Online {
		t.Error("invalid id must scan as offline")
	}
	if res.Err == "" {
		t.Error("invalid id must carry the error text")
	}
}

func TestScanAllReturnsAllResults(t *testing.T) {
	s := testScanner()
	rec := &fakeRecorder{}
	s.Status = rec

	devices := map[string]*model.Device{}
	for i := 1; i <= 30; i++ {
		devices[fmt.Sprintf("board-%02d", i)] = &model.Device{ID: i, Host: "127.0.0.1"}
	}

	start := time.Now()
	results := s.ScanAll(context.Background(), devices)
	elapsed := time.Since(start)

	if len(results) != 30 {
		t.Fatalf("results = %d, want 30", len(results))
	}
	for _, res := range results {
		if res.Online {
			t.Errorf("%s reported online with nothing listening", res.Name)
		}
	}

	// Fan-out property: 30 boards must not take 30x a single probe.
	limit := 10 * (s.Prober.Timeout + s.Prober.RetryDelay)
	if elapsed > limit {
		t.Errorf("scan took %v, want well under %v", elapsed, limit)
	}

	if rec.count != 30 {
		t.Errorf("recorded %d transitions, want 30", rec.count)
	}
	if rec.events["board-01"] != model.StatusOffline {
		t.Errorf("board-01 event = %q", rec.events["board-01"])
	}
}

func TestScanAllStatusDedupAcrossCycles(t *testing.T) {
	s := testScanner()
	rec := &fakeRecorder{}
	s.Status = rec

	devices := map[string]*model.Device{
		"a": {ID: 93, Host: "127.0.0.1"},
	}
	s.ScanAll(context.Background(), devices)
	s.ScanAll(context.Background(), devices)

	if rec.count != 1 {
		t.Errorf("recorded %d transitions across two identical cycles, want 1", rec.count)
	}
}

func TestScanAllEmptyRegistry(t *testing.T) {
	if got := testScanner().ScanAll(context.Background(), nil); got != nil {
		t.Errorf("empty registry scan = %v, want nil", got)
	}
}

func TestDetails(t *testing.T) {
	res := model.ScanResult{OTAOnline: true, WebOnline: false, APIOnline: true}
	if got := Details(res); got != "OTA:OK WEB:FAIL API:OK" {
		t.Errorf("details = %q", got)
	}
}
