// Package scanner probes board liveness, scans the whole fleet
// concurrently, and discovers unregistered boards on the network.
package scanner

import (
	"context"
	"fmt"
	"sync"

	"cactusd/internal/addr"
	"cactusd/internal/log"
	"cactusd/internal/model"
)

// StatusRecorder receives one event per scanned board after each cycle.
type StatusRecorder interface {
	RecordIfChanged(name, event, details string) (bool, error)
}

// RegistryWriter folds scan discoveries back into the board registry.
type RegistryWriter interface {
	ApplyScan(results []model.ScanResult) (bool, error)
}

// Scanner fans liveness probes out across the fleet.
type Scanner struct {
	Prober   *Prober
	Metadata *MetadataClient
	BaseHost string

	// MaxConcurrent bounds simultaneous board probes. Boards are never
	// serialized below this bound, so a full-fleet scan completes in
	// roughly one probe timeout.
	MaxConcurrent int

	Status   StatusRecorder
	Registry RegistryWriter
}

func New(prober *Prober, metadata *MetadataClient, baseHost string) *Scanner {
	return &Scanner{
		Prober:        prober,
		Metadata:      metadata,
		BaseHost:      baseHost,
		MaxConcurrent: 20,
	}
}

// ScanDevice probes a single board: OTA and web ports concurrently, then
// the native API port only when the OTA listener answered (a board without
// an OTA listener is assumed to have no usable API either). When the web
// server is up and the registry has no cached MAC or sensors, metadata is
// fetched opportunistically; metadata failures are logged, never fatal.
func (s *Scanner) ScanDevice(ctx context.Context, name string, dev *model.Device) model.ScanResult {
	a, err := addr.Resolve(name, dev.ID, dev.Host, dev.Hostname, s.BaseHost)
	if err != nil {
		return model.ScanResult{
			Name: name,
			ID:   dev.ID,
			Type: dev.Type,
			Err:  err.Error(),
		}
	}

	res := model.ScanResult{
		Name:     name,
		ID:       dev.ID,
		Type:     dev.Type,
		Host:     a.Host,
		Hostname: a.Hostname,
		WebPort:  a.Ports.Web,
		OTAPort:  a.Ports.OTA,
		APIPort:  a.Ports.API,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.OTAOnline = s.Prober.CheckTCP(ctx, a.Host, a.Ports.OTA)
	}()
	go func() {
		defer wg.Done()
		res.WebOnline = s.Prober.CheckHTTP(ctx, a.Host, a.Ports.Web)
	}()
	wg.Wait()

	if res.OTAOnline {
		res.APIOnline = s.Prober.CheckTCP(ctx, a.Host, a.Ports.API)
	}
	res.Online = res.OTAOnline || res.WebOnline

	if res.WebOnline && s.Metadata != nil {
		s.fetchMetadata(ctx, a, dev, &res)
	}

	return res
}

func (s *Scanner) fetchMetadata(ctx context.Context, a addr.Addr, dev *model.Device, res *model.ScanResult) {
	if dev.MACAddress == "" {
		mac, err := s.Metadata.FetchMAC(ctx, a.Host, a.Ports.Web, dev.WebUsername, dev.WebPassword)
		if err != nil {
			log.Debug("MAC discovery failed", "board", res.Name, "error", err)
		} else {
			res.MAC = mac
		}
	}

	if len(dev.Sensors) == 0 {
		sensors, err := s.Metadata.DiscoverSensors(ctx, a.Host, a.Ports.Web, dev.WebUsername, dev.WebPassword)
		if err != nil {
			log.Debug("Sensor discovery failed", "board", res.Name, "error", err)
		} else {
			res.Sensors = sensors
		}
	}

	if len(dev.DeviceInfo) == 0 {
		info, err := s.Metadata.FetchDeviceInfo(ctx, a.Host, a.Ports.Web, dev.WebUsername, dev.WebPassword)
		if err != nil {
			log.Debug("Device info discovery failed", "board", res.Name, "error", err)
		} else {
			res.Info = info
		}
	}
}

// ScanAll probes every registered board concurrently and returns one
// result per board, including a synthesized offline result for any board
// whose probe pipeline faulted. After the batch completes, transitions are
// recorded in the status log and discoveries folded into the registry;
// neither failure aborts the scan.
func (s *Scanner) ScanAll(ctx context.Context, devices map[string]*model.Device) []model.ScanResult {
	if len(devices) == 0 {
		return nil
	}

	maxConcurrent := s.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 20
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]model.ScanResult, 0, len(devices))

	for name, dev := range devices {
		wg.Add(1)
		go func(name string, dev *model.Device) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			res := s.scanDeviceSafe(ctx, name, dev)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name, dev)
	}
	wg.Wait()

	s.recordTransitions(results)
	s.writeBack(results)

	return results
}

// scanDeviceSafe converts a panicking probe pipeline into an offline
// result so one board can never abort the batch.
func (s *Scanner) scanDeviceSafe(ctx context.Context, name string, dev *model.Device) (res model.ScanResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Board scan faulted", "board", name, "panic", r)
			res = model.ScanResult{
				Name: name,
				ID:   dev.ID,
				Type: dev.Type,
				Err:  fmt.Sprintf("scan faulted: %v", r),
			}
		}
	}()
	return s.ScanDevice(ctx, name, dev)
}

func (s *Scanner) recordTransitions(results []model.ScanResult) {
	if s.Status == nil {
		return
	}
	for _, res := range results {
		event := model.StatusOffline
		if res.Online {
			event = model.StatusOnline
		}
		changed, err := s.Status.RecordIfChanged(res.Name, event, Details(res))
		if err != nil {
			// Logging failures must not break scanning.
			log.Warn("Status log write failed", "board", res.Name, "error", err)
			continue
		}
		if changed {
			log.Info("Board status changed", "board", res.Name, "event", event)
		}
	}
}

func (s *Scanner) writeBack(results []model.ScanResult) {
	if s.Registry == nil {
		return
	}
	changed, err := s.Registry.ApplyScan(results)
	if err != nil {
		log.Warn("Registry writeback failed", "error", err)
		return
	}
	if changed {
		log.Debug("Registry updated from scan results")
	}
}

// Details renders the per-signal summary recorded with each transition.
func Details(res model.ScanResult) string {
	ok := func(b bool) string {
		if b {
			return "OK"
		}
		return "FAIL"
	}
	return fmt.Sprintf("OTA:%s WEB:%s API:%s",
		ok(res.OTAOnline), ok(res.WebOnline), ok(res.APIOnline))
}
