package scanner

import (
	"context"
	"time"

	"cactusd/internal/log"
	"cactusd/internal/model"
)

// RegistryLoader supplies the board set for each scan cycle. The registry
// is re-read every cycle so edits by external tooling are picked up.
type RegistryLoader interface {
	Load() (map[string]*model.Device, error)
}

// Service runs fleet scan cycles on a fixed interval. Cycles run strictly
// sequentially from one goroutine, so status-log writes within a cycle all
// observe the same last-status view.
type Service struct {
	Scanner  *Scanner
	Loader   RegistryLoader
	Interval time.Duration
	Ping     *PingChecker
}

func NewService(scanner *Scanner, loader RegistryLoader, interval time.Duration) *Service {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		Scanner:  scanner,
		Loader:   loader,
		Interval: interval,
		Ping:     NewPingChecker(),
	}
}

// Run scans immediately and then on every tick until the context ends.
func (sv *Service) Run(ctx context.Context) {
	log.Info("Scan service started", "interval", sv.Interval, "base_host", sv.Scanner.BaseHost)

	ticker := time.NewTicker(sv.Interval)
	defer ticker.Stop()

	sv.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Scan service stopped")
			return
		case <-ticker.C:
			sv.runCycle(ctx)
		}
	}
}

func (sv *Service) runCycle(ctx context.Context) {
	devices, err := sv.Loader.Load()
	if err != nil {
		log.Error("Loading registry failed, skipping cycle", "error", err)
		return
	}
	if len(devices) == 0 {
		log.Debug("No boards registered, skipping cycle")
		return
	}

	if sv.Ping != nil {
		if alive, checked := sv.Ping.Ping(sv.Scanner.BaseHost, 2*time.Second); checked && !alive {
			log.Warn("Base host not answering ICMP, boards may appear offline",
				"host", sv.Scanner.BaseHost)
		}
	}

	start := time.Now()
	results := sv.Scanner.ScanAll(ctx, devices)

	online := 0
	for _, res := range results {
		if res.Online {
			online++
		}
	}
	log.Info("Scan cycle completed",
		"boards", len(results), "online", online, "duration", time.Since(start).Round(time.Millisecond))
}
