package scanner

import (
	"context"
	"sort"
	"sync"

	"cactusd/internal/addr"
	"cactusd/internal/log"
	"cactusd/internal/model"
)

// Default discovery sweep over the OTA port block.
const (
	DefaultDiscoverFrom = 8201
	DefaultDiscoverTo   = 8299
	discoverBatchSize   = 20
)

// Discover sweeps candidate OTA ports on baseHost looking for boards that
// answer a bare TCP connection. Ports are probed in fixed-size batches so
// the sweep never holds more than discoverBatchSize connections at once;
// batches run sequentially, probes within a batch concurrently. Results
// come back in ascending port order, flagged IsNew when the derived ID is
// not in knownIDs.
func (s *Scanner) Discover(ctx context.Context, from, to int, knownIDs map[int]bool) []model.DiscoveredDevice {
	if from <= 0 {
		from = DefaultDiscoverFrom
	}
	if to <= 0 {
		to = DefaultDiscoverTo
	}

	var discovered []model.DiscoveredDevice
	var mu sync.Mutex

	for start := from; start <= to; start += discoverBatchSize {
		end := start + discoverBatchSize - 1
		if end > to {
			end = to
		}

		var wg sync.WaitGroup
		for port := start; port <= end; port++ {
			wg.Add(1)
			go func(port int) {
				defer wg.Done()

				if !s.Prober.CheckTCP(ctx, s.BaseHost, port) {
					return
				}
				id := addr.IDFromOTAPort(port)
				mu.Lock()
				discovered = append(discovered, model.DiscoveredDevice{
					ID:      id,
					Host:    s.BaseHost,
					OTAPort: port,
					WebPort: addr.WebPortBase + id,
					APIPort: addr.APIPortBase + id,
					IsNew:   !knownIDs[id],
				})
				mu.Unlock()
			}(port)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			log.Debug("Discovery cancelled", "last_port", end)
			return sortDiscovered(discovered)
		default:
		}
	}

	return sortDiscovered(discovered)
}

func sortDiscovered(devices []model.DiscoveredDevice) []model.DiscoveredDevice {
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].OTAPort < devices[j].OTAPort
	})
	return devices
}
