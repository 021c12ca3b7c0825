package observability

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats aggregates the relay counters. All methods are safe for concurrent use.
type Stats struct {
	startedAt time.Time

	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64
	messagesStored    atomic.Uint64
	deliveries        atomic.Uint64
	routingMisses     atomic.Uint64
	rejected          atomic.Uint64
	storageFailures   atomic.Uint64
}

// Snapshot is the JSON view served by the health endpoint.
type Snapshot struct {
	Status            string  `json:"status"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
	ActiveConnections uint64  `json:"active_connections"`
	OnlineIdentities  int     `json:"online_identities"`
	MessagesStored    uint64  `json:"messages_stored"`
	Deliveries        uint64  `json:"deliveries"`
	RoutingMisses     uint64  `json:"routing_misses"`
	Rejected          uint64  `json:"rejected"`
	StorageFailures   uint64  `json:"storage_failures"`
	Goroutines        int     `json:"goroutines"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	CPUPercent        float64 `json:"cpu_percent"`
	RAMPercent        float32 `json:"ram_percent"`
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) IncrConnectionsOpened() { s.connectionsOpened.Add(1) }

func (s *Stats) IncrConnectionsClosed() { s.connectionsClosed.Add(1) }

func (s *Stats) IncrMessagesStored() { s.messagesStored.Add(1) }

func (s *Stats) AddDeliveries(n int) { s.deliveries.Add(uint64(n)) }

func (s *Stats) IncrRoutingMisses() { s.routingMisses.Add(1) }

func (s *Stats) IncrRejected() { s.rejected.Add(1) }

func (s *Stats) IncrStorageFailures() { s.storageFailures.Add(1) }

// Snapshot reads the counters and samples the current process.
// Process metrics stay zero when the platform does not expose them.
func (s *Stats) Snapshot(onlineIdentities int) Snapshot {
	opened := s.connectionsOpened.Load()
	closed := s.connectionsClosed.Load()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snap := Snapshot{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(s.startedAt).Seconds()),
		ActiveConnections: opened - min(closed, opened),
		OnlineIdentities:  onlineIdentities,
		MessagesStored:    s.messagesStored.Load(),
		Deliveries:        s.deliveries.Load(),
		RoutingMisses:     s.routingMisses.Load(),
		Rejected:          s.rejected.Load(),
		StorageFailures:   s.storageFailures.Load(),
		Goroutines:        runtime.NumGoroutine(),
		AllocMemMb:        m.Alloc / 1024 / 1024,
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := p.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
		if ram, err := p.MemoryPercent(); err == nil {
			snap.RAMPercent = ram
		}
	}
	return snap
}
