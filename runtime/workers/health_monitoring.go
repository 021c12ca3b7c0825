package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

// HealthMonitoringWorker periodically logs a snapshot of the relay counters
// and warns when the process gets close to its resource limits.
type HealthMonitoringWorker struct {
	log              *slog.Logger
	stats            *observability.Stats
	onlineIdentities func() int
	metricInterval   time.Duration
	cpuThreshold     float64
	ramThreshold     float32
	reports          chan observability.Snapshot
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	stats *observability.Stats,
	onlineIdentities func() int,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:              log,
		stats:            stats,
		onlineIdentities: onlineIdentities,
		metricInterval:   metricInterval,
		cpuThreshold:     90,
		ramThreshold:     80,
	}
}

// WithReports publishes every snapshot to reports as well, dropping it when nobody listens.
func (w *HealthMonitoringWorker) WithReports(reports chan observability.Snapshot) *HealthMonitoringWorker {
	w.reports = reports
	return w
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.report(ctx)
		}
	}
}

func (w *HealthMonitoringWorker) report(ctx context.Context) {
	snap := w.stats.Snapshot(w.onlineIdentities())

	w.log.Info("Relay health",
		"active_connections", snap.ActiveConnections,
		"online_identities", snap.OnlineIdentities,
		"messages_stored", snap.MessagesStored,
		"deliveries", snap.Deliveries,
		"routing_misses", snap.RoutingMisses,
		"rejected", snap.Rejected,
		"storage_failures", snap.StorageFailures,
		"goroutines", snap.Goroutines,
		"alloc_mem_mb", snap.AllocMemMb,
	)
	if snap.CPUPercent >= w.cpuThreshold {
		w.log.Warn("High CPU usage", "cpu_percent", snap.CPUPercent)
	}
	if snap.RAMPercent >= w.ramThreshold {
		w.log.Warn("High memory usage", "ram_percent", snap.RAMPercent)
	}

	if w.reports == nil {
		return
	}
	select {
	case <-ctx.Done():
	case w.reports <- snap:
	default:
		w.log.Debug("Health report lost")
	}
}
