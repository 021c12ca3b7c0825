package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStats_Snapshot(t *testing.T) {
	req := require.New(t)
	stats := NewStats()

	// Given some traffic
	stats.IncrConnectionsOpened()
	stats.IncrConnectionsOpened()
	stats.IncrConnectionsClosed()
	stats.IncrMessagesStored()
	stats.AddDeliveries(3)
	stats.IncrRoutingMisses()
	stats.IncrRejected()
	stats.IncrStorageFailures()

	// When taking a snapshot
	snap := stats.Snapshot(4)

	// Then counters are reported
	req.Equal("ok", snap.Status)
	req.Equal(uint64(1), snap.ActiveConnections)
	req.Equal(4, snap.OnlineIdentities)
	req.Equal(uint64(1), snap.MessagesStored)
	req.Equal(uint64(3), snap.Deliveries)
	req.Equal(uint64(1), snap.RoutingMisses)
	req.Equal(uint64(1), snap.Rejected)
	req.Equal(uint64(1), snap.StorageFailures)
	req.Positive(snap.Goroutines)
}
