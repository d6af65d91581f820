// Package metrics registers the indexer's Prometheus gauges and counters
// on the shared prometheus client_golang registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WalletsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "midnight_indexer_wallets_connected",
		Help: "Number of wallet subscriptions currently attached to the indexer.",
	})

	CaughtUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "midnight_indexer_caught_up",
		Help: "1 when the replica's last-applied height matches the node's reported head, 0 otherwise.",
	})

	ReplicaHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "midnight_indexer_replica_height",
		Help: "Last block height applied to the in-memory ledger replica.",
	})

	BlocksApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midnight_indexer_blocks_applied_total",
		Help: "Total blocks successfully applied to the replica.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "midnight_indexer_events_published_total",
		Help: "Total events published on the in-process event bus, by topic.",
	}, []string{"topic"})

	WalletScanBatch = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "midnight_indexer_wallet_scan_batch_seconds",
		Help: "Time spent scanning one relevance-check batch for a wallet worker.",
	})
)
