package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics for monitoring
var (
	PayoutsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrunner_payouts_sent_total",
		Help: "The total number of payout rows that reached sent",
	})

	PayoutsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payrunner_payouts_failed_total",
		Help: "The total number of payout rows that reached failed, by reason",
	}, []string{"reason"})

	// StoreWriteFailures counts status writes that failed after a broadcast
	// already happened. Every increment needs manual reconciliation.
	StoreWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payrunner_store_write_failures_total",
		Help: "Status writes that failed, leaving the store behind the chain",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payrunner_batch_duration_seconds",
		Help:    "Wall-clock duration of a full dispatcher run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	PendingPayouts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payrunner_pending_payouts",
		Help: "The number of pending payout rows fetched by the last run",
	})

	WalletSeqno = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payrunner_wallet_seqno",
		Help: "The treasury wallet sequence number as of the last broadcast",
	})
)

// Push delivers the run's metrics to a Pushgateway. The dispatcher is a
// run-to-completion job, so metrics are pushed at the end instead of scraped.
func Push(url string) error {
	if url == "" {
		return nil
	}
	return push.New(url, "payrunner").Gatherer(prometheus.DefaultGatherer).Push()
}
