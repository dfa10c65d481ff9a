// Package stats exposes TSTP node activity as Prometheus metrics: duty
// cycle outcomes, forwarding decisions, and pool pressure, the kind of
// counters an operator would dashboard across a deployed mesh.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "tstp"
	subsystem = "node"
)

// Collector holds every Prometheus metric a running TSTP node exports.
type Collector struct {
	// MicroframesTX counts microframe trains transmitted.
	MicroframesTX prometheus.Counter
	// MicroframesRX counts individual microframes received, labeled by
	// whether they were judged relevant.
	MicroframesRX *prometheus.CounterVec
	// DataFramesTX counts full data frames transmitted.
	DataFramesTX prometheus.Counter
	// DataFramesRX counts full data frames received.
	DataFramesRX prometheus.Counter
	// CCABusy counts CCA attempts that found the channel occupied.
	CCABusy prometheus.Counter
	// BuffersExpired counts buffers dropped from the TX schedule past
	// their Expiry instead of being sent.
	BuffersExpired prometheus.Counter
	// BuffersForwarded counts buffers relayed by Router.Update.
	BuffersForwarded prometheus.Counter
	// PoolExhausted counts allocation failures against a node's fixed
	// buffer pool.
	PoolExhausted prometheus.Counter
	// ResponsesSent counts Smart Data Responses published, labeled by Unit.
	ResponsesSent *prometheus.CounterVec
	// ScheduleDepth reports how many buffers are currently queued for
	// transmission.
	ScheduleDepth prometheus.Gauge
}

// NewCollector builds a Collector and registers its metrics against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.MicroframesTX,
		c.MicroframesRX,
		c.DataFramesTX,
		c.DataFramesRX,
		c.CCABusy,
		c.BuffersExpired,
		c.BuffersForwarded,
		c.PoolExhausted,
		c.ResponsesSent,
		c.ScheduleDepth,
	)
	return c
}

func newMetrics() *Collector {
	return &Collector{
		MicroframesTX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "microframes_tx_total", Help: "Microframe trains transmitted.",
		}),
		MicroframesRX: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "microframes_rx_total", Help: "Microframes received, labeled by relevance.",
		}, []string{"relevant"}),
		DataFramesTX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "data_frames_tx_total", Help: "Data frames transmitted.",
		}),
		DataFramesRX: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "data_frames_rx_total", Help: "Data frames received.",
		}),
		CCABusy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "cca_busy_total", Help: "CCA attempts that found the channel occupied.",
		}),
		BuffersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "buffers_expired_total", Help: "Buffers dropped from the TX schedule past their expiry.",
		}),
		BuffersForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "buffers_forwarded_total", Help: "Buffers relayed toward their destination.",
		}),
		PoolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "pool_exhausted_total", Help: "Buffer allocation failures against the fixed pool.",
		}),
		ResponsesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "responses_sent_total", Help: "Smart Data Responses published, labeled by unit.",
		}, []string{"unit"}),
		ScheduleDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "schedule_depth", Help: "Buffers currently queued for transmission.",
		}),
	}
}
