package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gapscan"

// Metrics collects pipeline counters. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	recordsApplied prometheus.Counter
	recordsDropped *prometheus.CounterVec
	sourcePolls    prometheus.Counter
	scans          prometheus.Counter
	scanDuration   prometheus.Histogram
	scanCandidates prometheus.Gauge
	trackedSymbols prometheus.Gauge
	rejections     *prometheus.CounterVec
	trades         *prometheus.CounterVec
	halted         prometheus.Gauge
}

// NewMetrics registers every collector on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		recordsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_applied_total",
			Help:      "Update records merged into the symbol store",
		}),
		recordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_dropped_total",
			Help:      "Update records dropped before merge",
		}, []string{"reason"}),
		sourcePolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "source_waits_total",
			Help:      "Times the ingestor waited for the source to produce data",
		}),
		scans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scans_total",
			Help:      "Completed scans",
		}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Duration of a scan",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		scanCandidates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "candidates",
			Help:      "Qualifying symbols in the last scan",
		}),
		trackedSymbols: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "tracked_symbols",
			Help:      "Symbols in the snapshot of the last scan",
		}),
		rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "rejections_total",
			Help:      "Symbols rejected by the qualifier",
		}, []string{"reason"}),
		trades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "trades_total",
			Help:      "Registered trade outcomes",
		}, []string{"outcome"}),
		halted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "halted",
			Help:      "1 when the risk controller is halted",
		}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncRecordApplied records a merged update.
func (m *Metrics) IncRecordApplied() {
	if m == nil {
		return
	}
	m.recordsApplied.Inc()
}

// IncRecordDropped records a dropped update.
func (m *Metrics) IncRecordDropped(reason string) {
	if m == nil {
		return
	}
	m.recordsDropped.WithLabelValues(reason).Inc()
}

// IncSourceWait records one wait for source data.
func (m *Metrics) IncSourceWait() {
	if m == nil {
		return
	}
	m.sourcePolls.Inc()
}

// ObserveScan records one scan.
func (m *Metrics) ObserveScan(d time.Duration, tracked, candidates int) {
	if m == nil {
		return
	}
	m.scans.Inc()
	m.scanDuration.Observe(d.Seconds())
	m.trackedSymbols.Set(float64(tracked))
	m.scanCandidates.Set(float64(candidates))
}

// IncRejection records a qualifier rejection.
func (m *Metrics) IncRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// IncTrade records a trade outcome, "win", "loss" or "flat".
func (m *Metrics) IncTrade(outcome string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(outcome).Inc()
}

// SetHalted mirrors the risk controller state.
func (m *Metrics) SetHalted(halted bool) {
	if m == nil {
		return
	}
	if halted {
		m.halted.Set(1)
		return
	}
	m.halted.Set(0)
}
