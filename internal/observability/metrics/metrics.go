package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "bridge_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	ingestMessages *prometheus.CounterVec
	ingestDropped  *prometheus.CounterVec

	storageErrors *prometheus.CounterVec

	alertsRaised *prometheus.CounterVec

	cloudConnected prometheus.Gauge
	cloudPublishes *prometheus.CounterVec

	bufferDepth   prometheus.Gauge
	bufferDropped prometheus.Counter

	replaySynced  *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec

	commandsHandled *prometheus.CounterVec
)

// Init registers bridge metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Total inbound device messages by result",
			},
			[]string{"result"},
		)
		ingestDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_dropped_total",
				Help: "Total inbound device messages dropped by reason",
			},
			[]string{"reason"},
		)

		storageErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "storage_errors_total",
				Help: "Total local storage failures by table",
			},
			[]string{"table"},
		)

		alertsRaised = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Total alerts raised by severity",
			},
			[]string{"severity"},
		)

		cloudConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cloud_connected",
				Help: "Whether the cloud broker connection is live (0/1)",
			},
		)
		cloudPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cloud_publish_total",
				Help: "Total cloud publish attempts by result",
			},
			[]string{"result"},
		)

		bufferDepth = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "buffer_depth",
				Help: "Items currently held in the in-memory replay ring",
			},
		)
		bufferDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "buffer_dropped_total",
				Help: "Buffered items evicted by ring overflow (data loss)",
			},
		)

		replaySynced = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "replay_synced_total",
				Help: "Store rows marked synced after replay by kind",
			},
			[]string{"kind"},
		)
		sweepDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "sweep_duration_seconds",
				Help:    "Replay sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sweep"},
		)

		commandsHandled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Total remote commands handled by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			ingestMessages,
			ingestDropped,
			storageErrors,
			alertsRaised,
			cloudConnected,
			cloudPublishes,
			bufferDepth,
			bufferDropped,
			replaySynced,
			sweepDuration,
			commandsHandled,
		)
	})
}

// IncIngest increments the inbound message counter.
func IncIngest(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(result).Inc()
	}
}

// IncIngestDropped increments the dropped message counter.
func IncIngestDropped(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestDropped != nil {
		ingestDropped.WithLabelValues(reason).Inc()
	}
}

// IncStorageError increments the storage failure counter.
func IncStorageError(table string) {
	if table == "" {
		table = "unknown"
	}
	if storageErrors != nil {
		storageErrors.WithLabelValues(table).Inc()
	}
}

// IncAlert increments the alert counter.
func IncAlert(severity string) {
	if alertsRaised != nil {
		alertsRaised.WithLabelValues(severity).Inc()
	}
}

// SetCloudConnected records the cloud connectivity flag.
func SetCloudConnected(connected bool) {
	if cloudConnected == nil {
		return
	}
	if connected {
		cloudConnected.Set(1)
		return
	}
	cloudConnected.Set(0)
}

// IncCloudPublish increments the cloud publish counter.
func IncCloudPublish(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if cloudPublishes != nil {
		cloudPublishes.WithLabelValues(result).Inc()
	}
}

// SetBufferDepth records the current ring depth.
func SetBufferDepth(depth int) {
	if bufferDepth != nil {
		bufferDepth.Set(float64(depth))
	}
}

// IncBufferDropped counts a ring overflow eviction.
func IncBufferDropped() {
	if bufferDropped != nil {
		bufferDropped.Inc()
	}
}

// AddReplaySynced counts rows marked synced after a successful replay.
func AddReplaySynced(kind string, n int) {
	if n <= 0 {
		return
	}
	if replaySynced != nil {
		replaySynced.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveSweep records a sweep duration.
func ObserveSweep(sweep string, duration time.Duration) {
	if sweep == "" {
		sweep = "unknown"
	}
	if sweepDuration != nil {
		sweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	}
}

// IncCommand increments the remote command counter.
func IncCommand(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if commandsHandled != nil {
		commandsHandled.WithLabelValues(result).Inc()
	}
}
