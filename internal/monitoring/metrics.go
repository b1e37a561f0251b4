package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

var (
	// SessionsStarted counts sessions that acquired a capture device.
	SessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "started_total",
		Help:      "Measurement sessions that acquired a capture device.",
	})

	// SessionsFinished counts sessions by how they ended: completed, stopped or replaced.
	SessionsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "finished_total",
		Help:      "Measurement sessions by outcome.",
	}, []string{"outcome"})

	// DeviceFailures counts Start calls rejected because the device could not be acquired.
	DeviceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "device_unavailable_total",
		Help:      "Session starts rejected because the capture device was unavailable.",
	})

	// FramesSkipped counts frames dropped because intensity extraction failed.
	FramesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "capture",
		Name:      "frames_skipped_total",
		Help:      "Frames skipped because no intensity sample could be extracted.",
	})

	// Readings counts heart-rate readings by provenance.
	Readings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ppg",
		Name:      "readings_total",
		Help:      "Heart-rate readings by provenance (measured, estimated, insufficient).",
	}, []string{"provenance"})

	// SessionSamples observes how many intensity samples a completed session collected.
	SessionSamples = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ppg",
		Name:      "session_samples",
		Help:      "Intensity samples collected per completed session.",
		Buckets:   prometheus.LinearBuckets(0, 75, 10),
	})

	// ManualEntries counts manual BPM submissions by result: accepted or rejected.
	ManualEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vitals",
		Name:      "manual_entries_total",
		Help:      "Manually entered heart-rate values by validation result.",
	}, []string{"result"})

	// SinkFailures counts result hand-offs that returned an error, by sink.
	SinkFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "vitals",
		Name:      "sink_failures_total",
		Help:      "Measurement hand-offs that failed, by sink.",
	}, []string{"sink"})
)

// Collectors returns every collector defined by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SessionsStarted,
		SessionsFinished,
		DeviceFailures,
		FramesSkipped,
		Readings,
		SessionSamples,
		ManualEntries,
		SinkFailures,
	}
}

// NewRegistry returns a registry holding the pipeline collectors plus the Go
// runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text or OpenMetrics format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
