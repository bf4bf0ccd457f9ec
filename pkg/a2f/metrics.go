package a2f

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "sessions_active",
			Help:      "Sessions currently attached to a connection",
		},
	)

	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Total sessions started",
		},
	)

	framesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "frames_sent_total",
			Help:      "Total animation frames sent to clients",
		},
	)

	audioSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "audio_samples_total",
			Help:      "Total audio samples accepted, gap fill included",
		},
	)

	clientErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "client_errors_total",
			Help:      "Total Error messages sent to clients",
		},
		[]string{"kind"},
	)

	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "flush_duration_seconds",
			Help:      "Duration of staged frame flushes, stream sync included",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pendingFrames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "visage",
			Subsystem: "server",
			Name:      "pending_frames",
			Help:      "Staged frames awaiting flush across all sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sessionsActive,
		sessionsTotal,
		framesSentTotal,
		audioSamplesTotal,
		clientErrorsTotal,
		flushDuration,
		pendingFrames,
	)
}
