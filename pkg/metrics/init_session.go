package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSessionMetrics() {
	r.SessionsActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Sessions that completed a handshake and are not closed",
		},
	)

	r.HandshakesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "handshakes_total",
			Help:      "Session handshakes by outcome",
		},
		[]string{"result"}, // ok, error
	)

	r.HandshakeDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from sending the start message to agreeing a version",
			Buckets:   prometheus.DefBuckets,
		},
	)

	r.NegotiatedVersions = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "negotiated_versions_total",
			Help:      "Protocol versions agreed by handshakes",
		},
		[]string{"version"},
	)

	r.HeartbeatsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat and change time heartbeat messages",
		},
		[]string{"direction"}, // send, recv
	)

	r.FrameBytesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "frame_bytes_total",
			Help:      "Bytes on the transport after framing",
		},
		[]string{"direction", "compression"}, // compression: none, snappy
	)

	r.CompressionRatio = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "compression_ratio",
			Help:      "Framed size divided by message size for compressed frames",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	r.DomainStateAdvances = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "domain_state_advances_total",
			Help:      "Updates that moved the per-replica newest change forward",
		},
	)

	r.ReplicaOfflineTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "replica_offline_total",
			Help:      "Replica offline announcements received",
		},
	)

	r.MessagesDroppedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages not sent because the peer version cannot carry them",
		},
		[]string{"type"},
	)
}
