package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCodecMetrics() {
	r.MessagesEncodedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_encoded_total",
			Help:      "Messages encoded, by message type and protocol version",
		},
		[]string{"type", "version"},
	)

	r.MessagesDecodedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_decoded_total",
			Help:      "Messages decoded, by message type",
		},
		[]string{"type"},
	)

	r.EncodeErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "encode_errors_total",
			Help:      "Messages that could not be encoded",
		},
		[]string{"type", "reason"}, // not_representable, invalid_field, ...
	)

	r.DecodeErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_errors_total",
			Help:      "Buffers rejected by the decoder",
		},
		[]string{"type", "reason"},
	)

	r.MessageSizeBytes = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "message_size_bytes",
			Help:      "Encoded message size before framing",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8), // 16B .. 256KiB
		},
		[]string{"type", "direction"},
	)
}
