package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "replication"

// Registry holds the codec and session metrics.
type Registry struct {
	// Codec
	MessagesEncodedTotal *prometheus.CounterVec
	MessagesDecodedTotal *prometheus.CounterVec
	EncodeErrorsTotal    *prometheus.CounterVec
	DecodeErrorsTotal    *prometheus.CounterVec
	MessageSizeBytes     *prometheus.HistogramVec

	// Session
	SessionsActive       prometheus.Gauge
	HandshakesTotal      *prometheus.CounterVec
	HandshakeDuration    prometheus.Histogram
	NegotiatedVersions   *prometheus.CounterVec
	HeartbeatsTotal      *prometheus.CounterVec
	FrameBytesTotal      *prometheus.CounterVec
	CompressionRatio     prometheus.Histogram
	DomainStateAdvances  prometheus.Counter
	ReplicaOfflineTotal  prometheus.Counter
	MessagesDroppedTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric registered. Each
// registry owns its own prometheus.Registry, so tests can create as
// many as they like.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initCodecMetrics()
	r.initSessionMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
