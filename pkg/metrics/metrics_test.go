package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.Counter.GetValue()
}

func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	return m.Histogram.GetSampleCount()
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.MessagesEncodedTotal == nil || r.DecodeErrorsTotal == nil || r.SessionsActive == nil ||
		r.HandshakeDuration == nil || r.FrameBytesTotal == nil {
		t.Error("metrics not initialized")
	}
	if r.GetPrometheusRegistry() == nil {
		t.Error("Prometheus registry not initialized")
	}
}

func TestDefaultRegistry(t *testing.T) {
	if DefaultRegistry() != DefaultRegistry() {
		t.Error("DefaultRegistry() should return the same instance")
	}
}

func TestRecordEncodeDecode(t *testing.T) {
	r := NewRegistry()

	r.RecordEncode("MODIFY", 8, 120)
	r.RecordEncode("MODIFY", 8, 140)
	r.RecordEncode("MODIFY", 3, 90)
	r.RecordDecode("TOPOLOGY", 64)
	r.RecordDecodeError("TOPOLOGY", "truncated")
	r.RecordEncodeError("REPLICA_OFFLINE", "not_representable")

	if got := counterValue(t, r.MessagesEncodedTotal.WithLabelValues("MODIFY", "8")); got != 2 {
		t.Errorf("encoded MODIFY V8 = %v, want 2", got)
	}
	if got := counterValue(t, r.MessagesDecodedTotal.WithLabelValues("TOPOLOGY")); got != 1 {
		t.Errorf("decoded TOPOLOGY = %v, want 1", got)
	}
	if got := counterValue(t, r.DecodeErrorsTotal.WithLabelValues("TOPOLOGY", "truncated")); got != 1 {
		t.Errorf("decode errors = %v, want 1", got)
	}
	if got := counterValue(t, r.EncodeErrorsTotal.WithLabelValues("REPLICA_OFFLINE", "not_representable")); got != 1 {
		t.Errorf("encode errors = %v, want 1", got)
	}
	if got := histogramCount(t, r.MessageSizeBytes.WithLabelValues("MODIFY", DirectionSend)); got != 3 {
		t.Errorf("size samples = %d, want 3", got)
	}
}

func TestRecordFrame(t *testing.T) {
	r := NewRegistry()

	r.RecordFrame(DirectionSend, false, 101, 100)
	r.RecordFrame(DirectionSend, true, 41, 400)
	r.RecordFrame(DirectionSend, true, 11, 100)

	if got := counterValue(t, r.FrameBytesTotal.WithLabelValues(DirectionSend, "none")); got != 101 {
		t.Errorf("uncompressed bytes = %v", got)
	}
	if got := counterValue(t, r.FrameBytesTotal.WithLabelValues(DirectionSend, "snappy")); got != 52 {
		t.Errorf("compressed bytes = %v", got)
	}
	if got := histogramCount(t, r.CompressionRatio); got != 2 {
		t.Errorf("ratio samples = %d, want 2", got)
	}
}

func TestRecordHandshake(t *testing.T) {
	r := NewRegistry()

	r.RecordHandshake(4, 20*time.Millisecond, nil)
	r.RecordHandshake(8, 10*time.Millisecond, nil)
	r.RecordHandshake(0, time.Second, errors.New("timeout"))

	if got := counterValue(t, r.HandshakesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok handshakes = %v", got)
	}
	if got := counterValue(t, r.HandshakesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed handshakes = %v", got)
	}
	if got := counterValue(t, r.NegotiatedVersions.WithLabelValues("4")); got != 1 {
		t.Errorf("V4 negotiations = %v", got)
	}
	if got := histogramCount(t, r.HandshakeDuration); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
}

func TestSessionGauge(t *testing.T) {
	r := NewRegistry()
	r.SessionOpened()
	r.SessionOpened()
	r.SessionClosed()

	var m dto.Metric
	if err := r.SessionsActive.Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Gauge.GetValue() != 1 {
		t.Errorf("SessionsActive = %v, want 1", m.Gauge.GetValue())
	}
}

func TestDomainCounters(t *testing.T) {
	r := NewRegistry()
	r.RecordDomainState(true)
	r.RecordDomainState(false)
	r.RecordReplicaOffline()
	r.RecordHeartbeat(DirectionRecv)
	r.RecordDropped("REPLICA_OFFLINE")

	if got := counterValue(t, r.DomainStateAdvances); got != 1 {
		t.Errorf("advances = %v, want 1", got)
	}
	if got := counterValue(t, r.ReplicaOfflineTotal); got != 1 {
		t.Errorf("replica offline = %v", got)
	}
	if got := counterValue(t, r.HeartbeatsTotal.WithLabelValues(DirectionRecv)); got != 1 {
		t.Errorf("heartbeats = %v", got)
	}
	if got := counterValue(t, r.MessagesDroppedTotal.WithLabelValues("REPLICA_OFFLINE")); got != 1 {
		t.Errorf("dropped = %v", got)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.RecordEncode("HEARTBEAT", 8, 1)
			}
		}()
	}
	wg.Wait()

	if got := counterValue(t, r.MessagesEncodedTotal.WithLabelValues("HEARTBEAT", "8")); got != 1000 {
		t.Errorf("counter = %v, want 1000", got)
	}
}

func TestMetricNaming(t *testing.T) {
	r := NewRegistry()
	r.RecordEncode("MODIFY", 8, 10)
	r.RecordDecode("MODIFY", 10)
	r.RecordHandshake(8, time.Millisecond, nil)

	families, err := r.GetPrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families gathered")
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), Namespace+"_") {
			t.Errorf("Metric %s does not have %s_ prefix", f.GetName(), Namespace)
		}
	}
}

func BenchmarkRecordEncode(b *testing.B) {
	r := NewRegistry()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.RecordEncode("MODIFY", 8, 256)
	}
}
