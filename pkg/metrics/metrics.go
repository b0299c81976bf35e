package metrics

import (
	"strconv"
	"time"
)

// Directions used as label values.
const (
	DirectionSend = "send"
	DirectionRecv = "recv"
)

// RecordEncode counts one encoded message.
func (r *Registry) RecordEncode(msgType string, version int, size int) {
	r.MessagesEncodedTotal.WithLabelValues(msgType, strconv.Itoa(version)).Inc()
	r.MessageSizeBytes.WithLabelValues(msgType, DirectionSend).Observe(float64(size))
}

// RecordEncodeError counts a message that had no wire form.
func (r *Registry) RecordEncodeError(msgType, reason string) {
	r.EncodeErrorsTotal.WithLabelValues(msgType, reason).Inc()
}

// RecordDecode counts one decoded message.
func (r *Registry) RecordDecode(msgType string, size int) {
	r.MessagesDecodedTotal.WithLabelValues(msgType).Inc()
	r.MessageSizeBytes.WithLabelValues(msgType, DirectionRecv).Observe(float64(size))
}

// RecordDecodeError counts a rejected buffer.
func (r *Registry) RecordDecodeError(msgType, reason string) {
	r.DecodeErrorsTotal.WithLabelValues(msgType, reason).Inc()
}

// RecordFrame counts transport bytes. raw is the message size before
// compression.
func (r *Registry) RecordFrame(direction string, compressed bool, wire, raw int) {
	compression := "none"
	if compressed {
		compression = "snappy"
		if raw > 0 {
			r.CompressionRatio.Observe(float64(wire) / float64(raw))
		}
	}
	r.FrameBytesTotal.WithLabelValues(direction, compression).Add(float64(wire))
}

// RecordHandshake records the outcome of a handshake. version is only
// counted when err is nil.
func (r *Registry) RecordHandshake(version int, duration time.Duration, err error) {
	if err != nil {
		r.HandshakesTotal.WithLabelValues("error").Inc()
		return
	}
	r.HandshakesTotal.WithLabelValues("ok").Inc()
	r.HandshakeDuration.Observe(duration.Seconds())
	r.NegotiatedVersions.WithLabelValues(strconv.Itoa(version)).Inc()
}

// SessionOpened and SessionClosed track live sessions.
func (r *Registry) SessionOpened() { r.SessionsActive.Inc() }
func (r *Registry) SessionClosed() { r.SessionsActive.Dec() }

// RecordHeartbeat counts a heartbeat in the given direction.
func (r *Registry) RecordHeartbeat(direction string) {
	r.HeartbeatsTotal.WithLabelValues(direction).Inc()
}

// RecordDomainState counts updates folded into a domain state.
func (r *Registry) RecordDomainState(advanced bool) {
	if advanced {
		r.DomainStateAdvances.Inc()
	}
}

// RecordReplicaOffline counts a replica offline announcement.
func (r *Registry) RecordReplicaOffline() {
	r.ReplicaOfflineTotal.Inc()
}

// RecordDropped counts a message withheld from a peer.
func (r *Registry) RecordDropped(msgType string) {
	r.MessagesDroppedTotal.WithLabelValues(msgType).Inc()
}
