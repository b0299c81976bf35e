package replication

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// pipeSocket is an in-memory Socket. Two ends made by newPipe deliver
// to each other.
type pipeSocket struct {
	in  chan []byte
	out chan []byte

	closed    chan struct{}
	closeOnce sync.Once

	recvDeadline atomic.Int64
	sendDeadline atomic.Int64
}

func newPipe() (*pipeSocket, *pipeSocket) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	a := &pipeSocket{in: ba, out: ab, closed: make(chan struct{})}
	b := &pipeSocket{in: ab, out: ba, closed: make(chan struct{})}
	return a, b
}

func (p *pipeSocket) Send(data []byte) error {
	frame := append([]byte(nil), data...)
	timer := time.NewTimer(time.Duration(p.sendDeadline.Load()))
	defer timer.Stop()
	select {
	case <-p.closed:
		return ErrSocketClosed
	case p.out <- frame:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

func (p *pipeSocket) Recv() ([]byte, error) {
	timer := time.NewTimer(time.Duration(p.recvDeadline.Load()))
	defer timer.Stop()
	select {
	case <-p.closed:
		return nil, ErrSocketClosed
	case frame := <-p.in:
		return frame, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (p *pipeSocket) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeSocket) SetRecvDeadline(d time.Duration) error {
	p.recvDeadline.Store(int64(d))
	return nil
}

func (p *pipeSocket) SetSendDeadline(d time.Duration) error {
	p.sendDeadline.Store(int64(d))
	return nil
}

// newConnPair returns two connected Conns over an in-memory pipe.
func newConnPair(t *testing.T, opts ...ConnOption) (*Conn, *Conn) {
	t.Helper()
	a, b := newPipe()
	opts = append([]ConnOption{WithPollInterval(5 * time.Millisecond)}, opts...)
	ca, cb := NewConn(a, opts...), NewConn(b, opts...)
	t.Cleanup(func() {
		ca.Close()
		cb.Close()
	})
	return ca, cb
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Observer) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.(prometheus.Metric).Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func sampleModify(c csn.CSN) *protocol.ModifyMsg {
	return protocol.NewModifyMsg(c, "uid=jdoe,ou=People,dc=example,dc=com", "3b1c8a6e-6d7f-4a52-9f2e-1a2b3c4d5e6f",
		[]ldap.Change{{
			Operation:    ldap.ReplaceAttribute,
			Modification: ldap.PartialAttribute{Type: "description", Vals: []string{"replicated"}},
		}})
}
