package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/metrics"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// ErrConnClosed is returned by operations on a closed Conn.
var ErrConnClosed = errors.New("replication: connection closed")

const (
	defaultPollInterval = 100 * time.Millisecond
	minPollInterval     = time.Millisecond
)

// Conn carries replication messages over a Socket. Encoding and
// decoding use the version negotiated by the handshake; until then the
// newest version is assumed, which only matters for messages that do not
// describe their own layout.
//
// Send and Recv may be called from different goroutines.
type Conn struct {
	sock Socket
	id   string

	version    atomic.Int32
	lastRecv   atomic.Int64 // unix nanos
	closed     atomic.Bool
	registered atomic.Bool // counted in SessionsActive

	compressThreshold int
	maxMessageSize    int
	pollInterval      time.Duration
	handshakeTimeout  time.Duration

	logger  logging.Logger
	metrics *metrics.Registry

	sendMu sync.Mutex
	recvMu sync.Mutex
}

// ConnOption customises a Conn.
type ConnOption func(*Conn)

// WithLogger sets the logger; session fields are added to it.
func WithLogger(l logging.Logger) ConnOption {
	return func(c *Conn) { c.logger = l }
}

// WithMetrics records traffic in r. Without it nothing is recorded.
func WithMetrics(r *metrics.Registry) ConnOption {
	return func(c *Conn) { c.metrics = r }
}

// WithCompressThreshold compresses messages of at least n bytes.
// n <= 0 disables compression.
func WithCompressThreshold(n int) ConnOption {
	return func(c *Conn) { c.compressThreshold = n }
}

// WithMaxMessageSize rejects received messages larger than n bytes.
func WithMaxMessageSize(n int) ConnOption {
	return func(c *Conn) { c.maxMessageSize = n }
}

// WithPollInterval bounds how long a blocked Send or Recv waits before
// checking its context again.
func WithPollInterval(d time.Duration) ConnOption {
	return func(c *Conn) { c.pollInterval = d }
}

// WithHandshakeTimeout caps the handshake when the caller's context has
// no earlier deadline.
func WithHandshakeTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.handshakeTimeout = d }
}

// NewConn wraps sock. The Conn owns the socket and closes it on Close.
func NewConn(sock Socket, opts ...ConnOption) *Conn {
	c := &Conn{
		sock:         sock,
		id:           uuid.NewString(),
		pollInterval: defaultPollInterval,
		logger:       logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pollInterval < minPollInterval {
		c.pollInterval = minPollInterval
	}
	c.logger = c.logger.With(logging.Component("replication"), logging.SessionID(c.id))
	c.version.Store(int32(protocol.Current))
	c.lastRecv.Store(time.Now().UnixNano())
	return c
}

// ID returns the session id used in logs.
func (c *Conn) ID() string {
	return c.id
}

// Version returns the version messages are currently exchanged at.
func (c *Conn) Version() protocol.Version {
	return protocol.Version(c.version.Load())
}

// SetVersion fixes the session version, normally after a handshake.
func (c *Conn) SetVersion(v protocol.Version) {
	c.version.Store(int32(v))
}

// LastReceived returns when the last frame arrived.
func (c *Conn) LastReceived() time.Time {
	return time.Unix(0, c.lastRecv.Load())
}

// Logger returns the session logger.
func (c *Conn) Logger() logging.Logger {
	return c.logger
}

// Send encodes m at the session version and sends it. Messages the
// version cannot carry are dropped and reported with an error wrapping
// protocol.ErrNotRepresentable; the session stays usable.
func (c *Conn) Send(ctx context.Context, m protocol.Msg) error {
	return c.sendAt(ctx, m, c.Version())
}

func (c *Conn) sendAt(ctx context.Context, m protocol.Msg, v protocol.Version) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	name := m.Type().String()
	data, err := m.Bytes(v)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordEncodeError(name, errorReason(err))
			if errors.Is(err, protocol.ErrNotRepresentable) {
				c.metrics.RecordDropped(name)
			}
		}
		c.logger.Warn("message not sent", logging.MsgType(name), logging.ProtocolVersion(int(v)), logging.Error(err))
		return fmt.Errorf("send %s at %s: %w", name, v, err)
	}

	frame, compressed := buildFrame(data, c.compressThreshold)
	defer frame.Release()

	c.sendMu.Lock()
	err = c.retry(ctx, c.sock.SetSendDeadline, func() error { return c.sock.Send(frame.Bytes()) })
	c.sendMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}

	if c.metrics != nil {
		c.metrics.RecordEncode(name, int(v), len(data))
		c.metrics.RecordFrame(metrics.DirectionSend, compressed, frame.Len(), len(data))
		if m.Type() == protocol.TypeHeartbeat || m.Type() == protocol.TypeChangeTimeHeartbeat {
			c.metrics.RecordHeartbeat(metrics.DirectionSend)
		}
	}
	if c.logger.Enabled(logging.DebugLevel) {
		c.logger.Debug("sent", logging.MsgType(name), logging.ProtocolVersion(int(v)),
			logging.Bytes(frame.Len()), logging.Bool("compressed", compressed))
	}
	return nil
}

// Recv waits for the next message and decodes it at the session version.
func (c *Conn) Recv(ctx context.Context) (protocol.Msg, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	var frame []byte
	c.recvMu.Lock()
	err := c.retry(ctx, c.sock.SetRecvDeadline, func() error {
		var err error
		frame, err = c.sock.Recv()
		return err
	})
	c.recvMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("recv: %w", err)
	}
	c.lastRecv.Store(time.Now().UnixNano())

	data, compressed, err := parseFrame(frame, c.maxMessageSize)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordDecodeError("frame", errorReason(err))
		}
		return nil, err
	}

	v := c.Version()
	m, err := protocol.Decode(data, v)
	if err != nil {
		name := "unknown"
		if len(data) > 0 {
			name = protocol.MsgType(data[0]).String()
		}
		if c.metrics != nil {
			c.metrics.RecordDecodeError(name, errorReason(err))
		}
		c.logger.Warn("undecodable message", logging.MsgType(name), logging.ProtocolVersion(int(v)), logging.Error(err))
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordFrame(metrics.DirectionRecv, compressed, len(frame), len(data))
		c.metrics.RecordDecode(m.Type().String(), len(data))
		if m.Type() == protocol.TypeHeartbeat || m.Type() == protocol.TypeChangeTimeHeartbeat {
			c.metrics.RecordHeartbeat(metrics.DirectionRecv)
		}
	}
	if c.logger.Enabled(logging.DebugLevel) {
		c.logger.Debug("received", logging.MsgType(m.Type().String()), logging.ProtocolVersion(int(v)),
			logging.Bytes(len(frame)), logging.Bool("compressed", compressed))
	}
	return m, nil
}

// retry runs op with a deadline of at most one poll interval until it
// stops timing out or ctx ends.
func (c *Conn) retry(ctx context.Context, setDeadline func(time.Duration) error, op func() error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.closed.Load() {
			return ErrConnClosed
		}

		wait := c.pollInterval
		if deadline, ok := ctx.Deadline(); ok {
			wait = min(wait, max(time.Until(deadline), minPollInterval))
		}
		if err := setDeadline(wait); err != nil {
			return err
		}

		err := op()
		switch {
		case errors.Is(err, ErrTimeout):
			continue
		case errors.Is(err, ErrSocketClosed):
			return ErrConnClosed
		}
		return err
	}
}

// Close closes the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.registered.Load() && c.metrics != nil {
		c.metrics.SessionClosed()
	}
	c.logger.Info("session closed")
	return c.sock.Close()
}

// errorReason maps an error onto a short metric label.
func errorReason(err error) string {
	if errors.Is(err, ErrBadFrame) {
		return "bad_frame"
	}
	return protocol.Reason(err)
}
