package replication

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// ErrHeartbeatTimeout is returned by MonitorHeartbeats when the peer went
// quiet for longer than the allowed silence.
var ErrHeartbeatTimeout = errors.New("replication: peer missed heartbeats")

// HeartbeatPublisher sends a heartbeat on a session at a fixed interval.
// With a generator it sends change time heartbeats instead, so peers can
// order changes from other replicas while this one is idle.
type HeartbeatPublisher struct {
	conn      *Conn
	interval  time.Duration
	generator *csn.Generator

	state  runState
	wg     ManagedWaitGroup
	cancel context.CancelFunc
	sent   atomic.Uint64
}

// NewHeartbeatPublisher creates a publisher for conn. generator may be
// nil for plain heartbeats.
func NewHeartbeatPublisher(conn *Conn, interval time.Duration, generator *csn.Generator) *HeartbeatPublisher {
	return &HeartbeatPublisher{
		conn:      conn,
		interval:  interval,
		generator: generator,
	}
}

// Start begins publishing until ctx is done or Stop is called.
func (p *HeartbeatPublisher) Start(ctx context.Context) error {
	unlock, running := p.state.tryStart()
	if running {
		return ErrAlreadyRunning
	}
	defer unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.state.running.Store(true)
	p.wg.Go(func() { p.run(ctx) })
	return nil
}

// Stop halts the publisher and waits for it to exit.
func (p *HeartbeatPublisher) Stop() {
	unlock, stopped := p.state.tryStop()
	if stopped {
		return
	}
	defer unlock()

	p.cancel()
	p.wg.Wait()
	p.state.running.Store(false)
}

// IsRunning reports whether the publisher is running.
func (p *HeartbeatPublisher) IsRunning() bool {
	return p.state.IsRunning()
}

// Sent returns how many heartbeats went out.
func (p *HeartbeatPublisher) Sent() uint64 {
	return p.sent.Load()
}

func (p *HeartbeatPublisher) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.conn.Send(ctx, p.next()); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.conn.Logger().Warn("heartbeat not sent", logging.Error(err))
				if errors.Is(err, ErrConnClosed) {
					return
				}
				continue
			}
			p.sent.Add(1)
		}
	}
}

func (p *HeartbeatPublisher) next() protocol.Msg {
	if p.generator == nil {
		return protocol.HeartbeatMsg{}
	}
	return &protocol.ChangeTimeHeartbeatMsg{ChangeNumber: p.generator.Next()}
}

// MonitorHeartbeats watches conn until ctx ends or nothing has been
// received for longer than silence, in which case it returns
// ErrHeartbeatTimeout. It does not close the connection.
func MonitorHeartbeats(ctx context.Context, conn *Conn, silence time.Duration) error {
	ticker := time.NewTicker(max(silence/4, minPollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if quiet := now.Sub(conn.LastReceived()); quiet > silence {
				conn.Logger().Warn("peer silent", logging.Duration("silence", quiet))
				return ErrHeartbeatTimeout
			}
		}
	}
}
