package replication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// Handshake errors.
var (
	// ErrUnexpectedMessage is returned when the peer sends something
	// other than the next handshake step.
	ErrUnexpectedMessage = errors.New("replication: unexpected message during handshake")
	// ErrBaseDNMismatch is returned when the peers replicate different
	// domains.
	ErrBaseDNMismatch = errors.New("replication: base DN mismatch")
)

// HandshakeAsDirectory runs the directory server side: it sends local
// at version offered, waits for the replication server's reply and
// fixes the session version to the one both sides speak.
func (c *Conn) HandshakeAsDirectory(ctx context.Context, local *protocol.ServerStartMsg, offered protocol.Version) (*protocol.ReplServerStartMsg, error) {
	ctx, cancel := c.handshakeContext(ctx)
	defer cancel()

	timer := logging.StartTimer(c.logger, "handshake",
		logging.Operation("handshake"), logging.BaseDN(local.BaseDN), logging.ServerID(local.ServerID))
	start := time.Now()

	reply, negotiated, err := c.directoryHandshake(ctx, local, offered)
	c.finishHandshake(timer, start, negotiated, err)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Conn) directoryHandshake(ctx context.Context, local *protocol.ServerStartMsg, offered protocol.Version) (*protocol.ReplServerStartMsg, protocol.Version, error) {
	if err := c.sendAt(ctx, local, offered); err != nil {
		return nil, 0, err
	}

	m, err := c.Recv(ctx)
	if err != nil {
		return nil, 0, err
	}
	reply, ok := m.(*protocol.ReplServerStartMsg)
	if !ok {
		return nil, 0, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, m.Type(), protocol.TypeReplServerStart)
	}
	if reply.BaseDN != local.BaseDN {
		return nil, 0, fmt.Errorf("%w: sent %q, peer answered %q", ErrBaseDNMismatch, local.BaseDN, reply.BaseDN)
	}
	if reply.GenerationID != local.GenerationID {
		c.logger.Warn("generation id mismatch",
			logging.Int64("local_generation_id", local.GenerationID),
			logging.Int64("peer_generation_id", reply.GenerationID))
	}
	return reply, protocol.Negotiate(offered, reply.Version), nil
}

// HandshakeAsReplicationServer runs the replication server side: it
// waits for a directory server's start message, answers with local at
// the highest version both sides speak and fixes the session version.
// A peer replicating another domain is sent a StopMsg.
func (c *Conn) HandshakeAsReplicationServer(ctx context.Context, local *protocol.ReplServerStartMsg, supported protocol.Version) (*protocol.ServerStartMsg, error) {
	ctx, cancel := c.handshakeContext(ctx)
	defer cancel()

	timer := logging.StartTimer(c.logger, "handshake",
		logging.Operation("accept_handshake"), logging.BaseDN(local.BaseDN), logging.ServerID(local.ServerID))
	start := time.Now()

	peer, negotiated, err := c.replicationServerHandshake(ctx, local, supported)
	c.finishHandshake(timer, start, negotiated, err)
	if err != nil {
		return nil, err
	}
	return peer, nil
}

func (c *Conn) replicationServerHandshake(ctx context.Context, local *protocol.ReplServerStartMsg, supported protocol.Version) (*protocol.ServerStartMsg, protocol.Version, error) {
	m, err := c.Recv(ctx)
	if err != nil {
		return nil, 0, err
	}
	peer, ok := m.(*protocol.ServerStartMsg)
	if !ok {
		return nil, 0, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, m.Type(), protocol.TypeServerStart)
	}

	negotiated := protocol.Negotiate(supported, peer.Version)
	if peer.BaseDN != local.BaseDN {
		if err := c.sendAt(ctx, protocol.StopMsg{}, negotiated); err != nil {
			c.logger.Warn("failed to stop rejected peer", logging.Error(err))
		}
		return nil, 0, fmt.Errorf("%w: serving %q, peer asked for %q", ErrBaseDNMismatch, local.BaseDN, peer.BaseDN)
	}

	if err := c.sendAt(ctx, local, negotiated); err != nil {
		return nil, 0, err
	}
	return peer, negotiated, nil
}

func (c *Conn) handshakeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.handshakeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.handshakeTimeout)
}

func (c *Conn) finishHandshake(timer *logging.TimedOperation, start time.Time, negotiated protocol.Version, err error) {
	if c.metrics != nil {
		c.metrics.RecordHandshake(int(negotiated), time.Since(start), err)
	}
	if err != nil {
		timer.EndError(err)
		return
	}

	c.SetVersion(negotiated)
	if c.metrics != nil && c.registered.CompareAndSwap(false, true) {
		c.metrics.SessionOpened()
	}
	timer.End(logging.ProtocolVersion(int(negotiated)))
}

// OpenSession announces the directory server's status once the
// handshake is done and returns the topology the replication server
// answers with. V1 sessions have no such exchange.
func (c *Conn) OpenSession(ctx context.Context, start *protocol.StartSessionMsg) (*protocol.TopologyMsg, error) {
	if err := c.Send(ctx, start); err != nil {
		return nil, err
	}
	m, err := c.Recv(ctx)
	if err != nil {
		return nil, err
	}
	topo, ok := m.(*protocol.TopologyMsg)
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, m.Type(), protocol.TypeTopology)
	}
	c.logger.Info("session started",
		logging.Int("directory_servers", len(topo.DSInfos)),
		logging.Int("replication_servers", len(topo.RSInfos)))
	return topo, nil
}

// AcceptSession waits for the directory server's StartSessionMsg and
// answers with the topology built by topology.
func (c *Conn) AcceptSession(ctx context.Context, topology func(*protocol.StartSessionMsg) *protocol.TopologyMsg) (*protocol.StartSessionMsg, error) {
	m, err := c.Recv(ctx)
	if err != nil {
		return nil, err
	}
	start, ok := m.(*protocol.StartSessionMsg)
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedMessage, m.Type(), protocol.TypeStartSession)
	}
	if err := c.Send(ctx, topology(start)); err != nil {
		return nil, err
	}
	c.logger.Info("session accepted", logging.String("status", start.Status.String()))
	return start, nil
}
