package replication

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/metrics"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

const testBaseDN = "dc=example,dc=com"

func directoryConfig() *SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.BaseDN = testBaseDN
	cfg.ServerID = 1
	cfg.ServerURL = "ldap://ds1.example.com:389"
	cfg.GenerationID = 4242
	cfg.Peers = []PeerConfig{{Endpoint: "tcp://rs1.example.com:8989", ServerID: 2}}
	return cfg
}

func replicationServerConfig() *SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.BaseDN = testBaseDN
	cfg.ServerID = 2
	cfg.ServerURL = "rs1.example.com:8989"
	cfg.GenerationID = 4242
	cfg.Listen = "tcp://0.0.0.0:8989"
	return cfg
}

type handshakeResult struct {
	peer *protocol.ServerStartMsg
	err  error
}

// runHandshake runs both sides over a pipe and returns the results.
func runHandshake(t *testing.T, ds, rs *Conn, dsVersion, rsVersion protocol.Version, dsCfg, rsCfg *SessionConfig) (*protocol.ReplServerStartMsg, error, handshakeResult) {
	t.Helper()
	ctx := testContext(t)

	rsState := csn.NewServerState()
	rsState.Update(csn.New(1700000000000, 3, 2))

	done := make(chan handshakeResult, 1)
	go func() {
		peer, err := rs.HandshakeAsReplicationServer(ctx, rsCfg.ReplServerStartMsg(rsState), rsVersion)
		done <- handshakeResult{peer, err}
	}()

	dsState := csn.NewServerState()
	dsState.Update(csn.New(1700000000001, 0, 1))
	reply, err := ds.HandshakeAsDirectory(ctx, dsCfg.ServerStartMsg(dsState), dsVersion)
	return reply, err, <-done
}

func TestHandshakeNegotiatesVersion(t *testing.T) {
	tests := []struct {
		name      string
		ds, rs    protocol.Version
		negotiate protocol.Version
	}{
		{"same version", protocol.V8, protocol.V8, protocol.V8},
		{"older replication server", protocol.V8, protocol.V4, protocol.V4},
		{"older directory server", protocol.V3, protocol.V8, protocol.V3},
		{"legacy directory server", protocol.V1, protocol.V8, protocol.V1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := metrics.NewRegistry()
			ds, rs := newConnPair(t, WithMetrics(reg))

			reply, err, res := runHandshake(t, ds, rs, tt.ds, tt.rs, directoryConfig(), replicationServerConfig())
			require.NoError(t, err)
			require.NoError(t, res.err)

			assert.Equal(t, tt.negotiate, ds.Version())
			assert.Equal(t, tt.negotiate, rs.Version())
			assert.Equal(t, tt.negotiate, reply.Version)
			assert.Equal(t, tt.ds, res.peer.Version)

			assert.Equal(t, 2, reply.ServerID)
			assert.Equal(t, 1, res.peer.ServerID)
			assert.Equal(t, int64(4242), reply.GenerationID)
			c, ok := reply.ServerState.Get(2)
			require.True(t, ok)
			assert.Equal(t, csn.New(1700000000000, 3, 2), c)

			if tt.negotiate == protocol.V1 {
				assert.Equal(t, -1, reply.DegradedStatusThreshold)
			} else {
				assert.Equal(t, 5000, reply.DegradedStatusThreshold)
			}

			assert.Equal(t, 2.0, counterValue(t, reg.HandshakesTotal.WithLabelValues("ok")))
			assert.Equal(t, 2.0, gaugeValue(t, reg.SessionsActive))
			require.NoError(t, ds.Close())
			assert.Equal(t, 1.0, gaugeValue(t, reg.SessionsActive))
		})
	}
}

func TestHandshakeBaseDNMismatch(t *testing.T) {
	reg := metrics.NewRegistry()
	ds, rs := newConnPair(t, WithMetrics(reg))

	rsCfg := replicationServerConfig()
	rsCfg.BaseDN = "dc=other,dc=com"

	_, err, res := runHandshake(t, ds, rs, protocol.V8, protocol.V8, directoryConfig(), rsCfg)

	assert.ErrorIs(t, res.err, ErrBaseDNMismatch)
	// the directory server is told to stop instead of getting a reply
	assert.ErrorIs(t, err, ErrUnexpectedMessage)
	assert.Equal(t, 2.0, counterValue(t, reg.HandshakesTotal.WithLabelValues("error")))
	assert.Zero(t, gaugeValue(t, reg.SessionsActive))
}

func TestHandshakeUnexpectedMessage(t *testing.T) {
	ctx := testContext(t)
	ds, rs := newConnPair(t)

	go func() {
		_, _ = rs.Recv(ctx)
		_ = rs.Send(ctx, protocol.HeartbeatMsg{})
	}()

	_, err := ds.HandshakeAsDirectory(ctx, directoryConfig().ServerStartMsg(nil), protocol.V8)
	assert.ErrorIs(t, err, ErrUnexpectedMessage)
}

func TestHandshakeTimeout(t *testing.T) {
	ds, _ := newConnPair(t, WithHandshakeTimeout(30*time.Millisecond))

	_, err := ds.HandshakeAsDirectory(context.Background(), directoryConfig().ServerStartMsg(nil), protocol.V8)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionStartExchangesTopology(t *testing.T) {
	ctx := testContext(t)
	ds, rs := newConnPair(t)
	ds.SetVersion(protocol.V5)
	rs.SetVersion(protocol.V5)

	topology := func(start *protocol.StartSessionMsg) *protocol.TopologyMsg {
		return &protocol.TopologyMsg{
			DSInfos: []protocol.DSInfo{{
				DSID: 1, RSID: 2, GenerationID: 4242, Status: start.Status,
				AssuredMode: start.AssuredMode, SafeDataLevel: start.SafeDataLevel,
				GroupID: 1, RefURLs: start.RefURLs, ProtocolVersion: protocol.V5,
			}},
			RSInfos: []protocol.RSInfo{{ID: 2, GenerationID: 4242, GroupID: 1, URL: "rs1.example.com:8989", Weight: 1}},
		}
	}

	accepted := make(chan *protocol.StartSessionMsg, 1)
	go func() {
		start, err := rs.AcceptSession(ctx, topology)
		if err == nil {
			accepted <- start
		}
		close(accepted)
	}()

	cfg := directoryConfig()
	cfg.RefURLs = []string{"ldap://ds1.example.com:389"}
	topo, err := ds.OpenSession(ctx, cfg.StartSessionMsg(protocol.StatusNormal))
	require.NoError(t, err)

	require.Len(t, topo.DSInfos, 1)
	assert.Equal(t, protocol.StatusNormal, topo.DSInfos[0].Status)
	assert.Equal(t, cfg.RefURLs, topo.DSInfos[0].RefURLs)
	require.Len(t, topo.RSInfos, 1)
	assert.Equal(t, "rs1.example.com:8989", topo.RSInfos[0].URL)

	start := <-accepted
	require.NotNil(t, start)
	assert.Equal(t, protocol.StatusNormal, start.Status)
}

func TestSessionStartNotAvailableAtV1(t *testing.T) {
	ctx := testContext(t)
	ds, _ := newConnPair(t)
	ds.SetVersion(protocol.V1)

	_, err := ds.OpenSession(ctx, directoryConfig().StartSessionMsg(protocol.StatusNormal))
	assert.ErrorIs(t, err, protocol.ErrNotRepresentable)
}

func TestHandshakeOverNNG(t *testing.T) {
	ctx := testContext(t)
	server, client := nngPair(t)
	rs := NewConn(server, WithPollInterval(5*time.Millisecond))
	ds := NewConn(client, WithPollInterval(5*time.Millisecond))
	defer rs.Close()
	defer ds.Close()

	done := make(chan error, 1)
	go func() {
		_, err := rs.HandshakeAsReplicationServer(ctx, replicationServerConfig().ReplServerStartMsg(nil), protocol.V6)
		done <- err
	}()

	_, err := ds.HandshakeAsDirectory(ctx, directoryConfig().ServerStartMsg(nil), protocol.V8)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, protocol.V6, ds.Version())

	require.NoError(t, ds.Send(ctx, sampleModify(csn.New(1700000000002, 0, 1))))
	m, err := rs.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeModify, m.Type())
}
