package replication

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

const directoryYAML = `
base_dn: dc=example,dc=com
server_id: 1
server_url: ldap://ds1.example.com:389
generation_id: 4242
protocol_version: 6
peers:
  - endpoint: tcp://rs1.example.com:8989
    server_id: 2
  - endpoint: tcp://rs2.example.com:8989
    server_id: 3
compression: snappy
compress_threshold: 256
heartbeat_interval: 5s
excluded_base_dns:
  - cn=changelog
log_level: debug
`

func TestParseSessionConfig(t *testing.T) {
	cfg, err := ParseSessionConfig(strings.NewReader(directoryYAML))
	require.NoError(t, err)

	assert.Equal(t, "dc=example,dc=com", cfg.BaseDN)
	assert.Equal(t, protocol.V6, cfg.Version())
	assert.Len(t, cfg.Peers, 2)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatTimeout())
	assert.Equal(t, 256, cfg.GetCompressThreshold())
	assert.Equal(t, logging.DebugLevel, cfg.LogLevel)

	// untouched keys keep their defaults
	defaults := DefaultSessionConfig()
	assert.Equal(t, defaults.WindowSize, cfg.WindowSize)
	assert.Equal(t, defaults.HandshakeTimeout, cfg.HandshakeTimeout)
	assert.Equal(t, "nng", cfg.Transport)
}

func TestDefaultSessionConfigIsFresh(t *testing.T) {
	a := DefaultSessionConfig()
	a.WindowSize = 1
	a.ExcludedBaseDNs = append(a.ExcludedBaseDNs, "cn=changelog")

	b := DefaultSessionConfig()
	assert.Equal(t, 100, b.WindowSize)
	assert.Empty(t, b.ExcludedBaseDNs)

	// helpers build on the defaults and expose the pointer methods
	ds := directoryConfig()
	assert.Equal(t, protocol.Current, ds.ServerStartMsg(nil).Version)
	assert.Equal(t, 2, replicationServerConfig().ReplServerStartMsg(nil).ServerID)
}

func TestParseSessionConfigDefaultsLogLevel(t *testing.T) {
	cfg, err := ParseSessionConfig(strings.NewReader("base_dn: dc=x\nserver_id: 1\nlisten: inproc://rs\n"))
	require.NoError(t, err)
	assert.Equal(t, logging.InfoLevel, cfg.LogLevel)
}

func TestParseSessionConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", directoryYAML + "colour: blue\n", "colour"},
		{"bad log level", strings.Replace(directoryYAML, "log_level: debug", "log_level: loud", 1), "loud"},
		{"bad duration", strings.Replace(directoryYAML, "heartbeat_interval: 5s", "heartbeat_interval: soon", 1), "time.Duration"},
		{"bad base dn", strings.Replace(directoryYAML, "base_dn: dc=example,dc=com", "base_dn: example.com", 1), "base_dn"},
		{"version too new", strings.Replace(directoryYAML, "protocol_version: 6", "protocol_version: 9", 1), "protocol_version"},
		{"bad endpoint", strings.Replace(directoryYAML, "tcp://rs2.example.com:8989", "rs2.example.com", 1), "peers[1].endpoint"},
		{"duplicate peer", strings.Replace(directoryYAML, "server_id: 3", "server_id: 2", 1), "listed twice"},
		{"peer reuses local id", strings.Replace(directoryYAML, "server_id: 3", "server_id: 1", 1), "reuses local server id"},
		{"no endpoints", "base_dn: dc=x\nserver_id: 1\n", "either listen or at least one peer"},
		{"heartbeat too fast", strings.Replace(directoryYAML, "heartbeat_interval: 5s", "heartbeat_interval: 1ms", 1), "heartbeat_interval"},
		{"unknown compression", strings.Replace(directoryYAML, "compression: snappy", "compression: zstd", 1), "compression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSessionConfig(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSessionConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o600))

	cfg, err := LoadSessionConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.ServerID)

	_, err = LoadSessionConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSessionConfigApplyDefaults(t *testing.T) {
	cfg := SessionConfig{BaseDN: testBaseDN, ServerID: 1, Listen: "inproc://rs"}
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, int(protocol.Current), cfg.ProtocolVersion)
	assert.Equal(t, CompressionSnappy, cfg.Compression)
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
}

func TestSessionConfigCompressionOff(t *testing.T) {
	cfg := directoryConfig()
	cfg.Compression = CompressionNone
	assert.Zero(t, cfg.GetCompressThreshold())
	assert.NoError(t, cfg.Validate())
}

func TestSessionConfigMessages(t *testing.T) {
	cfg := directoryConfig()
	cfg.GroupID = 3
	state := csn.NewServerState()
	state.Update(csn.New(1000, 0, 1))

	start := cfg.ServerStartMsg(state)
	assert.Equal(t, protocol.Current, start.Version)
	assert.Equal(t, byte(3), start.GroupID)
	assert.Equal(t, int64(10000), start.HeartbeatInterval)
	assert.Same(t, state, start.ServerState)

	_, err := start.Bytes(cfg.Version())
	require.NoError(t, err)

	rs := replicationServerConfig().ReplServerStartMsg(state)
	assert.Equal(t, 5000, rs.DegradedStatusThreshold)

	session := cfg.StartSessionMsg(protocol.StatusDegraded)
	assert.Equal(t, protocol.StatusDegraded, session.Status)
}

func TestSessionConfigConnOptions(t *testing.T) {
	cfg := directoryConfig()
	a, _ := newPipe()
	conn := NewConn(a, cfg.ConnOptions(logging.NewNopLogger(), nil)...)
	defer conn.Close()

	assert.Equal(t, cfg.GetCompressThreshold(), conn.compressThreshold)
	assert.Equal(t, cfg.MaxMessageSize, conn.maxMessageSize)
	assert.Equal(t, cfg.HandshakeTimeout, conn.handshakeTimeout)
	assert.Nil(t, conn.metrics)
}
