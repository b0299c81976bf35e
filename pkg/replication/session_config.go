package replication

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/metrics"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
	"github.com/dd0wney/cluso-replication/pkg/validation"
)

// Compression settings.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
)

// PeerConfig names a replication server to connect to.
type PeerConfig struct {
	Endpoint string `yaml:"endpoint" validate:"required,endpoint"`
	ServerID int    `yaml:"server_id" validate:"serverid"`
}

// SessionConfig holds the settings of one replication domain on one
// server.
type SessionConfig struct {
	BaseDN       string `yaml:"base_dn" validate:"required,dn"`
	ServerID     int    `yaml:"server_id" validate:"serverid"`
	ServerURL    string `yaml:"server_url"`
	GroupID      int    `yaml:"group_id" validate:"min=0,max=255"`
	GenerationID int64  `yaml:"generation_id"`

	// ProtocolVersion is the highest version offered to peers.
	ProtocolVersion int `yaml:"protocol_version" validate:"min=1,max=8"`

	Transport string       `yaml:"transport" validate:"oneof=nng zmq"`
	Listen    string       `yaml:"listen" validate:"omitempty,endpoint"`
	Peers     []PeerConfig `yaml:"peers" validate:"dive"`

	Compression       string `yaml:"compression" validate:"oneof=none snappy"`
	CompressThreshold int    `yaml:"compress_threshold"`
	MaxMessageSize    int    `yaml:"max_message_size"`

	WindowSize              int `yaml:"window_size"`
	MaxReceiveQueue         int `yaml:"max_receive_queue"`
	MaxSendQueue            int `yaml:"max_send_queue"`
	DegradedStatusThreshold int `yaml:"degraded_status_threshold"`

	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	ChangeTimeHeartbeats bool          `yaml:"change_time_heartbeats"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`

	RefURLs         []string `yaml:"referral_urls"`
	ExcludedBaseDNs []string `yaml:"excluded_base_dns" validate:"dive,dn"`

	LogLevel logging.Level `yaml:"log_level"`
}

// DefaultSessionConfig returns default configuration
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		GroupID:                 1,
		ProtocolVersion:         int(protocol.Current),
		Transport:               "nng",
		Compression:             CompressionSnappy,
		CompressThreshold:       512,
		MaxMessageSize:          16 << 20,
		WindowSize:              100,
		MaxReceiveQueue:         10000,
		MaxSendQueue:            10000,
		DegradedStatusThreshold: 5000,
		HeartbeatInterval:       10 * time.Second,
		HandshakeTimeout:        30 * time.Second,
		PollInterval:            defaultPollInterval,
		LogLevel:                logging.InfoLevel,
	}
}

// ApplyDefaults applies default values to zero-valued fields
func (c *SessionConfig) ApplyDefaults() {
	defaults := DefaultSessionConfig()

	c.GroupID = validation.DefaultOrInt(c.GroupID, defaults.GroupID)
	c.ProtocolVersion = validation.DefaultOrInt(c.ProtocolVersion, defaults.ProtocolVersion)
	c.Transport = validation.DefaultOr(c.Transport, defaults.Transport)
	c.Compression = validation.DefaultOr(c.Compression, defaults.Compression)
	c.CompressThreshold = validation.DefaultOrInt(c.CompressThreshold, defaults.CompressThreshold)
	c.MaxMessageSize = validation.DefaultOrInt(c.MaxMessageSize, defaults.MaxMessageSize)
	c.WindowSize = validation.DefaultOrInt(c.WindowSize, defaults.WindowSize)
	c.MaxReceiveQueue = validation.DefaultOrInt(c.MaxReceiveQueue, defaults.MaxReceiveQueue)
	c.MaxSendQueue = validation.DefaultOrInt(c.MaxSendQueue, defaults.MaxSendQueue)
	c.DegradedStatusThreshold = validation.DefaultOrInt(c.DegradedStatusThreshold, defaults.DegradedStatusThreshold)
	c.HeartbeatInterval = validation.DefaultOrDuration(c.HeartbeatInterval, defaults.HeartbeatInterval)
	c.HandshakeTimeout = validation.DefaultOrDuration(c.HandshakeTimeout, defaults.HandshakeTimeout)
	c.PollInterval = validation.DefaultOrDuration(c.PollInterval, defaults.PollInterval)
}

// Validate validates the session configuration
func (c *SessionConfig) Validate() error {
	v := validation.NewConfigValidator("SessionConfig")

	v.Nested("fields", validation.Struct(c))

	v.Custom("endpoints", func() error {
		if c.Listen == "" && len(c.Peers) == 0 {
			return errors.New("either listen or at least one peer is required")
		}
		return nil
	})
	v.Custom("peers", c.checkPeerIDs)

	v.When(c.Compression == CompressionSnappy, func(cv *validation.ConfigValidator) {
		cv.MinInt("compress_threshold", c.CompressThreshold, 1)
	})

	v.MinInt("max_message_size", c.MaxMessageSize, 1024).
		Positive("window_size", c.WindowSize).
		Positive("max_receive_queue", c.MaxReceiveQueue).
		Positive("max_send_queue", c.MaxSendQueue).
		NonNegative("degraded_status_threshold", c.DegradedStatusThreshold).
		RangeDuration("heartbeat_interval", c.HeartbeatInterval, 100*time.Millisecond, time.Hour).
		MinDuration("handshake_timeout", c.HandshakeTimeout, time.Second).
		RangeDuration("poll_interval", c.PollInterval, minPollInterval, time.Second)

	return v.Validate()
}

func (c *SessionConfig) checkPeerIDs() error {
	seen := make(map[int]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.ServerID == c.ServerID {
			return fmt.Errorf("peer %s reuses local server id %d", p.Endpoint, p.ServerID)
		}
		if seen[p.ServerID] {
			return fmt.Errorf("server id %d listed twice", p.ServerID)
		}
		seen[p.ServerID] = true
	}
	return nil
}

// ParseSessionConfig reads a YAML document over the defaults and
// validates the result. Unknown keys are rejected.
func ParseSessionConfig(r io.Reader) (*SessionConfig, error) {
	cfg := DefaultSessionConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse session config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSessionConfig reads and validates the YAML file at path.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session config: %w", err)
	}
	return ParseSessionConfig(bytes.NewReader(data))
}

// Version returns the protocol version offered to peers.
func (c *SessionConfig) Version() protocol.Version {
	return protocol.Version(c.ProtocolVersion)
}

// HeartbeatTimeout returns the silence after which a peer is considered
// gone: three missed heartbeats.
func (c *SessionConfig) HeartbeatTimeout() time.Duration {
	return c.HeartbeatInterval * 3
}

// GetCompressThreshold returns the compression threshold, 0 when
// compression is off.
func (c *SessionConfig) GetCompressThreshold() int {
	if c.Compression != CompressionSnappy {
		return 0
	}
	return validation.ClampInt(c.CompressThreshold, 1, c.MaxMessageSize)
}

// ConnOptions returns the Conn settings this configuration implies.
func (c *SessionConfig) ConnOptions(logger logging.Logger, registry *metrics.Registry) []ConnOption {
	opts := []ConnOption{
		WithCompressThreshold(c.GetCompressThreshold()),
		WithMaxMessageSize(c.MaxMessageSize),
		WithPollInterval(c.PollInterval),
		WithHandshakeTimeout(c.HandshakeTimeout),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger.With(logging.BaseDN(c.BaseDN), logging.ServerID(c.ServerID))))
	}
	if registry != nil {
		opts = append(opts, WithMetrics(registry))
	}
	return opts
}

func (c *SessionConfig) startHeader() protocol.StartHeader {
	h := protocol.StartHeader{Version: c.Version(), GenerationID: c.GenerationID}
	h.SetGroupID(byte(c.GroupID))
	return h
}

// ServerStartMsg builds the directory server's handshake message.
func (c *SessionConfig) ServerStartMsg(state *csn.ServerState) *protocol.ServerStartMsg {
	return &protocol.ServerStartMsg{
		StartHeader:       c.startHeader(),
		BaseDN:            c.BaseDN,
		ServerID:          c.ServerID,
		ServerURL:         c.ServerURL,
		MaxReceiveQueue:   c.MaxReceiveQueue,
		MaxSendQueue:      c.MaxSendQueue,
		WindowSize:        c.WindowSize,
		HeartbeatInterval: c.HeartbeatInterval.Milliseconds(),
		ServerState:       state,
	}
}

// ReplServerStartMsg builds the replication server's handshake message.
func (c *SessionConfig) ReplServerStartMsg(state *csn.ServerState) *protocol.ReplServerStartMsg {
	return &protocol.ReplServerStartMsg{
		StartHeader:             c.startHeader(),
		BaseDN:                  c.BaseDN,
		ServerID:                c.ServerID,
		ServerURL:               c.ServerURL,
		WindowSize:              c.WindowSize,
		DegradedStatusThreshold: c.DegradedStatusThreshold,
		ServerState:             state,
	}
}

// StartSessionMsg builds the status announcement sent after the
// handshake.
func (c *SessionConfig) StartSessionMsg(status protocol.ServerStatus) *protocol.StartSessionMsg {
	return protocol.NewStartSessionMsg(status, c.RefURLs)
}

var (
	factoriesMu sync.RWMutex
	factories   = map[string]func(maxFrameSize int) SocketFactory{}
)

// RegisterTransport makes a socket factory available under name.
// newFactory receives the largest frame a session may receive.
func RegisterTransport(name string, newFactory func(maxFrameSize int) SocketFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = newFactory
}

// Transports lists the registered transport names.
func Transports() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SocketFactory returns the factory for the configured transport.
func (c *SessionConfig) SocketFactory() (SocketFactory, error) {
	factoriesMu.RLock()
	newFactory, ok := factories[c.Transport]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport %q not available in this build (have %v)", c.Transport, Transports())
	}
	return newFactory(c.MaxMessageSize + frameHeaderSize), nil
}
