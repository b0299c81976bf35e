package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

var serverStartTags = []MsgType{TypeServerStart, TypeServerStartV1}

// ServerStartMsg opens a session from a directory server to a
// replication server.
type ServerStartMsg struct {
	StartHeader
	BaseDN            string
	ServerID          int
	ServerURL         string
	MaxReceiveQueue   int
	MaxReceiveDelay   int
	MaxSendQueue      int
	MaxSendDelay      int
	WindowSize        int
	HeartbeatInterval int64 // milliseconds
	SSLEncryption     bool
	ServerState       *csn.ServerState
}

func (m *ServerStartMsg) Type() MsgType          { return TypeServerStart }
func (m *ServerStartMsg) AllowedTags() []MsgType { return serverStartTags }

func (m *ServerStartMsg) bodySize() int {
	return StringSize(m.BaseDN) + IntUTF8Size(int64(m.ServerID)) + StringSize(m.ServerURL) +
		IntUTF8Size(int64(m.MaxReceiveQueue)) + IntUTF8Size(int64(m.MaxReceiveDelay)) +
		IntUTF8Size(int64(m.MaxSendQueue)) + IntUTF8Size(int64(m.MaxSendDelay)) +
		IntUTF8Size(int64(m.WindowSize)) + IntUTF8Size(m.HeartbeatInterval) +
		boolStringSize(m.SSLEncryption) + serverStateSize(m.ServerState)
}

// Bytes encodes the message; V1 uses the legacy header and tag.
func (m *ServerStartMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := encodeStart(TypeServerStart, TypeServerStartV1, m.StartHeader, v, m.bodySize())
	b.AppendString(m.BaseDN).
		AppendIntUTF8(m.ServerID).
		AppendString(m.ServerURL).
		AppendIntUTF8(m.MaxReceiveQueue).
		AppendIntUTF8(m.MaxReceiveDelay).
		AppendIntUTF8(m.MaxSendQueue).
		AppendIntUTF8(m.MaxSendDelay).
		AppendIntUTF8(m.WindowSize).
		AppendLongUTF8(m.HeartbeatInterval).
		appendBoolString(m.SSLEncryption).
		AppendServerState(m.ServerState)
	return b.Finish()
}

// DecodeServerStartMsg decodes either header generation.
func DecodeServerStartMsg(buf []byte) (*ServerStartMsg, error) {
	s := NewScanner(buf)
	h, err := decodeStartHeader(s, "ServerStartMsg", TypeServerStart, TypeServerStartV1)
	if err != nil {
		return nil, annotate(err, "ServerStartMsg")
	}
	m := &ServerStartMsg{
		StartHeader:       h,
		BaseDN:            s.NextString(),
		ServerID:          s.NextIntUTF8(),
		ServerURL:         s.NextString(),
		MaxReceiveQueue:   s.NextIntUTF8(),
		MaxReceiveDelay:   s.NextIntUTF8(),
		MaxSendQueue:      s.NextIntUTF8(),
		MaxSendDelay:      s.NextIntUTF8(),
		WindowSize:        s.NextIntUTF8(),
		HeartbeatInterval: s.NextLongUTF8(),
		SSLEncryption:     s.nextBoolString("ssl encryption"),
		ServerState:       s.NextServerState(),
	}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "ServerStartMsg")
	}
	return m, nil
}

func (m *ServerStartMsg) String() string {
	return fmt.Sprintf("ServerStartMsg{version=%s gen=%d group=%d dn=%q server=%d url=%q window=%d heartbeat=%dms ssl=%t state=%s}",
		m.Version, m.GenerationID, m.GroupID, m.BaseDN, m.ServerID, m.ServerURL,
		m.WindowSize, m.HeartbeatInterval, m.SSLEncryption, m.ServerState)
}
