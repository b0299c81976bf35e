package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

var replServerStartTags = []MsgType{TypeReplServerStart, TypeReplServerStartV1}

// ReplServerStartMsg is a replication server's side of the handshake.
type ReplServerStartMsg struct {
	StartHeader
	BaseDN        string
	ServerID      int
	ServerURL     string
	WindowSize    int
	SSLEncryption bool
	// DegradedStatusThreshold is -1 when the peer speaks V1.
	DegradedStatusThreshold int
	ServerState             *csn.ServerState
}

func (m *ReplServerStartMsg) Type() MsgType          { return TypeReplServerStart }
func (m *ReplServerStartMsg) AllowedTags() []MsgType { return replServerStartTags }

func (m *ReplServerStartMsg) bodySize(v Version) int {
	size := StringSize(m.BaseDN) + IntUTF8Size(int64(m.ServerID)) + StringSize(m.ServerURL) +
		IntUTF8Size(int64(m.WindowSize)) + boolStringSize(m.SSLEncryption) + serverStateSize(m.ServerState)
	if v.Supports(CapVersionedHeader) {
		size += IntUTF8Size(int64(m.DegradedStatusThreshold))
	}
	return size
}

// Bytes encodes the message; V1 uses the legacy header and carries no
// degraded status threshold.
func (m *ReplServerStartMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := encodeStart(TypeReplServerStart, TypeReplServerStartV1, m.StartHeader, v, m.bodySize(v))
	b.AppendString(m.BaseDN).
		AppendIntUTF8(m.ServerID).
		AppendString(m.ServerURL).
		AppendIntUTF8(m.WindowSize).
		appendBoolString(m.SSLEncryption)
	if v.Supports(CapVersionedHeader) {
		b.AppendIntUTF8(m.DegradedStatusThreshold)
	}
	b.AppendServerState(m.ServerState)
	return b.Finish()
}

// DecodeReplServerStartMsg decodes either header generation.
func DecodeReplServerStartMsg(buf []byte) (*ReplServerStartMsg, error) {
	s := NewScanner(buf)
	h, err := decodeStartHeader(s, "ReplServerStartMsg", TypeReplServerStart, TypeReplServerStartV1)
	if err != nil {
		return nil, annotate(err, "ReplServerStartMsg")
	}
	m := &ReplServerStartMsg{
		StartHeader:             h,
		BaseDN:                  s.NextString(),
		ServerID:                s.NextIntUTF8(),
		ServerURL:               s.NextString(),
		WindowSize:              s.NextIntUTF8(),
		SSLEncryption:           s.nextBoolString("ssl encryption"),
		DegradedStatusThreshold: -1,
	}
	if h.Version.Supports(CapVersionedHeader) {
		m.DegradedStatusThreshold = s.NextIntUTF8()
	}
	m.ServerState = s.NextServerState()
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "ReplServerStartMsg")
	}
	return m, nil
}

func (m *ReplServerStartMsg) String() string {
	return fmt.Sprintf("ReplServerStartMsg{version=%s gen=%d group=%d dn=%q server=%d url=%q window=%d threshold=%d state=%s}",
		m.Version, m.GenerationID, m.GroupID, m.BaseDN, m.ServerID, m.ServerURL,
		m.WindowSize, m.DegradedStatusThreshold, m.ServerState)
}
