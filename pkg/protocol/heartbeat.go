package protocol

import "github.com/dd0wney/cluso-replication/pkg/csn"

var (
	heartbeatTags           = []MsgType{TypeHeartbeat}
	changeTimeHeartbeatTags = []MsgType{TypeChangeTimeHeartbeat}
)

// HeartbeatMsg is a payload-free liveness signal.
type HeartbeatMsg struct{}

func (HeartbeatMsg) Type() MsgType          { return TypeHeartbeat }
func (HeartbeatMsg) AllowedTags() []MsgType { return heartbeatTags }

// Bytes returns the single tag byte, whatever the version.
func (HeartbeatMsg) Bytes(Version) ([]byte, error) {
	return []byte{byte(TypeHeartbeat)}, nil
}

// DecodeHeartbeatMsg accepts exactly one heartbeat tag byte.
func DecodeHeartbeatMsg(buf []byte) (*HeartbeatMsg, error) {
	return decodeTagOnly[HeartbeatMsg](buf, "HeartbeatMsg", heartbeatTags)
}

// ChangeTimeHeartbeatMsg tells peers how far the sender's clock has
// moved when it has no changes to send, so that ordering of changes
// from other replicas can progress.
type ChangeTimeHeartbeatMsg struct {
	ChangeNumber csn.CSN
}

func (m *ChangeTimeHeartbeatMsg) Type() MsgType          { return TypeChangeTimeHeartbeat }
func (m *ChangeTimeHeartbeatMsg) AllowedTags() []MsgType { return changeTimeHeartbeatTags }

// Bytes encodes the CSN in binary from V7 on and as text before.
func (m *ChangeTimeHeartbeatMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	if v.Supports(CapBinaryCSN) {
		return NewBuilder(Octets(1) + CSNs(1)).
			AppendByte(byte(TypeChangeTimeHeartbeat)).
			AppendCSN(m.ChangeNumber).
			Finish()
	}
	return NewBuilder(Octets(1) + CSNsUTF8(1)).
		AppendByte(byte(TypeChangeTimeHeartbeat)).
		AppendCSNUTF8(m.ChangeNumber).
		Finish()
}

// DecodeChangeTimeHeartbeatMsg decodes the layout used at version v.
func DecodeChangeTimeHeartbeatMsg(buf []byte, v Version) (*ChangeTimeHeartbeatMsg, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, "ChangeTimeHeartbeatMsg", changeTimeHeartbeatTags); err != nil {
		return nil, err
	}
	m := &ChangeTimeHeartbeatMsg{}
	if v.Supports(CapBinaryCSN) {
		m.ChangeNumber = s.NextCSN()
	} else {
		m.ChangeNumber = s.NextCSNUTF8()
	}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "ChangeTimeHeartbeatMsg")
	}
	return m, nil
}
