package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

var replicaOfflineTags = []MsgType{TypeReplicaOffline}

// ReplicaOfflineMsg announces the point at which a replica went offline.
// It only exists from V8 on.
type ReplicaOfflineMsg struct {
	ChangeNumber csn.CSN
}

// NewReplicaOfflineMsg returns the message for offline CSN c.
func NewReplicaOfflineMsg(c csn.CSN) *ReplicaOfflineMsg {
	return &ReplicaOfflineMsg{ChangeNumber: c}
}

func (m *ReplicaOfflineMsg) Type() MsgType          { return TypeReplicaOffline }
func (m *ReplicaOfflineMsg) AllowedTags() []MsgType { return replicaOfflineTags }
func (m *ReplicaOfflineMsg) CSN() csn.CSN           { return m.ChangeNumber }

// ContributesToDomainState is false: the message reports an absence,
// not a change.
func (m *ReplicaOfflineMsg) ContributesToDomainState() bool {
	return false
}

// Size returns the encoded length.
func (m *ReplicaOfflineMsg) Size() int {
	return Octets(1) + Shorts(1) + CSNs(1)
}

// Bytes encodes the message, or returns ErrNotRepresentable below V8.
func (m *ReplicaOfflineMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() || !v.Supports(CapReplicaOffline) {
		return nil, ErrNotRepresentable
	}
	return NewBuilder(m.Size()).
		AppendByte(byte(TypeReplicaOffline)).
		AppendShort(int16(v)).
		AppendCSN(m.ChangeNumber).
		Finish()
}

// DecodeReplicaOfflineMsg decodes the message and rejects trailing bytes.
func DecodeReplicaOfflineMsg(buf []byte) (*ReplicaOfflineMsg, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, "ReplicaOfflineMsg", replicaOfflineTags); err != nil {
		return nil, err
	}
	version := Version(s.NextShort())
	if s.Err() == nil && !version.Supports(CapReplicaOffline) {
		return nil, newError("ReplicaOfflineMsg").Field("version").At(1).
			Causef(ErrUnsupportedVersion, "version %d", version).Err()
	}
	m := &ReplicaOfflineMsg{ChangeNumber: s.NextCSN()}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, "ReplicaOfflineMsg")
	}
	return m, nil
}

func (m *ReplicaOfflineMsg) String() string {
	return fmt.Sprintf("ReplicaOfflineMsg{csn=%s}", m.ChangeNumber)
}
