package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

var ackTags = []MsgType{TypeAck}

// AckMsg acknowledges an assured update. The flags and failed server
// list describe why the acknowledgement may be partial.
type AckMsg struct {
	ChangeNumber   csn.CSN
	HasTimeout     bool
	HasWrongStatus bool
	HasReplayError bool
	FailedServers  []int
}

// NewAckMsg acknowledges the update identified by c.
func NewAckMsg(c csn.CSN) *AckMsg {
	return &AckMsg{ChangeNumber: c}
}

func (m *AckMsg) Type() MsgType          { return TypeAck }
func (m *AckMsg) AllowedTags() []MsgType { return ackTags }

// Bytes encodes the message. The layout has not changed since V1.
func (m *AckMsg) Bytes(Version) ([]byte, error) {
	b := NewBuilder(Octets(1) + CSNsUTF8(1) + Booleans(3) + 8*len(m.FailedServers)).
		AppendByte(byte(TypeAck)).
		AppendCSNUTF8(m.ChangeNumber).
		AppendBool(m.HasTimeout).
		AppendBool(m.HasWrongStatus).
		AppendBool(m.HasReplayError)
	for _, id := range m.FailedServers {
		b.AppendIntUTF8(id)
	}
	return b.Finish()
}

// DecodeAckMsg decodes an acknowledgement. Failed server ids run to the
// end of the buffer.
func DecodeAckMsg(buf []byte) (*AckMsg, error) {
	s := NewScanner(buf)
	if _, err := checkTag(s, "AckMsg", ackTags); err != nil {
		return nil, err
	}
	m := &AckMsg{
		ChangeNumber:   s.NextCSNUTF8(),
		HasTimeout:     s.NextBool(),
		HasWrongStatus: s.NextBool(),
		HasReplayError: s.NextBool(),
	}
	for s.Err() == nil && !s.IsEmpty() {
		m.FailedServers = append(m.FailedServers, s.NextIntUTF8())
	}
	if err := s.Err(); err != nil {
		return nil, annotate(err, "AckMsg")
	}
	return m, nil
}

func (m *AckMsg) String() string {
	return fmt.Sprintf("AckMsg{csn=%s timeout=%t wrongStatus=%t replayError=%t failed=%v}",
		m.ChangeNumber, m.HasTimeout, m.HasWrongStatus, m.HasReplayError, m.FailedServers)
}
