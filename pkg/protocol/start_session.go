package protocol

import (
	"fmt"
	"slices"
)

var startSessionTags = []MsgType{TypeStartSession}

// StartSessionMsg is sent by a directory server once the handshake is
// done, to announce its status and assured replication settings.
type StartSessionMsg struct {
	Status        ServerStatus
	Assured       bool
	AssuredMode   AssuredMode
	SafeDataLevel byte
	RefURLs       []string
	// ECLIncludes and ECLIncludesForDeletes follow the same version
	// rules as in DSInfo.
	ECLIncludes           []string
	ECLIncludesForDeletes []string
}

// NewStartSessionMsg returns a session start with default assured
// settings.
func NewStartSessionMsg(status ServerStatus, refURLs []string) *StartSessionMsg {
	return &StartSessionMsg{
		Status:        status,
		AssuredMode:   DefaultAssuredMode,
		SafeDataLevel: DefaultSafeDataLevel,
		RefURLs:       refURLs,
	}
}

func (m *StartSessionMsg) Type() MsgType          { return TypeStartSession }
func (m *StartSessionMsg) AllowedTags() []MsgType { return startSessionTags }

// Bytes encodes the message for v. Before V4 the referral URLs run to
// the end of the message and no ECL attributes are carried.
func (m *StartSessionMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() || !v.Supports(CapVersionedHeader) {
		return nil, ErrNotRepresentable
	}
	b := NewBuilder(Octets(5) + 64*len(m.RefURLs)).
		AppendByte(byte(TypeStartSession)).
		AppendByte(byte(m.Status)).
		AppendBool(m.Assured).
		AppendByte(byte(m.AssuredMode)).
		AppendByte(m.SafeDataLevel)

	if !v.Supports(CapExplicitLengths) {
		for _, url := range m.RefURLs {
			b.AppendString(url)
		}
		return b.Finish()
	}

	b.AppendByteCountStrings(m.RefURLs).AppendByteCountStrings(m.ECLIncludes)
	if v.Supports(CapECLIncludesForDeletes) {
		b.AppendByteCountStrings(m.ECLIncludesForDeletes)
	}
	return b.Finish()
}

// DecodeStartSessionMsg decodes a message sent with version v.
func DecodeStartSessionMsg(buf []byte, v Version) (*StartSessionMsg, error) {
	const typ = "StartSessionMsg"
	s := NewScanner(buf)
	if _, err := checkTag(s, typ, startSessionTags); err != nil {
		return nil, err
	}
	if !v.Valid() || !v.Supports(CapVersionedHeader) {
		return nil, newError(typ).Tag(byte(TypeStartSession)).
			Causef(ErrUnsupportedVersion, "start session decoded as %s", v).Err()
	}

	m := &StartSessionMsg{
		Status:        s.nextStatus(),
		Assured:       s.NextBool(),
		AssuredMode:   s.nextAssuredMode(),
		SafeDataLevel: s.NextByte(),
	}

	if !v.Supports(CapExplicitLengths) {
		for s.Err() == nil && !s.IsEmpty() {
			m.RefURLs = append(m.RefURLs, s.NextString())
		}
	} else {
		m.RefURLs = s.NextByteCountStrings()
		m.ECLIncludes = s.NextByteCountStrings()
		if v.Supports(CapECLIncludesForDeletes) {
			m.ECLIncludesForDeletes = s.NextByteCountStrings()
		} else {
			m.ECLIncludesForDeletes = slices.Clone(m.ECLIncludes)
		}
		s.ExpectEnd()
	}

	if err := s.Err(); err != nil {
		return nil, annotate(err, typ)
	}
	return m, nil
}

func (m *StartSessionMsg) String() string {
	return fmt.Sprintf("StartSessionMsg{status=%s assured=%t mode=%s level=%d refs=%v ecl=%v eclDeletes=%v}",
		m.Status, m.Assured, m.AssuredMode, m.SafeDataLevel, m.RefURLs, m.ECLIncludes, m.ECLIncludesForDeletes)
}
