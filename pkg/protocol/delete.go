package protocol

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
)

var deleteTags = []MsgType{TypeDelete, TypeDeleteV1}

// DeleteMsg replicates the removal of an entry, or of a whole subtree.
type DeleteMsg struct {
	UpdateHeader
	ECLIncludes []byte
	Subtree     bool
}

// NewDeleteMsg builds a delete message from live operation data.
func NewDeleteMsg(c csn.CSN, dn, entryUUID string, subtree bool) *DeleteMsg {
	return &DeleteMsg{
		UpdateHeader: newUpdateHeader(c, dn, entryUUID),
		Subtree:      subtree,
	}
}

func (m *DeleteMsg) Type() MsgType          { return TypeDelete }
func (m *DeleteMsg) AllowedTags() []MsgType { return deleteTags }

// SetECLIncludes stores the attributes of the deleted entry to surface in
// the external changelog.
func (m *DeleteMsg) SetECLIncludes(attrs []ldap.PartialAttribute) {
	m.ECLIncludes = ldapmod.EncodeAttributes(attrs)
}

// ECLIncludeAttributes decodes the external changelog attributes.
func (m *DeleteMsg) ECLIncludeAttributes() ([]ldap.PartialAttribute, error) {
	return ldapmod.DecodeAttributes(m.ECLIncludes)
}

func (m *DeleteMsg) bodySize(v Version) int {
	if !v.Supports(CapExplicitLengths) {
		return 0
	}
	return IntUTF8Size(int64(len(m.ECLIncludes))) + len(m.ECLIncludes) + 1 + Booleans(1)
}

// SizeFor returns the exact encoded length at version v.
func (m *DeleteMsg) SizeFor(v Version) int {
	return m.headerSize(v) + m.bodySize(v)
}

// Size returns the exact encoded length at the current version.
func (m *DeleteMsg) Size() int {
	return m.SizeFor(Current)
}

// Bytes encodes the message for version v. Before V4 the subtree flag
// and ECL attributes are not sent.
func (m *DeleteMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := m.encode(TypeDelete, TypeDeleteV1, v, m.bodySize(v))
	if v.Supports(CapExplicitLengths) {
		b.AppendIntUTF8(len(m.ECLIncludes)).
			AppendZeroTerminatedBytes(m.ECLIncludes).
			AppendBool(m.Subtree)
	}
	return b.Finish()
}

// DecodeDeleteMsg decodes a delete message of any version.
func DecodeDeleteMsg(buf []byte) (*DeleteMsg, error) {
	m, err := decodeDelete(buf)
	return m, annotate(err, "DeleteMsg")
}

func decodeDelete(buf []byte) (*DeleteMsg, error) {
	s := NewScanner(buf)
	h, err := decodeUpdateHeader(s, "DeleteMsg", TypeDelete, TypeDeleteV1)
	if err != nil {
		return nil, err
	}
	m := &DeleteMsg{UpdateHeader: h}

	if h.Version.Supports(CapExplicitLengths) {
		m.ECLIncludes = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		m.Subtree = s.NextBool()
	}
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, err
	}

	if _, err := ldapmod.DecodeAttributes(m.ECLIncludes); err != nil {
		return nil, newError("DeleteMsg").Field("ecl includes").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	return m, nil
}

func (m *DeleteMsg) String() string {
	return fmt.Sprintf("DeleteMsg{%s subtree=%t}", m.describe(), m.Subtree)
}
