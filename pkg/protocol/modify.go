package protocol

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
)

var modifyTags = []MsgType{TypeModify, TypeModifyV1}

// ModifyMsg replicates one LDAP modify operation. Mods holds the BER
// modification list; ECLIncludes the BER attributes to publish in the
// external changelog alongside it.
type ModifyMsg struct {
	UpdateHeader
	Mods        []byte
	ECLIncludes []byte
}

// NewModifyMsg builds a modify message from live operation data.
func NewModifyMsg(c csn.CSN, dn, entryUUID string, changes []ldap.Change) *ModifyMsg {
	return &ModifyMsg{
		UpdateHeader: newUpdateHeader(c, dn, entryUUID),
		Mods:         ldapmod.EncodeMods(changes),
	}
}

func (m *ModifyMsg) Type() MsgType          { return TypeModify }
func (m *ModifyMsg) AllowedTags() []MsgType { return modifyTags }

// SetECLIncludes stores the entry attributes to surface in the external changelog.
func (m *ModifyMsg) SetECLIncludes(attrs []ldap.PartialAttribute) {
	m.ECLIncludes = ldapmod.EncodeAttributes(attrs)
}

// Modifications decodes the modification list.
func (m *ModifyMsg) Modifications() ([]ldap.Change, error) {
	return ldapmod.DecodeMods(m.Mods)
}

// ECLIncludeAttributes decodes the external changelog attributes.
func (m *ModifyMsg) ECLIncludeAttributes() ([]ldap.PartialAttribute, error) {
	return ldapmod.DecodeAttributes(m.ECLIncludes)
}

// Request rebuilds the modify request for replay on the receiving side.
func (m *ModifyMsg) Request() (*ldap.ModifyRequest, error) {
	changes, err := m.Modifications()
	if err != nil {
		return nil, err
	}
	return ldapmod.NewModifyRequest(m.DN, changes)
}

func (m *ModifyMsg) bodySize(v Version) int {
	if !v.Supports(CapExplicitLengths) {
		return len(m.Mods) + 1
	}
	return IntUTF8Size(int64(len(m.Mods))) + len(m.Mods) + 1 +
		IntUTF8Size(int64(len(m.ECLIncludes))) + len(m.ECLIncludes) + 1
}

// SizeFor returns the exact encoded length at version v.
func (m *ModifyMsg) SizeFor(v Version) int {
	return m.headerSize(v) + m.bodySize(v)
}

// Size returns the exact encoded length at the current version.
func (m *ModifyMsg) Size() int {
	return m.SizeFor(Current)
}

// Bytes encodes the message for version v.
func (m *ModifyMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := m.encode(TypeModify, TypeModifyV1, v, m.bodySize(v))
	if !v.Supports(CapExplicitLengths) {
		b.AppendZeroTerminatedBytes(m.Mods)
		return b.Finish()
	}
	b.AppendIntUTF8(len(m.Mods)).
		AppendZeroTerminatedBytes(m.Mods).
		AppendIntUTF8(len(m.ECLIncludes)).
		AppendZeroTerminatedBytes(m.ECLIncludes)
	return b.Finish()
}

// DecodeModifyMsg decodes a modify message of any version.
func DecodeModifyMsg(buf []byte) (*ModifyMsg, error) {
	m, err := decodeModify(buf)
	return m, annotate(err, "ModifyMsg")
}

func decodeModify(buf []byte) (*ModifyMsg, error) {
	s := NewScanner(buf)
	h, err := decodeUpdateHeader(s, "ModifyMsg", TypeModify, TypeModifyV1)
	if err != nil {
		return nil, err
	}
	m := &ModifyMsg{UpdateHeader: h}

	if !h.Version.Supports(CapExplicitLengths) {
		rest := s.Rest()
		if len(rest) == 0 || rest[len(rest)-1] != 0 {
			s.Fail("mods", ErrMissingTerminator)
			return nil, s.Err()
		}
		m.Mods = rest[:len(rest)-1]
	} else {
		m.Mods = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		m.ECLIncludes = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		s.ExpectEnd()
		if s.Err() != nil {
			return nil, s.Err()
		}
	}

	if err := ldapmod.Validate(m.Mods); err != nil {
		return nil, newError("ModifyMsg").Field("mods").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	if _, err := ldapmod.DecodeAttributes(m.ECLIncludes); err != nil {
		return nil, newError("ModifyMsg").Field("ecl includes").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	return m, nil
}

// String omits the modification payload, which can be large.
func (m *ModifyMsg) String() string {
	return fmt.Sprintf("ModifyMsg{%s mods=%d bytes ecl=%d bytes}", m.describe(), len(m.Mods), len(m.ECLIncludes))
}
