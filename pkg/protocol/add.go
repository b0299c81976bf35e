package protocol

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
)

var addTags = []MsgType{TypeAdd, TypeAddV1}

// AddMsg replicates the creation of an entry. Attributes holds the BER
// attribute list of the new entry, object classes included.
type AddMsg struct {
	UpdateHeader
	ParentEntryUUID string
	Attributes      []byte
	ECLIncludes     []byte
}

// NewAddMsg builds an add message from live operation data.
func NewAddMsg(c csn.CSN, dn, entryUUID, parentEntryUUID string, attrs []ldap.PartialAttribute) *AddMsg {
	return &AddMsg{
		UpdateHeader:    newUpdateHeader(c, dn, entryUUID),
		ParentEntryUUID: parentEntryUUID,
		Attributes:      ldapmod.EncodeAttributes(attrs),
	}
}

func (m *AddMsg) Type() MsgType          { return TypeAdd }
func (m *AddMsg) AllowedTags() []MsgType { return addTags }

// SetECLIncludes stores the entry attributes to surface in the external changelog.
func (m *AddMsg) SetECLIncludes(attrs []ldap.PartialAttribute) {
	m.ECLIncludes = ldapmod.EncodeAttributes(attrs)
}

// EntryAttributes decodes the attributes of the added entry.
func (m *AddMsg) EntryAttributes() ([]ldap.PartialAttribute, error) {
	return ldapmod.DecodeAttributes(m.Attributes)
}

// ECLIncludeAttributes decodes the external changelog attributes.
func (m *AddMsg) ECLIncludeAttributes() ([]ldap.PartialAttribute, error) {
	return ldapmod.DecodeAttributes(m.ECLIncludes)
}

// Request rebuilds the add request for replay on the receiving side.
func (m *AddMsg) Request() (*ldap.AddRequest, error) {
	attrs, err := m.EntryAttributes()
	if err != nil {
		return nil, err
	}
	return ldapmod.NewAddRequest(m.DN, attrs)
}

func (m *AddMsg) bodySize(v Version) int {
	size := StringSize(m.ParentEntryUUID)
	if !v.Supports(CapExplicitLengths) {
		return size + len(m.Attributes)
	}
	return size + IntUTF8Size(int64(len(m.Attributes))) + len(m.Attributes) + 1 +
		IntUTF8Size(int64(len(m.ECLIncludes))) + len(m.ECLIncludes) + 1
}

// SizeFor returns the exact encoded length at version v.
func (m *AddMsg) SizeFor(v Version) int {
	return m.headerSize(v) + m.bodySize(v)
}

// Size returns the exact encoded length at the current version.
func (m *AddMsg) Size() int {
	return m.SizeFor(Current)
}

// Bytes encodes the message for version v. Before V4 the attributes run
// to the end of the message and ECL attributes are not sent.
func (m *AddMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := m.encode(TypeAdd, TypeAddV1, v, m.bodySize(v)).
		AppendString(m.ParentEntryUUID)
	if !v.Supports(CapExplicitLengths) {
		b.AppendBytes(m.Attributes)
		return b.Finish()
	}
	b.AppendIntUTF8(len(m.Attributes)).
		AppendZeroTerminatedBytes(m.Attributes).
		AppendIntUTF8(len(m.ECLIncludes)).
		AppendZeroTerminatedBytes(m.ECLIncludes)
	return b.Finish()
}

// DecodeAddMsg decodes an add message of any version.
func DecodeAddMsg(buf []byte) (*AddMsg, error) {
	m, err := decodeAdd(buf)
	return m, annotate(err, "AddMsg")
}

func decodeAdd(buf []byte) (*AddMsg, error) {
	s := NewScanner(buf)
	h, err := decodeUpdateHeader(s, "AddMsg", TypeAdd, TypeAddV1)
	if err != nil {
		return nil, err
	}
	m := &AddMsg{UpdateHeader: h}
	m.ParentEntryUUID = s.NextString()

	if !h.Version.Supports(CapExplicitLengths) {
		m.Attributes = s.Rest()
	} else {
		m.Attributes = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		m.ECLIncludes = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		s.ExpectEnd()
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if _, err := ldapmod.DecodeAttributes(m.Attributes); err != nil {
		return nil, newError("AddMsg").Field("attributes").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	if _, err := ldapmod.DecodeAttributes(m.ECLIncludes); err != nil {
		return nil, newError("AddMsg").Field("ecl includes").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	return m, nil
}

func (m *AddMsg) String() string {
	return fmt.Sprintf("AddMsg{%s parent=%s attrs=%d bytes ecl=%d bytes}",
		m.describe(), m.ParentEntryUUID, len(m.Attributes), len(m.ECLIncludes))
}
