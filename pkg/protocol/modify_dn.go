package protocol

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/ldapmod"
)

var modifyDNTags = []MsgType{TypeModifyDN, TypeModifyDNV1}

// ModifyDNMsg replicates a rename or move. NewSuperior and
// NewSuperiorEntryUUID are empty when the entry keeps its parent. Mods
// carries the attribute changes the rename implied on the origin
// server; V1 peers never see them.
type ModifyDNMsg struct {
	UpdateHeader
	NewRDN               string
	NewSuperior          string
	NewSuperiorEntryUUID string
	DeleteOldRDN         bool
	Mods                 []byte
	ECLIncludes          []byte
}

// NewModifyDNMsg builds a modify DN message from live operation data.
func NewModifyDNMsg(c csn.CSN, dn, entryUUID, newRDN string, deleteOldRDN bool, newSuperior, newSuperiorEntryUUID string) *ModifyDNMsg {
	return &ModifyDNMsg{
		UpdateHeader:         newUpdateHeader(c, dn, entryUUID),
		NewRDN:               newRDN,
		NewSuperior:          newSuperior,
		NewSuperiorEntryUUID: newSuperiorEntryUUID,
		DeleteOldRDN:         deleteOldRDN,
	}
}

func (m *ModifyDNMsg) Type() MsgType          { return TypeModifyDN }
func (m *ModifyDNMsg) AllowedTags() []MsgType { return modifyDNTags }

// SetModifications stores the attribute changes that go with the rename.
func (m *ModifyDNMsg) SetModifications(changes []ldap.Change) {
	m.Mods = ldapmod.EncodeMods(changes)
}

// Modifications decodes the attribute changes.
func (m *ModifyDNMsg) Modifications() ([]ldap.Change, error) {
	return ldapmod.DecodeMods(m.Mods)
}

// SetECLIncludes stores the entry attributes to surface in the external changelog.
func (m *ModifyDNMsg) SetECLIncludes(attrs []ldap.PartialAttribute) {
	m.ECLIncludes = ldapmod.EncodeAttributes(attrs)
}

// ECLIncludeAttributes decodes the external changelog attributes.
func (m *ModifyDNMsg) ECLIncludeAttributes() ([]ldap.PartialAttribute, error) {
	return ldapmod.DecodeAttributes(m.ECLIncludes)
}

// Request rebuilds the modify DN request for replay on the receiving side.
func (m *ModifyDNMsg) Request() (*ldap.ModifyDNRequest, error) {
	return ldapmod.NewModifyDNRequest(m.DN, m.NewRDN, m.DeleteOldRDN, m.NewSuperior)
}

func (m *ModifyDNMsg) bodySize(v Version) int {
	size := StringSize(m.NewRDN) + StringSize(m.NewSuperior) + StringSize(m.NewSuperiorEntryUUID) + Booleans(1)
	switch {
	case !v.Supports(CapVersionedHeader):
		return size
	case !v.Supports(CapExplicitLengths):
		return size + len(m.Mods) + 1
	}
	return size + IntUTF8Size(int64(len(m.Mods))) + len(m.Mods) + 1 +
		IntUTF8Size(int64(len(m.ECLIncludes))) + len(m.ECLIncludes) + 1
}

// SizeFor returns the exact encoded length at version v.
func (m *ModifyDNMsg) SizeFor(v Version) int {
	return m.headerSize(v) + m.bodySize(v)
}

// Size returns the exact encoded length at the current version.
func (m *ModifyDNMsg) Size() int {
	return m.SizeFor(Current)
}

// Bytes encodes the message for version v.
func (m *ModifyDNMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	b := m.encode(TypeModifyDN, TypeModifyDNV1, v, m.bodySize(v)).
		AppendString(m.NewRDN).
		AppendString(m.NewSuperior).
		AppendString(m.NewSuperiorEntryUUID).
		AppendBool(m.DeleteOldRDN)
	switch {
	case !v.Supports(CapVersionedHeader):
		// no mods in V1
	case !v.Supports(CapExplicitLengths):
		b.AppendZeroTerminatedBytes(m.Mods)
	default:
		b.AppendIntUTF8(len(m.Mods)).
			AppendZeroTerminatedBytes(m.Mods).
			AppendIntUTF8(len(m.ECLIncludes)).
			AppendZeroTerminatedBytes(m.ECLIncludes)
	}
	return b.Finish()
}

// DecodeModifyDNMsg decodes a modify DN message of any version.
func DecodeModifyDNMsg(buf []byte) (*ModifyDNMsg, error) {
	m, err := decodeModifyDN(buf)
	return m, annotate(err, "ModifyDNMsg")
}

func decodeModifyDN(buf []byte) (*ModifyDNMsg, error) {
	s := NewScanner(buf)
	h, err := decodeUpdateHeader(s, "ModifyDNMsg", TypeModifyDN, TypeModifyDNV1)
	if err != nil {
		return nil, err
	}
	m := &ModifyDNMsg{UpdateHeader: h}
	m.NewRDN = s.NextString()
	m.NewSuperior = s.NextString()
	m.NewSuperiorEntryUUID = s.NextString()
	m.DeleteOldRDN = s.NextBool()

	switch {
	case !h.Version.Supports(CapVersionedHeader):
		s.ExpectEnd()
	case !h.Version.Supports(CapExplicitLengths):
		if s.Err() != nil {
			return nil, s.Err()
		}
		rest := s.Rest()
		if len(rest) == 0 || rest[len(rest)-1] != 0 {
			s.Fail("mods", ErrMissingTerminator)
			return nil, s.Err()
		}
		m.Mods = rest[:len(rest)-1]
	default:
		m.Mods = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		m.ECLIncludes = s.NextBytes(s.NextIntUTF8())
		s.SkipZeroSeparator()
		s.ExpectEnd()
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if err := ldapmod.Validate(m.Mods); err != nil {
		return nil, newError("ModifyDNMsg").Field("mods").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	if _, err := ldapmod.DecodeAttributes(m.ECLIncludes); err != nil {
		return nil, newError("ModifyDNMsg").Field("ecl includes").Cause(causeWith(ErrBadPayload, err)).Err()
	}
	return m, nil
}

func (m *ModifyDNMsg) String() string {
	return fmt.Sprintf("ModifyDNMsg{%s newRDN=%q newSuperior=%q deleteOldRDN=%t mods=%d bytes}",
		m.describe(), m.NewRDN, m.NewSuperior, m.DeleteOldRDN, len(m.Mods))
}
