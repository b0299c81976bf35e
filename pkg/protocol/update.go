package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

// UpdateHeader is the leading part of every add, modify, delete and
// modify DN message.
type UpdateHeader struct {
	ChangeNumber  csn.CSN
	DN            string
	EntryUUID     string
	Assured       bool
	AssuredMode   AssuredMode
	SafeDataLevel byte

	// Version is the protocol version the message was decoded with.
	// Zero for locally built messages.
	Version Version
}

func newUpdateHeader(c csn.CSN, dn, entryUUID string) UpdateHeader {
	return UpdateHeader{
		ChangeNumber:  c,
		DN:            dn,
		EntryUUID:     entryUUID,
		AssuredMode:   DefaultAssuredMode,
		SafeDataLevel: DefaultSafeDataLevel,
	}
}

// CSN returns the change sequence number of the update.
func (h *UpdateHeader) CSN() csn.CSN {
	return h.ChangeNumber
}

// SetCSN replaces the change sequence number. Intended for replay tools.
func (h *UpdateHeader) SetCSN(c csn.CSN) {
	h.ChangeNumber = c
}

// ContributesToDomainState is true for every data change.
func (h *UpdateHeader) ContributesToDomainState() bool {
	return true
}

// headerSize is the exact encoded size of the header at version v.
func (h *UpdateHeader) headerSize(v Version) int {
	size := CSNsUTF8(1) + StringSize(h.DN) + StringSize(h.EntryUUID)
	if !v.Supports(CapVersionedHeader) {
		// tag, assured
		return size + Octets(1) + Booleans(1)
	}
	// tag, version, assured, mode, level
	return size + Octets(2) + Booleans(1) + Octets(2)
}

// encode starts a builder with the header laid out for version v.
func (h *UpdateHeader) encode(tag, v1Tag MsgType, v Version, bodySize int) *Builder {
	b := NewBuilder(h.headerSize(v) + bodySize)
	if !v.Supports(CapVersionedHeader) {
		// frozen V1 layout
		return b.AppendByte(byte(v1Tag)).
			AppendCSNUTF8(h.ChangeNumber).
			AppendBool(h.Assured).
			AppendString(h.DN).
			AppendString(h.EntryUUID)
	}
	return b.AppendByte(byte(tag)).
		AppendByte(byte(v)).
		AppendCSNUTF8(h.ChangeNumber).
		AppendString(h.DN).
		AppendString(h.EntryUUID).
		AppendBool(h.Assured).
		AppendByte(byte(h.AssuredMode)).
		AppendByte(h.SafeDataLevel)
}

// decodeUpdateHeader reads the header; the tag selects the layout.
func decodeUpdateHeader(s *Scanner, typ string, tag, v1Tag MsgType) (UpdateHeader, error) {
	got, err := checkTag(s, typ, []MsgType{tag, v1Tag})
	if err != nil {
		return UpdateHeader{}, err
	}

	var h UpdateHeader
	if got == v1Tag {
		h.Version = V1
		h.ChangeNumber = s.NextCSNUTF8()
		h.Assured = s.NextBool()
		h.DN = s.NextString()
		h.EntryUUID = s.NextString()
		h.AssuredMode = DefaultAssuredMode
		h.SafeDataLevel = DefaultSafeDataLevel
		return h, s.Err()
	}

	version := Version(s.NextByte())
	if s.Err() == nil && version < V2 {
		return UpdateHeader{}, newError(typ).Field("version").At(1).
			Causef(ErrUnsupportedVersion, "version byte %d with tag %d", version, got).Err()
	}
	h.Version = version
	h.ChangeNumber = s.NextCSNUTF8()
	h.DN = s.NextString()
	h.EntryUUID = s.NextString()
	h.Assured = s.NextBool()
	h.AssuredMode = s.nextAssuredMode()
	h.SafeDataLevel = s.NextByte()
	return h, s.Err()
}

func (h *UpdateHeader) describe() string {
	return fmt.Sprintf("csn=%s dn=%q uuid=%s assured=%t mode=%s level=%d",
		h.ChangeNumber, h.DN, h.EntryUUID, h.Assured, h.AssuredMode, h.SafeDataLevel)
}
