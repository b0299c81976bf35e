package protocol

import (
	"fmt"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

// StartHeader is shared by the handshake messages that open a session.
type StartHeader struct {
	// Version is the protocol version the sender speaks.
	Version      Version
	GenerationID int64
	GroupID      byte
}

// SetGroupID replaces the group id. Intended for replay tools.
func (h *StartHeader) SetGroupID(id byte) {
	h.GroupID = id
}

// headerSize is the same for both layouts: V1 spends the byte V2 uses
// for the group id on the NUL after its text version.
func (h *StartHeader) headerSize() int {
	return Octets(3) + IntUTF8Size(h.GenerationID)
}

// EncodeStartHeader starts a builder with the V2+ header:
// tag, version, generation id as text, group id.
func EncodeStartHeader(tag MsgType, h StartHeader, v Version, bodySize int) *Builder {
	return NewBuilder(h.headerSize()+bodySize).
		AppendByte(byte(tag)).
		AppendByte(byte(v)).
		AppendLongUTF8(h.GenerationID).
		AppendByte(h.GroupID)
}

// EncodeStartHeaderV1 starts a builder with the frozen V1 header used
// to answer V1 peers: tag, the '1' of the old text version, its NUL,
// generation id as text. V1 has no group id.
func EncodeStartHeaderV1(tag MsgType, generationID int64, bodySize int) *Builder {
	return NewBuilder(Octets(3)+IntUTF8Size(generationID)+bodySize).
		AppendByte(byte(tag)).
		AppendByte(V1Real).
		AppendByte(0).
		AppendLongUTF8(generationID)
}

// encodeStart picks the header layout for v.
func encodeStart(tag, v1Tag MsgType, h StartHeader, v Version, bodySize int) *Builder {
	if !v.Supports(CapVersionedHeader) {
		return EncodeStartHeaderV1(v1Tag, h.GenerationID, bodySize)
	}
	return EncodeStartHeader(tag, h, v, bodySize)
}

// decodeStartHeader reads either header layout. A V1 header is mapped
// onto the normal version space so nothing downstream special-cases it.
func decodeStartHeader(s *Scanner, typ string, tag, v1Tag MsgType) (StartHeader, error) {
	got, err := checkTag(s, typ, []MsgType{tag, v1Tag})
	if err != nil {
		return StartHeader{}, err
	}

	versionByte := s.NextByte()
	if err := s.Err(); err != nil {
		return StartHeader{}, err
	}

	if got == v1Tag {
		// legacy V1 layout
		if versionByte != V1Real {
			return StartHeader{}, newError(typ).Field("version").At(1).
				Causef(ErrUnsupportedVersion, "V1 tag with version byte %d", versionByte).Err()
		}
		s.SkipZeroSeparator()
		h := StartHeader{Version: V1, GenerationID: s.NextLongUTF8(), GroupID: NoGroupID}
		return h, s.Err()
	}

	if Version(versionByte) < V2 {
		return StartHeader{}, newError(typ).Field("version").At(1).
			Causef(ErrUnsupportedVersion, "version byte %d with tag %d", versionByte, got).Err()
	}
	h := StartHeader{Version: Version(versionByte)}
	h.GenerationID = s.NextLongUTF8()
	h.GroupID = s.NextByte()
	return h, s.Err()
}

// AppendServerState writes (server id, CSN) text pairs followed by a
// terminating NUL byte.
func (b *Builder) AppendServerState(state *csn.ServerState) *Builder {
	if state != nil {
		for _, c := range state.Snapshot() {
			b.AppendIntUTF8(int(c.ServerID)).AppendCSNUTF8(c)
		}
	}
	return b.AppendByte(0)
}

func serverStateSize(state *csn.ServerState) int {
	size := 1
	if state != nil {
		for _, c := range state.Snapshot() {
			size += IntUTF8Size(int64(c.ServerID)) + CSNsUTF8(1)
		}
	}
	return size
}

// NextServerState reads the output of AppendServerState.
func (s *Scanner) NextServerState() *csn.ServerState {
	state := csn.NewServerState()
	for s.err == nil {
		b, ok := s.Peek()
		if !ok {
			s.Fail("server state", ErrMissingTerminator)
			break
		}
		if b == 0 {
			s.pos++
			break
		}
		start := s.pos
		id := s.NextIntUTF8()
		c := s.NextCSNUTF8()
		if s.err != nil {
			break
		}
		if id != int(c.ServerID) {
			s.pos = start
			s.Fail("server state", fmt.Errorf("%w: id %d, csn %s", ErrServerIDMismatch, id, c))
			break
		}
		state.Update(c)
	}
	return state
}

// appendBoolString writes a boolean as the text "true" or "false".
func (b *Builder) appendBoolString(v bool) *Builder {
	if v {
		return b.AppendString("true")
	}
	return b.AppendString("false")
}

func boolStringSize(v bool) int {
	if v {
		return StringSize("true")
	}
	return StringSize("false")
}

func (s *Scanner) nextBoolString(field string) bool {
	start := s.pos
	switch str := s.NextString(); {
	case s.err != nil:
		return false
	case str == "true":
		return true
	case str == "false":
		return false
	default:
		s.pos = start
		s.Fail(field, fmt.Errorf("%w: %q is not a boolean", ErrBadPayload, str))
		return false
	}
}
