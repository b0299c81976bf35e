package protocol

import (
	"slices"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

// Msg is implemented by every replication message.
type Msg interface {
	// Type is the tag the message is sent with from V2 onwards.
	Type() MsgType
	// AllowedTags lists every tag the decoder of this type accepts.
	AllowedTags() []MsgType
	// Bytes encodes the message for protocol version v. It returns
	// ErrNotRepresentable when v cannot carry the message.
	Bytes(v Version) ([]byte, error)
}

// UpdateMsg is a message announcing one change.
type UpdateMsg interface {
	Msg
	CSN() csn.CSN
	// ContributesToDomainState reports whether the change belongs in
	// the per-replica "newest change" summary.
	ContributesToDomainState() bool
}

// UpdateDomainState folds m into state when m describes a change.
// It returns true if the state moved forward.
func UpdateDomainState(state *csn.ServerState, m UpdateMsg) bool {
	if !m.ContributesToDomainState() {
		return false
	}
	return state.Update(m.CSN())
}

func hasTag(allowed []MsgType, tag byte) bool {
	return slices.Contains(allowed, MsgType(tag))
}

// checkTag reads the leading tag and verifies it belongs to allowed.
func checkTag(s *Scanner, typ string, allowed []MsgType) (MsgType, error) {
	if s.IsEmpty() {
		return 0, newError(typ).Cause(ErrEmptyMessage).Err()
	}
	tag := s.NextByte()
	if !hasTag(allowed, tag) {
		return 0, tagError(typ, tag)
	}
	return MsgType(tag), nil
}

func asMsg[T Msg](m T, err error) (Msg, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Decode turns buf into the message its first byte names. v is the
// version negotiated for the session; layouts that carry their own
// version byte use that instead.
func Decode(buf []byte, v Version) (Msg, error) {
	if len(buf) == 0 {
		return nil, newError("").Cause(ErrEmptyMessage).Err()
	}

	switch tag := MsgType(buf[0]); tag {
	case TypeHeartbeat:
		return asMsg(DecodeHeartbeatMsg(buf))
	case TypeModify, TypeModifyV1:
		return asMsg(DecodeModifyMsg(buf))
	case TypeAdd, TypeAddV1:
		return asMsg(DecodeAddMsg(buf))
	case TypeDelete, TypeDeleteV1:
		return asMsg(DecodeDeleteMsg(buf))
	case TypeModifyDN, TypeModifyDNV1:
		return asMsg(DecodeModifyDNMsg(buf))
	case TypeAck:
		return asMsg(DecodeAckMsg(buf))
	case TypeReplicaOffline:
		return asMsg(DecodeReplicaOfflineMsg(buf))
	case TypeStartECLSession:
		return asMsg(DecodeStartECLSessionMsg(buf))
	case TypeTopology:
		return asMsg(DecodeTopologyMsg(buf, v))
	case TypeServerStart, TypeServerStartV1:
		return asMsg(DecodeServerStartMsg(buf))
	case TypeReplServerStart, TypeReplServerStartV1:
		return asMsg(DecodeReplServerStartMsg(buf))
	case TypeStartSession:
		return asMsg(DecodeStartSessionMsg(buf, v))
	case TypeChangeTimeHeartbeat:
		return asMsg(DecodeChangeTimeHeartbeatMsg(buf, v))
	case TypeWindow:
		return asMsg(DecodeWindowMsg(buf))
	case TypeWindowProbe:
		return asMsg(DecodeWindowProbeMsg(buf))
	case TypeResetGenerationID:
		return asMsg(DecodeResetGenerationIDMsg(buf))
	case TypeStop:
		return asMsg(DecodeStopMsg(buf))
	default:
		return nil, newError(tag.String()).Tag(buf[0]).Cause(ErrUnknownTag).Err()
	}
}
