package protocol

import "fmt"

// Version is a negotiated replication protocol version.
type Version int16

const (
	V1 Version = iota + 1
	V2
	V3
	V4
	V5
	V6
	V7
	V8

	// Current is the newest version this codec speaks.
	Current = V8
)

// V1Real is the byte V1 peers put where later versions put the version
// number: the ASCII digit '1' of the text-encoded version they sent.
const V1Real byte = '1'

// Valid reports whether v is a known protocol version.
func (v Version) Valid() bool {
	return v >= V1 && v <= Current
}

func (v Version) String() string {
	return fmt.Sprintf("V%d", int16(v))
}

// Capability is a protocol feature that appeared in a given version.
type Capability int

const (
	// CapVersionedHeader: update and start headers carry a version
	// byte, a group id and assured replication parameters.
	CapVersionedHeader Capability = iota
	// CapExplicitLengths: update payloads are length prefixed and carry
	// ECL include attributes; topology and start session carry ECL
	// include sets; replication servers advertise URL and weight.
	CapExplicitLengths
	// CapECLIncludesForDeletes: a separate ECL include set for deletes.
	CapECLIncludesForDeletes
	// CapDSURL: topology entries carry the directory server URL.
	CapDSURL
	// CapBinaryCSN: change time heartbeats carry binary CSNs.
	CapBinaryCSN
	// CapReplicaOffline: the replica offline message exists.
	CapReplicaOffline
)

// introducedIn is the single place mapping features to versions.
var introducedIn = map[Capability]Version{
	CapVersionedHeader:       V2,
	CapExplicitLengths:       V4,
	CapECLIncludesForDeletes: V5,
	CapDSURL:                 V6,
	CapBinaryCSN:             V7,
	CapReplicaOffline:        V8,
}

// Supports reports whether version v carries capability c.
func (v Version) Supports(c Capability) bool {
	since, ok := introducedIn[c]
	return ok && v >= since
}

// Negotiate returns the version two peers share.
func Negotiate(local, peer Version) Version {
	if peer < local {
		return peer
	}
	return local
}
