// Package csn implements change sequence numbers: the totally ordered
// identifiers stamped on every replicated change, plus the per-replica
// state summaries built from them.
package csn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

const (
	// ByteEncodingLength is the size of the binary form:
	// timestamp (8) + server id (2) + sequence number (4).
	ByteEncodingLength = 14

	// StringEncodingLength is the size of the hex text form.
	StringEncodingLength = 28
)

var (
	ErrBadLength = errors.New("invalid CSN length")
	ErrBadHex    = errors.New("invalid CSN hex digits")
)

// CSN identifies one change. The zero value is the oldest possible CSN.
type CSN struct {
	Timestamp int64
	SeqNum    int32
	ServerID  uint16
}

// New creates a CSN from its three components.
func New(timestamp int64, seqNum int32, serverID uint16) CSN {
	return CSN{Timestamp: timestamp, SeqNum: seqNum, ServerID: serverID}
}

// Compare returns -1, 0 or +1. CSNs order by timestamp, then sequence
// number, then server id.
func (c CSN) Compare(o CSN) int {
	switch {
	case c.Timestamp != o.Timestamp:
		return cmp(c.Timestamp < o.Timestamp)
	case c.SeqNum != o.SeqNum:
		return cmp(c.SeqNum < o.SeqNum)
	case c.ServerID != o.ServerID:
		return cmp(c.ServerID < o.ServerID)
	}
	return 0
}

func cmp(less bool) int {
	if less {
		return -1
	}
	return 1
}

// Before reports whether c is strictly older than o.
func (c CSN) Before(o CSN) bool { return c.Compare(o) < 0 }

// After reports whether c is strictly newer than o.
func (c CSN) After(o CSN) bool { return c.Compare(o) > 0 }

// IsZero reports whether c is the zero CSN.
func (c CSN) IsZero() bool { return c == CSN{} }

// String returns the 28 character hex form.
func (c CSN) String() string {
	return fmt.Sprintf("%016x%04x%08x", uint64(c.Timestamp), c.ServerID, uint32(c.SeqNum))
}

// MarshalText implements encoding.TextMarshaler.
func (c CSN) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CSN) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Parse decodes the hex text form produced by String.
func Parse(s string) (CSN, error) {
	if len(s) != StringEncodingLength {
		return CSN{}, fmt.Errorf("%w: %d characters", ErrBadLength, len(s))
	}
	ts, err := strconv.ParseUint(s[0:16], 16, 64)
	if err != nil {
		return CSN{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	sid, err := strconv.ParseUint(s[16:20], 16, 16)
	if err != nil {
		return CSN{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	seq, err := strconv.ParseUint(s[20:28], 16, 32)
	if err != nil {
		return CSN{}, fmt.Errorf("%w: %q", ErrBadHex, s)
	}
	return New(int64(ts), int32(seq), uint16(sid)), nil
}

// AppendBinary appends the 14 byte form of c to b.
func (c CSN) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, uint64(c.Timestamp))
	b = binary.BigEndian.AppendUint16(b, c.ServerID)
	return binary.BigEndian.AppendUint32(b, uint32(c.SeqNum))
}

// FromBytes decodes the binary form. b must hold exactly ByteEncodingLength bytes.
func FromBytes(b []byte) (CSN, error) {
	if len(b) != ByteEncodingLength {
		return CSN{}, fmt.Errorf("%w: %d bytes", ErrBadLength, len(b))
	}
	return New(
		int64(binary.BigEndian.Uint64(b[0:8])),
		int32(binary.BigEndian.Uint32(b[10:14])),
		binary.BigEndian.Uint16(b[8:10]),
	), nil
}
