package protocol

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/pools"
)

// ErrEmbeddedNUL is returned when a string field would contain the NUL
// byte that terminates it on the wire.
var ErrEmbeddedNUL = errors.New("string contains NUL byte")

// Footprints of fixed-width fields, used to pre-size buffers and to
// compute message sizes without encoding.
func Booleans(n int) int { return n }
func Octets(n int) int   { return n }
func Shorts(n int) int   { return 2 * n }
func Ints(n int) int     { return 4 * n }
func Longs(n int) int    { return 8 * n }
func CSNs(n int) int     { return csn.ByteEncodingLength * n }
func CSNsUTF8(n int) int { return (csn.StringEncodingLength + 1) * n }

// StringSize is the footprint of a NUL-terminated string.
func StringSize(s string) int { return len(s) + 1 }

// IntUTF8Size is the footprint of v written as NUL-terminated decimal.
func IntUTF8Size(v int64) int { return len(strconv.FormatInt(v, 10)) + 1 }

// Builder serializes typed fields into one big-endian buffer. A
// Builder is single use: Finish hands the bytes out and releases the
// pooled storage.
type Builder struct {
	bb  *pools.BufferBuilder
	err error
}

// NewBuilder returns a builder with room for sizeHint bytes.
func NewBuilder(sizeHint int) *Builder {
	return &Builder{bb: pools.NewBufferBuilder(sizeHint)}
}

// AppendByte appends one byte.
func (b *Builder) AppendByte(v byte) *Builder {
	b.bb.WriteByte(v)
	return b
}

// AppendShort appends a 2 byte integer.
func (b *Builder) AppendShort(v int16) *Builder {
	b.bb.WriteUint16BE(uint16(v))
	return b
}

// AppendInt appends a 4 byte integer.
func (b *Builder) AppendInt(v int32) *Builder {
	b.bb.WriteUint32BE(uint32(v))
	return b
}

// AppendLong appends an 8 byte integer.
func (b *Builder) AppendLong(v int64) *Builder {
	b.bb.WriteUint64BE(uint64(v))
	return b
}

// AppendBool appends 1 for true, 0 for false.
func (b *Builder) AppendBool(v bool) *Builder {
	if v {
		return b.AppendByte(1)
	}
	return b.AppendByte(0)
}

// AppendString appends s followed by a NUL separator.
func (b *Builder) AppendString(s string) *Builder {
	if b.err == nil && bytes.IndexByte([]byte(s), 0) >= 0 {
		b.err = ErrEmbeddedNUL
	}
	b.bb.WriteString(s)
	b.bb.WriteByte(0)
	return b
}

// AppendStrings appends a 4 byte count followed by each string.
func (b *Builder) AppendStrings(ss []string) *Builder {
	b.AppendInt(int32(len(ss)))
	for _, s := range ss {
		b.AppendString(s)
	}
	return b
}

// AppendByteCountStrings appends a 1 byte count followed by each string.
// Lists longer than 255 entries cannot be framed this way.
func (b *Builder) AppendByteCountStrings(ss []string) *Builder {
	if len(ss) > 255 && b.err == nil {
		b.err = ErrBadLength
	}
	b.AppendByte(byte(len(ss)))
	for _, s := range ss {
		b.AppendString(s)
	}
	return b
}

// AppendCSN appends the binary form of c.
func (b *Builder) AppendCSN(c csn.CSN) *Builder {
	b.bb.WriteUint64BE(uint64(c.Timestamp))
	b.bb.WriteUint16BE(c.ServerID)
	b.bb.WriteUint32BE(uint32(c.SeqNum))
	return b
}

// AppendIntUTF8 appends v as NUL-terminated decimal text.
func (b *Builder) AppendIntUTF8(v int) *Builder {
	return b.AppendLongUTF8(int64(v))
}

// AppendLongUTF8 appends v as NUL-terminated decimal text.
func (b *Builder) AppendLongUTF8(v int64) *Builder {
	b.bb.WriteString(strconv.FormatInt(v, 10))
	b.bb.WriteByte(0)
	return b
}

// AppendCSNUTF8 appends the hex text form of c, NUL-terminated.
func (b *Builder) AppendCSNUTF8(c csn.CSN) *Builder {
	b.bb.WriteString(c.String())
	b.bb.WriteByte(0)
	return b
}

// AppendBytes appends raw bytes.
func (b *Builder) AppendBytes(p []byte) *Builder {
	b.bb.Write(p)
	return b
}

// AppendZeroTerminatedBytes appends raw bytes followed by a NUL.
func (b *Builder) AppendZeroTerminatedBytes(p []byte) *Builder {
	b.bb.Write(p)
	b.bb.WriteByte(0)
	return b
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int {
	return b.bb.Len()
}

// Finish returns the encoded bytes. It fails if a string field carried
// an embedded NUL or a byte-counted list overflowed.
func (b *Builder) Finish() ([]byte, error) {
	if b.err != nil {
		b.bb.Release()
		return nil, b.err
	}
	return b.bb.Detach(), nil
}
