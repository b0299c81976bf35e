package protocol

import (
	"bytes"
	"encoding/binary"
	"strconv"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

// Scanner reads typed fields back out of a buffer written by Builder.
//
// Errors are sticky: the first failure is recorded, every later read
// returns a zero value, and Err reports the failure. One Scanner serves
// exactly one decode.
type Scanner struct {
	buf []byte
	pos int
	err error
}

// NewScanner returns a scanner positioned at the start of buf.
func NewScanner(buf []byte) *Scanner {
	return &Scanner{buf: buf}
}

// Err returns the first decode failure, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Offset returns the cursor position.
func (s *Scanner) Offset() int {
	return s.pos
}

// Remaining returns the number of unread bytes.
func (s *Scanner) Remaining() int {
	return len(s.buf) - s.pos
}

// IsEmpty reports whether the whole buffer has been consumed.
func (s *Scanner) IsEmpty() bool {
	return s.pos >= len(s.buf)
}

// Fail records err as a decode failure at the current offset unless an
// earlier failure is already recorded.
func (s *Scanner) Fail(field string, cause error) {
	if s.err == nil {
		s.err = newError("").Field(field).At(s.pos).Cause(cause).Err()
	}
}

// ExpectEnd records a failure if unread bytes remain.
func (s *Scanner) ExpectEnd() {
	if s.err == nil && !s.IsEmpty() {
		s.Fail("end", ErrTrailingBytes)
	}
}

func (s *Scanner) take(n int, field string) []byte {
	if s.err != nil {
		return nil
	}
	if n < 0 {
		s.Fail(field, ErrBadLength)
		return nil
	}
	if s.Remaining() < n {
		s.Fail(field, ErrTruncated)
		return nil
	}
	p := s.buf[s.pos : s.pos+n]
	s.pos += n
	return p
}

// Peek returns the next byte without consuming it.
func (s *Scanner) Peek() (byte, bool) {
	if s.err != nil || s.IsEmpty() {
		return 0, false
	}
	return s.buf[s.pos], true
}

// NextByte reads one byte.
func (s *Scanner) NextByte() byte {
	p := s.take(1, "byte")
	if p == nil {
		return 0
	}
	return p[0]
}

// NextBool reads a byte and reports whether it is non-zero.
func (s *Scanner) NextBool() bool {
	return s.NextByte() != 0
}

// NextShort reads a 2 byte integer.
func (s *Scanner) NextShort() int16 {
	p := s.take(2, "short")
	if p == nil {
		return 0
	}
	return int16(binary.BigEndian.Uint16(p))
}

// NextInt reads a 4 byte integer.
func (s *Scanner) NextInt() int32 {
	p := s.take(4, "int")
	if p == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(p))
}

// NextLong reads an 8 byte integer.
func (s *Scanner) NextLong() int64 {
	p := s.take(8, "long")
	if p == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(p))
}

// nextZeroTerminated returns the span up to the next NUL and consumes the NUL.
func (s *Scanner) nextZeroTerminated(field string) ([]byte, bool) {
	if s.err != nil {
		return nil, false
	}
	idx := bytes.IndexByte(s.buf[s.pos:], 0)
	if idx < 0 {
		s.Fail(field, ErrMissingTerminator)
		return nil, false
	}
	p := s.buf[s.pos : s.pos+idx]
	s.pos += idx + 1
	return p, true
}

// NextString reads a NUL-terminated UTF-8 string.
func (s *Scanner) NextString() string {
	p, _ := s.nextZeroTerminated("string")
	return string(p)
}

// NextStrings reads a 4 byte count followed by that many strings.
func (s *Scanner) NextStrings() []string {
	n := s.NextInt()
	return s.nextCountedStrings(int(n), "strings")
}

// NextByteCountStrings reads a 1 byte count followed by that many strings.
func (s *Scanner) NextByteCountStrings() []string {
	n := s.NextByte()
	return s.nextCountedStrings(int(n), "byte-counted strings")
}

func (s *Scanner) nextCountedStrings(n int, field string) []string {
	if s.err != nil {
		return nil
	}
	// every string needs at least its terminator
	if n < 0 || n > s.Remaining() {
		s.Fail(field, ErrBadLength)
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		str := s.NextString()
		if s.err != nil {
			return nil
		}
		out = append(out, str)
	}
	return out
}

// NextCSN reads a binary CSN.
func (s *Scanner) NextCSN() csn.CSN {
	p := s.take(csn.ByteEncodingLength, "csn")
	if p == nil {
		return csn.CSN{}
	}
	c, err := csn.FromBytes(p)
	if err != nil {
		s.Fail("csn", err)
	}
	return c
}

// NextCSNUTF8 reads a NUL-terminated hex CSN.
func (s *Scanner) NextCSNUTF8() csn.CSN {
	p, ok := s.nextZeroTerminated("csn")
	if !ok {
		return csn.CSN{}
	}
	c, err := csn.Parse(string(p))
	if err != nil {
		s.pos -= len(p) + 1
		s.Fail("csn", causeWith(ErrBadNumber, err))
		return csn.CSN{}
	}
	return c
}

// NextLongUTF8 reads NUL-terminated decimal text as a 64 bit integer.
func (s *Scanner) NextLongUTF8() int64 {
	return s.nextDecimal("long", 64)
}

// NextIntUTF8 reads NUL-terminated decimal text as a 32 bit integer.
func (s *Scanner) NextIntUTF8() int {
	return int(s.nextDecimal("int", 32))
}

func (s *Scanner) nextDecimal(field string, bits int) int64 {
	p, ok := s.nextZeroTerminated(field)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(string(p), 10, bits)
	if err != nil {
		s.pos -= len(p) + 1
		s.Fail(field, causeWith(ErrBadNumber, err))
		return 0
	}
	return v
}

// NextBytes reads exactly n raw bytes into a fresh slice.
func (s *Scanner) NextBytes(n int) []byte {
	p := s.take(n, "bytes")
	if p == nil {
		return nil
	}
	return bytes.Clone(p)
}

// SkipZeroSeparator consumes one byte that must be NUL.
func (s *Scanner) SkipZeroSeparator() {
	if b := s.NextByte(); s.err == nil && b != 0 {
		s.pos--
		s.Fail("separator", ErrMissingTerminator)
	}
}

// Rest consumes and returns every unread byte.
func (s *Scanner) Rest() []byte {
	return s.NextBytes(s.Remaining())
}
