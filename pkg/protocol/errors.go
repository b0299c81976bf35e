package protocol

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by DecodeError.
var (
	ErrTruncated          = errors.New("not enough bytes remaining")
	ErrMissingTerminator  = errors.New("missing NUL terminator")
	ErrUnexpectedTag      = errors.New("unexpected message tag")
	ErrUnknownTag         = errors.New("unknown message tag")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrBadNumber          = errors.New("invalid decimal field")
	ErrBadOrdinal         = errors.New("enum value out of range")
	ErrBadLength          = errors.New("invalid length prefix")
	ErrTrailingBytes      = errors.New("unexpected trailing bytes")
	ErrBadPayload         = errors.New("malformed payload")
	ErrDuplicateServer    = errors.New("duplicate server id")
	ErrServerIDMismatch   = errors.New("server id does not match CSN")
	ErrEmptyMessage       = errors.New("empty message")
)

// ErrNotRepresentable is returned by Bytes when a message cannot be
// expressed in the requested protocol version. Callers check for it
// before choosing what to send to an older peer; it is not a decode error.
var ErrNotRepresentable = errors.New("message not representable in protocol version")

// DecodeError describes why a buffer could not be turned into a message.
type DecodeError struct {
	Type   string // message type being decoded (e.g., "ModifyMsg")
	Tag    int    // offending tag, -1 when not relevant
	Field  string // field being read
	Offset int    // cursor position when the failure happened
	Cause  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	typ := e.Type
	if typ == "" {
		typ = "message"
	}
	switch {
	case e.Tag >= 0:
		return fmt.Sprintf("decode %s: tag %d: %v", typ, e.Tag, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("decode %s (field %s at offset %d): %v", typ, e.Field, e.Offset, e.Cause)
	}
	return fmt.Sprintf("decode %s at offset %d: %v", typ, e.Offset, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *DecodeError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// IsDecodeError reports whether err came out of a decoder.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// ErrorBuilder provides a fluent interface for building DecodeErrors.
type ErrorBuilder struct {
	err DecodeError
}

func newError(typ string) *ErrorBuilder {
	return &ErrorBuilder{err: DecodeError{Type: typ, Tag: -1}}
}

// Tag records the offending tag byte.
func (b *ErrorBuilder) Tag(tag byte) *ErrorBuilder {
	b.err.Tag = int(tag)
	return b
}

// Field records the field being decoded.
func (b *ErrorBuilder) Field(name string) *ErrorBuilder {
	b.err.Field = name
	return b
}

// At records the cursor offset.
func (b *ErrorBuilder) At(offset int) *ErrorBuilder {
	b.err.Offset = offset
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Causef sets a cause wrapping sentinel with extra detail.
func (b *ErrorBuilder) Causef(sentinel error, format string, args ...any) *ErrorBuilder {
	b.err.Cause = fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
	return b
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}

// tagError reports a tag outside a type's allowed set.
func tagError(typ string, tag byte) error {
	return newError(typ).Tag(tag).Cause(ErrUnexpectedTag).Err()
}

// annotate stamps the message type onto decode errors produced below the
// message level (scanner failures, nested codecs).
func annotate(err error, typ string) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Type == "" {
			de.Type = typ
		}
		return de
	}
	return newError(typ).Cause(err).Err()
}

// ErrInvalidField is returned by Bytes when a field value has no wire form.
var ErrInvalidField = errors.New("field value cannot be encoded")

func causeWith(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}

var reasons = []struct {
	target error
	label  string
}{
	{ErrNotRepresentable, "not_representable"},
	{ErrInvalidField, "invalid_field"},
	{ErrEmbeddedNUL, "embedded_nul"},
	{ErrTruncated, "truncated"},
	{ErrMissingTerminator, "missing_terminator"},
	{ErrUnexpectedTag, "unexpected_tag"},
	{ErrUnknownTag, "unknown_tag"},
	{ErrUnsupportedVersion, "unsupported_version"},
	{ErrBadNumber, "bad_number"},
	{ErrBadOrdinal, "bad_ordinal"},
	{ErrBadLength, "bad_length"},
	{ErrTrailingBytes, "trailing_bytes"},
	{ErrDuplicateServer, "duplicate_server"},
	{ErrServerIDMismatch, "server_id_mismatch"},
	{ErrEmptyMessage, "empty"},
	{ErrBadPayload, "bad_payload"},
}

// Reason returns a short label naming the codec sentinel behind err,
// for metrics and logs. Errors from outside the codec give "other".
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.target) {
			return r.label
		}
	}
	return "other"
}
