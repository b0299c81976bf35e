package replication

import (
	"errors"
	"fmt"

	"github.com/golang/snappy"

	"github.com/dd0wney/cluso-replication/pkg/pools"
)

// Frame flags. Every transport frame is one flag byte followed by the
// encoded message, compressed or not.
const (
	frameRaw    byte = 0x00
	frameSnappy byte = 0x01

	frameHeaderSize = 1
)

// ErrBadFrame is returned for frames that cannot be unwrapped.
var ErrBadFrame = errors.New("replication: malformed frame")

// buildFrame wraps msg into a pooled frame. Messages of at least
// threshold bytes are snappy compressed when that makes them smaller;
// threshold <= 0 disables compression. The caller must Release the
// builder once the frame has been sent.
func buildFrame(msg []byte, threshold int) (frame *pools.BufferBuilder, compressed bool) {
	if threshold > 0 && len(msg) >= threshold {
		scratch := pools.GetBytesSized(snappy.MaxEncodedLen(len(msg)))
		enc := snappy.Encode(scratch, msg)
		if len(enc) < len(msg) {
			frame = pools.NewBufferBuilder(frameHeaderSize + len(enc))
			frame.WriteByte(frameSnappy)
			frame.Write(enc)
			pools.PutBytes(scratch)
			return frame, true
		}
		pools.PutBytes(scratch)
	}

	frame = pools.NewBufferBuilder(frameHeaderSize + len(msg))
	frame.WriteByte(frameRaw)
	frame.Write(msg)
	return frame, false
}

// parseFrame returns the message carried by frame. maxSize bounds the
// decompressed length; maxSize <= 0 means unbounded.
func parseFrame(frame []byte, maxSize int) (msg []byte, compressed bool, err error) {
	if len(frame) < frameHeaderSize {
		return nil, false, fmt.Errorf("%w: empty frame", ErrBadFrame)
	}

	body := frame[frameHeaderSize:]
	switch frame[0] {
	case frameRaw:
		if maxSize > 0 && len(body) > maxSize {
			return nil, false, fmt.Errorf("%w: %d byte message exceeds %d", ErrBadFrame, len(body), maxSize)
		}
		return body, false, nil
	case frameSnappy:
		n, err := snappy.DecodedLen(body)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		if maxSize > 0 && n > maxSize {
			return nil, true, fmt.Errorf("%w: %d byte message exceeds %d", ErrBadFrame, n, maxSize)
		}
		msg, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, true, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
		return msg, true, nil
	}
	return nil, false, fmt.Errorf("%w: unknown flag 0x%02x", ErrBadFrame, frame[0])
}
