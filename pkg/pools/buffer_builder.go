package pools

// BufferBuilder provides a convenient way to build byte slices with pooling.
type BufferBuilder struct {
	buf  []byte
	pool *BytePool
}

// NewBufferBuilder creates a new buffer builder with the given initial capacity.
func NewBufferBuilder(initialCap int) *BufferBuilder {
	return NewBufferBuilderFrom(defaultBytePool, initialCap)
}

// NewBufferBuilderFrom creates a buffer builder drawing from the given pool.
func NewBufferBuilderFrom(pool *BytePool, initialCap int) *BufferBuilder {
	return &BufferBuilder{
		buf:  pool.Get(initialCap),
		pool: pool,
	}
}

// Write appends bytes to the buffer.
func (b *BufferBuilder) Write(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteByte appends a single byte.
func (b *BufferBuilder) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteUint16BE appends a uint16 in big-endian order.
func (b *BufferBuilder) WriteUint16BE(v uint16) {
	b.buf = append(b.buf, byte(v>>8), byte(v))
}

// WriteUint32BE appends a uint32 in big-endian order.
func (b *BufferBuilder) WriteUint32BE(v uint32) {
	b.buf = append(b.buf,
		byte(v>>24),
		byte(v>>16),
		byte(v>>8),
		byte(v),
	)
}

// WriteUint64BE appends a uint64 in big-endian order.
func (b *BufferBuilder) WriteUint64BE(v uint64) {
	b.buf = append(b.buf,
		byte(v>>56),
		byte(v>>48),
		byte(v>>40),
		byte(v>>32),
		byte(v>>24),
		byte(v>>16),
		byte(v>>8),
		byte(v),
	)
}

// WriteString appends a string.
func (b *BufferBuilder) WriteString(s string) {
	b.buf = append(b.buf, s...)
}

// Bytes returns the built buffer. The slice aliases pooled memory and is
// only valid until Release.
func (b *BufferBuilder) Bytes() []byte {
	return b.buf
}

// Detach returns an exact-size copy of the buffer and releases the pooled
// storage. The builder must not be used afterwards.
func (b *BufferBuilder) Detach() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.Release()
	return out
}

// Len returns the current length of the buffer.
func (b *BufferBuilder) Len() int {
	return len(b.buf)
}

// Reset resets the buffer for reuse.
func (b *BufferBuilder) Reset() {
	b.buf = b.buf[:0]
}

// Release returns the buffer to the pool. After Release, the builder should not be used.
func (b *BufferBuilder) Release() {
	if b.pool != nil && b.buf != nil {
		b.pool.Put(b.buf)
	}
	b.buf = nil
}
