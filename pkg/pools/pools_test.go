package pools

import (
	"bytes"
	"sync"
	"testing"
)

func TestBytePool_Get(t *testing.T) {
	pool := NewBytePool()

	tests := []struct {
		name   string
		size   int
		minCap int
	}{
		{"heartbeat", 1, 1},
		{"tiny_exact", TinySize, TinySize},
		{"ack", 48, 48},
		{"start_header", 200, 200},
		{"topology", LargeSize, LargeSize},
		{"bulk", 3000, 3000},
		{"oversized", 10000, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := pool.Get(tt.size)
			if len(b) != 0 {
				t.Errorf("Get(%d) length = %d, want 0", tt.size, len(b))
			}
			if cap(b) < tt.minCap {
				t.Errorf("Get(%d) capacity = %d, want >= %d", tt.size, cap(b), tt.minCap)
			}
		})
	}
}

func TestBytePool_GetSized(t *testing.T) {
	pool := NewBytePool()
	b := pool.GetSized(100)
	if len(b) != 100 {
		t.Errorf("GetSized(100) length = %d, want 100", len(b))
	}
}

// TestBytePool_PutOddCapacity tests that a returned slice whose capacity
// sits between two classes never satisfies a larger request.
func TestBytePool_PutOddCapacity(t *testing.T) {
	pool := NewBytePool()

	for i := 0; i < 10; i++ {
		pool.Put(make([]byte, 0, 200))
	}

	b := pool.Get(MediumSize)
	if cap(b) < MediumSize {
		t.Errorf("Get(%d) capacity = %d after odd Put", MediumSize, cap(b))
	}
}

func TestBytePool_OversizedNotPooled(t *testing.T) {
	pool := NewBytePool()
	pool.Put(make([]byte, MaxPool+1000))
	pool.Put(make([]byte, 2)) // below the smallest class
}

func TestDefaultBytePool(t *testing.T) {
	b := GetBytes(100)
	if cap(b) < 100 {
		t.Errorf("GetBytes(100) capacity = %d, want >= 100", cap(b))
	}
	PutBytes(b)

	b2 := GetBytesSized(50)
	if len(b2) != 50 {
		t.Errorf("GetBytesSized(50) length = %d, want 50", len(b2))
	}
	PutBytes(b2)
}

func TestBufferBuilder(t *testing.T) {
	b := NewBufferBuilder(64)
	defer b.Release()

	b.WriteByte(0x01)
	b.WriteUint16BE(0x0107)
	b.WriteUint32BE(0x12345678)
	b.WriteUint64BE(0xABCDEF0123456789)
	b.WriteString("hello")
	b.Write([]byte{0xFF, 0xFE})

	want := []byte{
		0x01,
		0x01, 0x07,
		0x12, 0x34, 0x56, 0x78,
		0xAB, 0xCD, 0xEF, 0x01, 0x23, 0x45, 0x67, 0x89,
		'h', 'e', 'l', 'l', 'o',
		0xFF, 0xFE,
	}
	if got := b.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %x, want %x", got, want)
	}
}

func TestBufferBuilder_Detach(t *testing.T) {
	b := NewBufferBuilder(TinySize)
	b.WriteString("detached")

	out := b.Detach()
	if string(out) != "detached" {
		t.Errorf("Detach() = %q, want %q", out, "detached")
	}
	if cap(out) != len(out) {
		t.Errorf("Detach() capacity = %d, want exact %d", cap(out), len(out))
	}
	if b.Bytes() != nil {
		t.Error("builder still holds a buffer after Detach")
	}
}

func TestBufferBuilder_Reset(t *testing.T) {
	b := NewBufferBuilder(32)
	defer b.Release()

	b.WriteString("test data")
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("After Reset() Len() = %d, want 0", b.Len())
	}

	b.WriteString("new data")
	if string(b.Bytes()) != "new data" {
		t.Errorf("After Reset and write, got %q, want %q", string(b.Bytes()), "new data")
	}
}

func TestBytePool_Concurrent(t *testing.T) {
	pool := NewBytePool()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b := NewBufferBuilderFrom(pool, 64)
				b.WriteString("concurrent test data")
				b.Release()
			}
		}()
	}

	wg.Wait()
}

func BenchmarkBufferBuilder(b *testing.B) {
	for i := 0; i < b.N; i++ {
		bb := NewBufferBuilder(64)
		bb.WriteByte(0x09)
		bb.WriteUint64BE(12345)
		bb.WriteString("dc=example")
		_ = bb.Bytes()
		bb.Release()
	}
}

func BenchmarkBufferBuilder_WithoutPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := make([]byte, 0, 64)
		buf = append(buf, 0x09)
		buf = append(buf, 0, 0, 0, 0, 0, 0, 0x30, 0x39)
		buf = append(buf, "dc=example"...)
		_ = buf
	}
}
