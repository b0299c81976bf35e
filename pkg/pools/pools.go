// Package pools provides object pooling for reducing GC pressure.
//
// The replication codec encodes every outgoing message into a fresh
// buffer; these pools let the encoder borrow a slice of the right size
// class instead of allocating on each send:
//
//   - BytePool: Size-class based byte slice pooling
//   - BufferBuilder: Big-endian buffer construction with pooling
package pools
