package logging

import (
	"fmt"
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}

// Replication session fields

// MsgType names a message by its wire tag name (e.g. "MODIFY").
func MsgType(name string) Field {
	return String("msg_type", name)
}

// ProtocolVersion is the version a message was encoded or decoded with.
func ProtocolVersion(v int) Field {
	return Int("protocol_version", v)
}

// CSN takes any change sequence number printer.
func CSN(c fmt.Stringer) Field {
	return String("csn", c.String())
}

func ServerID(id int) Field {
	return Int("server_id", id)
}

func SessionID(id string) Field {
	return String("session_id", id)
}

func Peer(addr string) Field {
	return String("peer", addr)
}

// Direction is "send" or "recv".
func Direction(dir string) Field {
	return String("direction", dir)
}

func Bytes(n int) Field {
	return Int("bytes", n)
}

func BaseDN(dn string) Field {
	return String("base_dn", dn)
}
