//go:build zmq
// +build zmq

package replication

import (
	"fmt"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// zmqSocket wraps a ZeroMQ PAIR socket.
type zmqSocket struct {
	sock *zmq.Socket
}

func (s *zmqSocket) Send(data []byte) error {
	_, err := s.sock.SendBytes(data, 0)
	return zmqError(err)
}

func (s *zmqSocket) Recv() ([]byte, error) {
	data, err := s.sock.RecvBytes(0)
	return data, zmqError(err)
}

func (s *zmqSocket) Close() error {
	return s.sock.Close()
}

func (s *zmqSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetRcvtimeo(d)
}

func (s *zmqSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetSndtimeo(d)
}

func (s *zmqSocket) Listen(addr string) error {
	return s.sock.Bind(addr)
}

func (s *zmqSocket) Dial(addr string) error {
	return s.sock.Connect(addr)
}

func zmqError(err error) error {
	if err == nil {
		return nil
	}
	switch zmq.AsErrno(err) {
	case zmq.Errno(syscall.EAGAIN):
		return ErrTimeout
	case zmq.ETERM, zmq.Errno(syscall.ENOTSOCK):
		return ErrSocketClosed
	}
	return err
}

// ZMQSocketFactory opens ZeroMQ PAIR sockets. Inbound frames larger
// than MaxRecvSize make libzmq drop the peer; zero means no limit.
type ZMQSocketFactory struct {
	MaxRecvSize int
}

// NewZMQSocketFactory returns a factory limiting inbound frames to
// maxRecvSize bytes.
func NewZMQSocketFactory(maxRecvSize int) *ZMQSocketFactory {
	return &ZMQSocketFactory{MaxRecvSize: maxRecvSize}
}

func (f *ZMQSocketFactory) NewListener() (ListenSocket, error) { return f.open() }
func (f *ZMQSocketFactory) NewDialer() (DialSocket, error)     { return f.open() }

func (f *ZMQSocketFactory) open() (*zmqSocket, error) {
	sock, err := zmq.NewSocket(zmq.PAIR)
	if err != nil {
		return nil, fmt.Errorf("zmq: open pair socket: %w", err)
	}
	// don't block Close on unsent frames
	if err := sock.SetLinger(0); err != nil {
		sock.Close()
		return nil, err
	}
	if f.MaxRecvSize > 0 {
		if err := sock.SetMaxmsgsize(int64(f.MaxRecvSize)); err != nil {
			sock.Close()
			return nil, fmt.Errorf("zmq: max message size: %w", err)
		}
	}
	return &zmqSocket{sock: sock}, nil
}

var _ SocketFactory = (*ZMQSocketFactory)(nil)

func init() {
	RegisterTransport("zmq", func(maxFrameSize int) SocketFactory {
		return NewZMQSocketFactory(maxFrameSize)
	})
}
