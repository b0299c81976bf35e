package replication

import (
	"errors"
	"fmt"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pair"

	// tcp, ipc and inproc endpoints
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// NNGSocketFactory opens mangos PAIR sockets. Inbound frames larger than
// MaxRecvSize are discarded by mangos before they reach a Conn; zero
// leaves the limit to mangos.
type NNGSocketFactory struct {
	MaxRecvSize int
}

// NewNNGSocketFactory returns a factory limiting inbound frames to
// maxRecvSize bytes.
func NewNNGSocketFactory(maxRecvSize int) *NNGSocketFactory {
	return &NNGSocketFactory{MaxRecvSize: maxRecvSize}
}

func (f *NNGSocketFactory) NewListener() (ListenSocket, error) { return f.open() }
func (f *NNGSocketFactory) NewDialer() (DialSocket, error)     { return f.open() }

func (f *NNGSocketFactory) open() (*nngSocket, error) {
	sock, err := pair.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("nng: open pair socket: %w", err)
	}
	if f.MaxRecvSize > 0 {
		if err := sock.SetOption(mangos.OptionMaxRecvSize, f.MaxRecvSize); err != nil {
			sock.Close()
			return nil, fmt.Errorf("nng: max receive size: %w", err)
		}
	}
	return &nngSocket{sock: sock}, nil
}

var _ SocketFactory = (*NNGSocketFactory)(nil)

// nngSocket adapts a mangos socket to ListenSocket and DialSocket.
type nngSocket struct {
	sock mangos.Socket
}

func (s *nngSocket) Listen(addr string) error { return s.sock.Listen(addr) }
func (s *nngSocket) Dial(addr string) error   { return s.sock.Dial(addr) }
func (s *nngSocket) Close() error             { return nngError(s.sock.Close()) }

func (s *nngSocket) Send(frame []byte) error {
	return nngError(s.sock.Send(frame))
}

func (s *nngSocket) Recv() ([]byte, error) {
	frame, err := s.sock.Recv()
	if err != nil {
		return nil, nngError(err)
	}
	return frame, nil
}

func (s *nngSocket) SetRecvDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionRecvDeadline, d)
}

func (s *nngSocket) SetSendDeadline(d time.Duration) error {
	return s.sock.SetOption(mangos.OptionSendDeadline, d)
}

func nngError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mangos.ErrRecvTimeout), errors.Is(err, mangos.ErrSendTimeout):
		return ErrTimeout
	case errors.Is(err, mangos.ErrClosed):
		return ErrSocketClosed
	}
	return err
}

func init() {
	RegisterTransport("nng", func(maxFrameSize int) SocketFactory {
		return NewNNGSocketFactory(maxFrameSize)
	})
}
