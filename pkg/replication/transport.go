package replication

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dd0wney/cluso-replication/pkg/logging"
)

// Transport errors shared by every socket implementation.
var (
	// ErrTimeout is returned by Send and Recv when the socket deadline
	// passes. Callers polling under a context treat it as "try again".
	ErrTimeout = errors.New("replication: socket deadline exceeded")
	// ErrSocketClosed is returned once the socket has been closed.
	ErrSocketClosed = errors.New("replication: socket closed")
)

// Socket is one end of a point-to-point replication link. Send must not
// retain data after it returns.
// This interface abstracts the underlying transport (NNG, ZMQ, or a pipe in tests).
type Socket interface {
	io.Closer
	Send(data []byte) error
	Recv() ([]byte, error)
	SetRecvDeadline(d time.Duration) error
	SetSendDeadline(d time.Duration) error
}

// ListenSocket is a socket that can bind to an address and accept a peer.
type ListenSocket interface {
	Socket
	Listen(addr string) error
}

// DialSocket is a socket that can connect to a remote address.
type DialSocket interface {
	Socket
	Dial(addr string) error
}

// SocketFactory creates the PAIR sockets a replication session runs on.
// The replication server listens; directory servers dial.
type SocketFactory interface {
	NewListener() (ListenSocket, error)
	NewDialer() (DialSocket, error)
}

// Listen creates a listening socket bound to addr. logger may be nil.
func Listen(f SocketFactory, addr string, logger logging.Logger) (Socket, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cleanup := NewResourceCleanup(logger)
	defer cleanup.Cleanup()

	sock, err := f.NewListener()
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	cleanup.Add(sock, "listener "+addr)

	if err := sock.Listen(addr); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	cleanup.Clear()
	logger.Info("listening", logging.Peer(addr))
	return sock, nil
}

// Dial creates a socket connected to addr.
func Dial(f SocketFactory, addr string, logger logging.Logger) (Socket, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cleanup := NewResourceCleanup(logger)
	defer cleanup.Cleanup()

	sock, err := f.NewDialer()
	if err != nil {
		return nil, fmt.Errorf("failed to create dialer: %w", err)
	}
	cleanup.Add(sock, "dialer "+addr)

	if err := sock.Dial(addr); err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	cleanup.Clear()
	logger.Info("dialed", logging.Peer(addr))
	return sock, nil
}
