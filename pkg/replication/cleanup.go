package replication

import (
	"io"

	"github.com/dd0wney/cluso-replication/pkg/logging"
)

// ResourceCleanup closes sockets acquired during session setup in
// reverse order (LIFO) unless setup succeeds and calls Clear.
//
//	cleanup := NewResourceCleanup(logger)
//	defer cleanup.Cleanup()
//
//	sock, err := f.NewDialer()
//	if err != nil {
//	    return err
//	}
//	cleanup.Add(sock, "dialer")
//	...
//	cleanup.Clear()
type ResourceCleanup struct {
	resources []namedCloser
	logger    logging.Logger
}

// namedCloser wraps a closer with a descriptive name for logging
type namedCloser struct {
	closer io.Closer
	name   string
}

// NewResourceCleanup creates a new ResourceCleanup. A nil logger
// discards close failures.
func NewResourceCleanup(logger logging.Logger) *ResourceCleanup {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResourceCleanup{
		resources: make([]namedCloser, 0, 4),
		logger:    logger,
	}
}

// Add registers a resource to be cleaned up.
func (rc *ResourceCleanup) Add(closer io.Closer, name string) {
	rc.resources = append(rc.resources, namedCloser{closer: closer, name: name})
}

// Cleanup closes all registered resources, newest first. Failures are
// logged and do not stop the sweep. Safe to call more than once.
func (rc *ResourceCleanup) Cleanup() {
	_ = rc.CloseAll()
}

// Clear forgets every registered resource without closing it.
func (rc *ResourceCleanup) Clear() {
	rc.resources = rc.resources[:0]
}

// CloseAll closes all registered resources and returns the first error.
func (rc *ResourceCleanup) CloseAll() error {
	var firstErr error
	for i := len(rc.resources) - 1; i >= 0; i-- {
		r := rc.resources[i]
		if r.closer == nil {
			continue
		}
		if err := r.closer.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			rc.logger.Warn("failed to close resource", logging.String("resource", r.name), logging.Error(err))
		}
	}
	rc.resources = rc.resources[:0]
	return firstErr
}

// Len returns the number of registered resources.
func (rc *ResourceCleanup) Len() int {
	return len(rc.resources)
}
