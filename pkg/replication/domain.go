package replication

import (
	"maps"
	"sync"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/logging"
	"github.com/dd0wney/cluso-replication/pkg/metrics"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
)

// DomainTracker keeps the newest change seen from every replica of a
// domain, and which replicas announced they went offline.
type DomainTracker struct {
	state   *csn.ServerState
	logger  logging.Logger
	metrics *metrics.Registry

	mu      sync.RWMutex
	offline map[uint16]csn.CSN
}

// NewDomainTracker tracks into state, or a fresh state when nil. logger
// and registry may be nil.
func NewDomainTracker(state *csn.ServerState, logger logging.Logger, registry *metrics.Registry) *DomainTracker {
	if state == nil {
		state = csn.NewServerState()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DomainTracker{
		state:   state,
		logger:  logger.With(logging.Component("domain")),
		metrics: registry,
		offline: make(map[uint16]csn.CSN),
	}
}

// Apply folds m into the domain state. It returns true when the state
// moved forward. Messages that are not changes are ignored, except
// ReplicaOfflineMsg which marks its replica offline.
func (t *DomainTracker) Apply(m protocol.Msg) bool {
	if off, ok := m.(*protocol.ReplicaOfflineMsg); ok {
		t.markOffline(off.ChangeNumber)
		return false
	}

	update, ok := m.(protocol.UpdateMsg)
	if !ok {
		return false
	}

	advanced := protocol.UpdateDomainState(t.state, update)
	if update.ContributesToDomainState() {
		t.markOnline(update.CSN())
	}
	if t.metrics != nil {
		t.metrics.RecordDomainState(advanced)
	}
	if advanced && t.logger.Enabled(logging.DebugLevel) {
		t.logger.Debug("domain state advanced", logging.CSN(update.CSN()), logging.MsgType(m.Type().String()))
	}
	return advanced
}

func (t *DomainTracker) markOffline(c csn.CSN) {
	t.mu.Lock()
	t.offline[c.ServerID] = c
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordReplicaOffline()
	}
	t.logger.Info("replica offline", logging.ServerID(int(c.ServerID)), logging.CSN(c))
}

// markOnline clears the offline mark of a replica that produced a change
// after it went offline.
func (t *DomainTracker) markOnline(c csn.CSN) {
	t.mu.Lock()
	off, was := t.offline[c.ServerID]
	back := was && c.After(off)
	if back {
		delete(t.offline, c.ServerID)
	}
	t.mu.Unlock()

	if back {
		t.logger.Info("replica back online", logging.ServerID(int(c.ServerID)), logging.CSN(c))
	}
}

// State returns a copy of the domain state.
func (t *DomainTracker) State() *csn.ServerState {
	return t.state.Clone()
}

// Covers reports whether the change c has already been seen.
func (t *DomainTracker) Covers(c csn.CSN) bool {
	return t.state.Cover(c)
}

// Offline returns the replicas currently known to be offline, with the
// CSN each one announced.
func (t *DomainTracker) Offline() map[uint16]csn.CSN {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.offline)
}

// IsOffline reports whether serverID announced it went offline and has
// not produced a newer change since.
func (t *DomainTracker) IsOffline(serverID uint16) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.offline[serverID]
	return ok
}
