package csn

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ServerState records, for each server id, the newest CSN seen from it.
// It is safe for concurrent use.
type ServerState struct {
	mu   sync.RWMutex
	csns map[uint16]CSN
}

// NewServerState returns an empty state.
func NewServerState() *ServerState {
	return &ServerState{csns: make(map[uint16]CSN)}
}

// Update records c if it is newer than what is known for its server.
// It returns true when the state changed.
func (s *ServerState) Update(c CSN) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.csns[c.ServerID]; ok && !c.After(cur) {
		return false
	}
	s.csns[c.ServerID] = c
	return true
}

// Cover reports whether the state already includes c.
func (s *ServerState) Cover(c CSN) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.csns[c.ServerID]
	return ok && !cur.Before(c)
}

// Get returns the newest CSN known for serverID.
func (s *ServerState) Get(serverID uint16) (CSN, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.csns[serverID]
	return c, ok
}

// Len returns the number of servers tracked.
func (s *ServerState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.csns)
}

// ServerIDs returns the tracked server ids in ascending order.
func (s *ServerState) ServerIDs() []uint16 {
	s.mu.RLock()
	ids := make([]uint16, 0, len(s.csns))
	for id := range s.csns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns the CSNs ordered by server id.
func (s *ServerState) Snapshot() []CSN {
	ids := s.ServerIDs()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CSN, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.csns[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Max returns the newest CSN across all servers.
func (s *ServerState) Max() (CSN, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		max   CSN
		found bool
	)
	for _, c := range s.csns {
		if !found || c.After(max) {
			max, found = c, true
		}
	}
	return max, found
}

// Clone returns an independent copy.
func (s *ServerState) Clone() *ServerState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &ServerState{csns: make(map[uint16]CSN, len(s.csns))}
	for id, c := range s.csns {
		out.csns[id] = c
	}
	return out
}

// Equal reports whether both states hold the same CSNs.
func (s *ServerState) Equal(o *ServerState) bool {
	a, b := s.Snapshot(), o.Snapshot()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *ServerState) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range s.Snapshot() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.String())
	}
	sb.WriteByte(']')
	return sb.String()
}

// MarshalJSON encodes the state as an object keyed by server id.
func (s *ServerState) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	out := make(map[string]CSN, len(s.csns))
	for id, c := range s.csns {
		out[strconv.Itoa(int(id))] = c
	}
	s.mu.RUnlock()
	return json.Marshal(out)
}
