package csn

import (
	"sync"
	"time"
)

// Clock returns the current time in milliseconds.
type Clock func() int64

// WallClock reads the system clock.
func WallClock() int64 {
	return time.Now().UnixMilli()
}

// Generator hands out strictly increasing CSNs for one server.
type Generator struct {
	serverID uint16
	clock    Clock

	mu       sync.Mutex
	lastTime int64
	seqNum   int32
}

// NewGenerator creates a generator for serverID, seeded with the newest
// CSNs already known in state (may be nil).
func NewGenerator(serverID uint16, clock Clock, state *ServerState) *Generator {
	if clock == nil {
		clock = WallClock
	}
	g := &Generator{serverID: serverID, clock: clock, lastTime: clock()}
	if state != nil {
		g.AdjustState(state)
	}
	return g
}

// ServerID returns the id stamped on generated CSNs.
func (g *Generator) ServerID() uint16 {
	return g.serverID
}

// Next returns a CSN newer than every CSN previously returned or adjusted to.
func (g *Generator) Next() CSN {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if now > g.lastTime {
		g.lastTime = now
	}
	g.seqNum++
	if g.seqNum <= 0 {
		// sequence wrapped: move to the next millisecond
		g.seqNum = 0
		g.lastTime++
	}
	return New(g.lastTime, g.seqNum, g.serverID)
}

// Adjust moves the generator past a CSN received from a peer so that
// locally generated changes always sort after changes already seen.
func (g *Generator) Adjust(c CSN) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastTime <= c.Timestamp {
		g.lastTime = c.Timestamp + 1
	}
	if c.ServerID == g.serverID && g.seqNum < c.SeqNum {
		g.seqNum = c.SeqNum
	}
}

// AdjustState applies Adjust to every CSN in state.
func (g *Generator) AdjustState(state *ServerState) {
	for _, c := range state.Snapshot() {
		g.Adjust(c)
	}
}

// Reset drops all history and restarts from the clock.
func (g *Generator) Reset() {
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastTime = now
	g.seqNum = 0
}
