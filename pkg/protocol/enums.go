package protocol

import "fmt"

// ServerStatus is the replication health a directory server reports.
type ServerStatus int8

const (
	StatusInvalid      ServerStatus = -1
	StatusNotConnected ServerStatus = 0
	StatusNormal       ServerStatus = 1
	StatusDegraded     ServerStatus = 2
	StatusFullUpdate   ServerStatus = 3
	StatusBadGenID     ServerStatus = 4
)

func (s ServerStatus) Valid() bool {
	return s >= StatusInvalid && s <= StatusBadGenID
}

func (s ServerStatus) String() string {
	switch s {
	case StatusInvalid:
		return "INVALID_STATUS"
	case StatusNotConnected:
		return "NOT_CONNECTED_STATUS"
	case StatusNormal:
		return "NORMAL_STATUS"
	case StatusDegraded:
		return "DEGRADED_STATUS"
	case StatusFullUpdate:
		return "FULL_UPDATE_STATUS"
	case StatusBadGenID:
		return "BAD_GEN_ID_STATUS"
	}
	return fmt.Sprintf("STATUS(%d)", int8(s))
}

// AssuredMode selects how an assured update is acknowledged.
type AssuredMode byte

const (
	SafeReadMode AssuredMode = 1
	SafeDataMode AssuredMode = 2
)

func (m AssuredMode) Valid() bool {
	return m == SafeReadMode || m == SafeDataMode
}

func (m AssuredMode) String() string {
	switch m {
	case SafeReadMode:
		return "SAFE_READ_MODE"
	case SafeDataMode:
		return "SAFE_DATA_MODE"
	}
	return fmt.Sprintf("MODE(%d)", byte(m))
}

// Defaults applied when an older layout does not carry the field.
const (
	DefaultAssuredMode   = SafeDataMode
	DefaultSafeDataLevel = byte(1)
	NoGroupID            = byte(0xff)
	DefaultWeight        = 1
	UnknownVersion       = Version(-1)
)

func (s *Scanner) nextStatus() ServerStatus {
	st := ServerStatus(int8(s.NextByte()))
	if s.err == nil && !st.Valid() {
		s.pos--
		s.Fail("status", fmt.Errorf("%w: server status %d", ErrBadOrdinal, int8(st)))
	}
	return st
}

func (s *Scanner) nextAssuredMode() AssuredMode {
	m := AssuredMode(s.NextByte())
	if s.err == nil && !m.Valid() {
		s.pos--
		s.Fail("assured mode", fmt.Errorf("%w: assured mode %d", ErrBadOrdinal, byte(m)))
	}
	return m
}
