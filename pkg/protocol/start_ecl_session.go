package protocol

import (
	"fmt"
	"math"
	"strings"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

var startECLSessionTags = []MsgType{TypeStartECLSession}

// ECLRequestType selects where an external changelog session starts.
type ECLRequestType int

const (
	// RequestFromCookie resumes from a cross-domain cookie.
	RequestFromCookie ECLRequestType = iota
	// RequestFromChangeNumber and RequestEqualsCSN are accepted on the
	// wire but not served yet.
	RequestFromChangeNumber
	RequestEqualsCSN
)

var eclRequestTypeNames = [...]string{
	"REQUEST_TYPE_FROM_COOKIE",
	"REQUEST_TYPE_FROM_CHANGE_NUMBER",
	"REQUEST_TYPE_EQUALS_REPL_CHANGE_NUMBER",
}

func (t ECLRequestType) Valid() bool {
	return t >= 0 && int(t) < len(eclRequestTypeNames)
}

func (t ECLRequestType) String() string {
	if t.Valid() {
		return eclRequestTypeNames[t]
	}
	return fmt.Sprintf("REQUEST_TYPE(%d)", int(t))
}

// Persistence says whether the session stays open after the backlog.
type Persistence int

const (
	NonPersistent Persistence = iota
	Persistent
	PersistentChangesOnly
)

var persistenceNames = [...]string{"NON_PERSISTENT", "PERSISTENT", "PERSISTENT_CHANGES_ONLY"}

func (p Persistence) Valid() bool {
	return p >= 0 && int(p) < len(persistenceNames)
}

func (p Persistence) String() string {
	if p.Valid() {
		return persistenceNames[p]
	}
	return fmt.Sprintf("PERSISTENCE(%d)", int(p))
}

// excludedDNSeparator ends every excluded base DN on the wire.
const excludedDNSeparator = ";"

// StartECLSessionMsg asks a replication server to open an external
// changelog session. Every field travels as text. Change numbers are
// 32 bit on the wire; -1 means unset.
type StartECLSessionMsg struct {
	RequestType            ECLRequestType
	FirstChangeNumber      int64
	LastChangeNumber       int64
	ChangeNumber           csn.CSN
	Persistence            Persistence
	CrossDomainServerState string
	OperationID            string
	ExcludedBaseDNs        []string
}

// NewStartECLSessionMsg returns a cookie based, non persistent request.
func NewStartECLSessionMsg() *StartECLSessionMsg {
	return &StartECLSessionMsg{
		RequestType:       RequestFromCookie,
		FirstChangeNumber: -1,
		LastChangeNumber:  -1,
		Persistence:       NonPersistent,
	}
}

func (m *StartECLSessionMsg) Type() MsgType          { return TypeStartECLSession }
func (m *StartECLSessionMsg) AllowedTags() []MsgType { return startECLSessionTags }

func (m *StartECLSessionMsg) excludedDNs() (string, error) {
	var sb strings.Builder
	for _, dn := range m.ExcludedBaseDNs {
		if dn == "" || strings.Contains(dn, excludedDNSeparator) {
			return "", fmt.Errorf("%w: excluded base DN %q", ErrInvalidField, dn)
		}
		sb.WriteString(dn)
		sb.WriteString(excludedDNSeparator)
	}
	return sb.String(), nil
}

// Bytes encodes the request. The layout is the same for every version.
func (m *StartECLSessionMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() {
		return nil, ErrNotRepresentable
	}
	if !m.RequestType.Valid() || !m.Persistence.Valid() {
		return nil, fmt.Errorf("%w: request type %d, persistence %d",
			ErrInvalidField, int(m.RequestType), int(m.Persistence))
	}
	for _, n := range []int64{m.FirstChangeNumber, m.LastChangeNumber} {
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: change number %d does not fit 32 bits", ErrInvalidField, n)
		}
	}
	excluded, err := m.excludedDNs()
	if err != nil {
		return nil, err
	}
	size := Octets(1) + IntUTF8Size(int64(m.RequestType)) +
		IntUTF8Size(m.FirstChangeNumber) + IntUTF8Size(m.LastChangeNumber) +
		CSNsUTF8(1) + IntUTF8Size(int64(m.Persistence)) +
		StringSize(m.CrossDomainServerState) + StringSize(m.OperationID) + StringSize(excluded)

	return NewBuilder(size).
		AppendByte(byte(TypeStartECLSession)).
		AppendIntUTF8(int(m.RequestType)).
		AppendIntUTF8(int(m.FirstChangeNumber)).
		AppendIntUTF8(int(m.LastChangeNumber)).
		AppendCSNUTF8(m.ChangeNumber).
		AppendIntUTF8(int(m.Persistence)).
		AppendString(m.CrossDomainServerState).
		AppendString(m.OperationID).
		AppendString(excluded).
		Finish()
}

// DecodeStartECLSessionMsg decodes a request. Ordinals outside the
// known enumerations are decode errors.
func DecodeStartECLSessionMsg(buf []byte) (*StartECLSessionMsg, error) {
	const typ = "StartECLSessionMsg"
	s := NewScanner(buf)
	if _, err := checkTag(s, typ, startECLSessionTags); err != nil {
		return nil, err
	}

	m := &StartECLSessionMsg{}
	start := s.Offset()
	if m.RequestType = ECLRequestType(s.NextIntUTF8()); s.Err() == nil && !m.RequestType.Valid() {
		s.pos = start
		s.Fail("request type", fmt.Errorf("%w: request type %d", ErrBadOrdinal, int(m.RequestType)))
	}
	m.FirstChangeNumber = int64(s.NextIntUTF8())
	m.LastChangeNumber = int64(s.NextIntUTF8())
	m.ChangeNumber = s.NextCSNUTF8()
	start = s.Offset()
	if m.Persistence = Persistence(s.NextIntUTF8()); s.Err() == nil && !m.Persistence.Valid() {
		s.pos = start
		s.Fail("persistence", fmt.Errorf("%w: persistence %d", ErrBadOrdinal, int(m.Persistence)))
	}
	m.CrossDomainServerState = s.NextString()
	m.OperationID = s.NextString()
	excluded := s.NextString()
	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, typ)
	}

	for _, dn := range strings.Split(excluded, excludedDNSeparator) {
		if dn != "" {
			m.ExcludedBaseDNs = append(m.ExcludedBaseDNs, dn)
		}
	}
	return m, nil
}

func (m *StartECLSessionMsg) String() string {
	return fmt.Sprintf("StartECLSessionMsg{type=%s first=%d last=%d csn=%s persistence=%s cookie=%q op=%q excluded=%v}",
		m.RequestType, m.FirstChangeNumber, m.LastChangeNumber, m.ChangeNumber,
		m.Persistence, m.CrossDomainServerState, m.OperationID, m.ExcludedBaseDNs)
}
