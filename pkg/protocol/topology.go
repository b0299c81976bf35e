package protocol

import (
	"fmt"
	"slices"
	"strings"
)

var topologyTags = []MsgType{TypeTopology}

// DSInfo describes one directory server as seen by a replication server.
type DSInfo struct {
	DSID          int
	DSURL         string // V6+
	RSID          int
	GenerationID  int64
	Status        ServerStatus
	Assured       bool
	AssuredMode   AssuredMode
	SafeDataLevel byte
	GroupID       byte
	RefURLs       []string

	// ECLIncludes are the attributes published in the external
	// changelog for every change (V4+).
	ECLIncludes []string
	// ECLIncludesForDeletes are published for deletes (V5+). Older
	// peers only know ECLIncludes, which then applies to deletes too.
	ECLIncludesForDeletes []string

	// ProtocolVersion is UnknownVersion when the peer speaks < V4.
	ProtocolVersion Version
}

// RSInfo describes one replication server.
type RSInfo struct {
	ID           int
	URL          string // V4+
	GenerationID int64
	GroupID      byte
	Weight       int // V4+, DefaultWeight otherwise
}

// TopologyMsg is a snapshot of every server a replication server knows.
// Entries keep wire order so re-encoding is stable.
type TopologyMsg struct {
	DSInfos []DSInfo
	RSInfos []RSInfo
}

func (m *TopologyMsg) Type() MsgType          { return TypeTopology }
func (m *TopologyMsg) AllowedTags() []MsgType { return topologyTags }

// DSInfoMap indexes the directory servers by id.
func (m *TopologyMsg) DSInfoMap() map[int]DSInfo {
	out := make(map[int]DSInfo, len(m.DSInfos))
	for _, ds := range m.DSInfos {
		out[ds.DSID] = ds
	}
	return out
}

// topologyFields groups the per-version field gates of the message.
type topologyFields struct {
	dsURL         bool
	eclIncludes   bool
	eclForDeletes bool
	dsVersion     bool
	rsURLWeight   bool
}

func topologyFieldsFor(v Version) topologyFields {
	return topologyFields{
		dsURL:         v.Supports(CapDSURL),
		eclIncludes:   v.Supports(CapExplicitLengths),
		eclForDeletes: v.Supports(CapECLIncludesForDeletes),
		dsVersion:     v.Supports(CapExplicitLengths),
		rsURLWeight:   v.Supports(CapExplicitLengths),
	}
}

// Bytes encodes the snapshot for version v. Topology messages do not
// exist in V1.
func (m *TopologyMsg) Bytes(v Version) ([]byte, error) {
	if !v.Valid() || !v.Supports(CapVersionedHeader) {
		return nil, ErrNotRepresentable
	}
	if len(m.DSInfos) > 255 || len(m.RSInfos) > 255 {
		return nil, fmt.Errorf("%w: topology with %d directory and %d replication servers",
			ErrBadLength, len(m.DSInfos), len(m.RSInfos))
	}
	f := topologyFieldsFor(v)

	b := NewBuilder(Octets(3)+len(m.DSInfos)*32+len(m.RSInfos)*16).
		AppendByte(byte(TypeTopology)).
		AppendByte(byte(len(m.DSInfos)))
	for i := range m.DSInfos {
		ds := &m.DSInfos[i]
		b.AppendIntUTF8(ds.DSID)
		if f.dsURL {
			b.AppendString(ds.DSURL)
		}
		b.AppendIntUTF8(ds.RSID).
			AppendLongUTF8(ds.GenerationID).
			AppendByte(byte(ds.Status)).
			AppendBool(ds.Assured).
			AppendByte(byte(ds.AssuredMode)).
			AppendByte(ds.SafeDataLevel).
			AppendByte(ds.GroupID).
			AppendByteCountStrings(ds.RefURLs)
		if f.eclIncludes {
			b.AppendByteCountStrings(ds.ECLIncludes)
		}
		if f.eclForDeletes {
			b.AppendByteCountStrings(ds.ECLIncludesForDeletes)
		}
		if f.dsVersion {
			b.AppendByte(byte(ds.ProtocolVersion))
		}
	}

	b.AppendByte(byte(len(m.RSInfos)))
	for i := range m.RSInfos {
		rs := &m.RSInfos[i]
		b.AppendIntUTF8(rs.ID).
			AppendLongUTF8(rs.GenerationID).
			AppendByte(rs.GroupID)
		if f.rsURLWeight {
			b.AppendString(rs.URL).AppendIntUTF8(rs.Weight)
		}
	}
	return b.Finish()
}

// DecodeTopologyMsg decodes a snapshot sent with version v. A message
// announcing more entries than it carries is rejected.
func DecodeTopologyMsg(buf []byte, v Version) (*TopologyMsg, error) {
	const typ = "TopologyMsg"
	s := NewScanner(buf)
	if _, err := checkTag(s, typ, topologyTags); err != nil {
		return nil, err
	}
	if !v.Valid() || !v.Supports(CapVersionedHeader) {
		return nil, newError(typ).Tag(byte(TypeTopology)).
			Causef(ErrUnsupportedVersion, "topology decoded as %s", v).Err()
	}
	f := topologyFieldsFor(v)

	m := &TopologyMsg{}
	if n := int(s.NextByte()); s.Err() == nil && n > 0 {
		m.DSInfos = make([]DSInfo, 0, min(n, s.Remaining()))
		seen := make(map[int]struct{}, n)
		for i := 0; i < n && s.Err() == nil; i++ {
			start := s.Offset()
			ds := s.nextDSInfo(f)
			if s.Err() != nil {
				break
			}
			if _, dup := seen[ds.DSID]; dup {
				s.pos = start
				s.Fail("ds info", fmt.Errorf("%w: directory server %d", ErrDuplicateServer, ds.DSID))
				break
			}
			seen[ds.DSID] = struct{}{}
			m.DSInfos = append(m.DSInfos, ds)
		}
	}

	if n := int(s.NextByte()); s.Err() == nil && n > 0 {
		m.RSInfos = make([]RSInfo, 0, min(n, s.Remaining()))
		for i := 0; i < n && s.Err() == nil; i++ {
			rs := s.nextRSInfo(f)
			if s.Err() == nil {
				m.RSInfos = append(m.RSInfos, rs)
			}
		}
	}

	s.ExpectEnd()
	if err := s.Err(); err != nil {
		return nil, annotate(err, typ)
	}
	return m, nil
}

func (s *Scanner) nextDSInfo(f topologyFields) DSInfo {
	ds := DSInfo{DSID: s.NextIntUTF8(), ProtocolVersion: UnknownVersion}
	if f.dsURL {
		ds.DSURL = s.NextString()
	}
	ds.RSID = s.NextIntUTF8()
	ds.GenerationID = s.NextLongUTF8()
	ds.Status = s.nextStatus()
	ds.Assured = s.NextBool()
	ds.AssuredMode = s.nextAssuredMode()
	ds.SafeDataLevel = s.NextByte()
	ds.GroupID = s.NextByte()
	ds.RefURLs = s.NextByteCountStrings()
	if f.eclIncludes {
		ds.ECLIncludes = s.NextByteCountStrings()
	}
	if f.eclForDeletes {
		ds.ECLIncludesForDeletes = s.NextByteCountStrings()
	} else {
		ds.ECLIncludesForDeletes = slices.Clone(ds.ECLIncludes)
	}
	if f.dsVersion {
		ds.ProtocolVersion = Version(int8(s.NextByte()))
	}
	return ds
}

func (s *Scanner) nextRSInfo(f topologyFields) RSInfo {
	rs := RSInfo{
		ID:           s.NextIntUTF8(),
		GenerationID: s.NextLongUTF8(),
		GroupID:      s.NextByte(),
		Weight:       DefaultWeight,
	}
	if f.rsURLWeight {
		rs.URL = s.NextString()
		rs.Weight = s.NextIntUTF8()
	}
	return rs
}

func (ds DSInfo) String() string {
	return fmt.Sprintf("DS{id=%d url=%q rs=%d gen=%d status=%s assured=%t mode=%s level=%d group=%d refs=%v ecl=%v eclDeletes=%v version=%s}",
		ds.DSID, ds.DSURL, ds.RSID, ds.GenerationID, ds.Status, ds.Assured, ds.AssuredMode,
		ds.SafeDataLevel, ds.GroupID, ds.RefURLs, ds.ECLIncludes, ds.ECLIncludesForDeletes, ds.ProtocolVersion)
}

func (rs RSInfo) String() string {
	return fmt.Sprintf("RS{id=%d url=%q gen=%d group=%d weight=%d}",
		rs.ID, rs.URL, rs.GenerationID, rs.GroupID, rs.Weight)
}

func (m *TopologyMsg) String() string {
	var sb strings.Builder
	sb.WriteString("TopologyMsg{")
	for _, ds := range m.DSInfos {
		sb.WriteString(ds.String())
		sb.WriteByte(' ')
	}
	for _, rs := range m.RSInfos {
		sb.WriteString(rs.String())
		sb.WriteByte(' ')
	}
	sb.WriteByte('}')
	return sb.String()
}
