package protocol

import (
	"bytes"
	"slices"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-replication/pkg/csn"
)

func genCSN() gopter.Gen {
	return gopter.CombineGens(gen.Int64(), gen.Int32(), gen.UInt16()).Map(func(v []any) csn.CSN {
		return csn.New(v[0].(int64), v[1].(int32), v[2].(uint16))
	})
}

func genVersion(from Version) gopter.Gen {
	return gen.IntRange(int(from), int(Current)).Map(func(i int) Version { return Version(i) })
}

func genAssuredMode() gopter.Gen {
	return gen.OneConstOf(SafeReadMode, SafeDataMode)
}

func genStatus() gopter.Gen {
	return gen.IntRange(int(StatusInvalid), int(StatusBadGenID)).Map(func(i int) ServerStatus { return ServerStatus(i) })
}

func genStrings() gopter.Gen {
	return gen.SliceOfN(4, gen.AlphaString())
}

func genChange() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(uint(ldap.AddAttribute), uint(ldap.DeleteAttribute), uint(ldap.ReplaceAttribute), uint(ldap.IncrementAttribute)),
		gen.Identifier(),
		gen.SliceOfN(3, gen.AlphaString()),
	).Map(func(v []any) ldap.Change {
		return ldap.Change{
			Operation:    v[0].(uint),
			Modification: ldap.PartialAttribute{Type: v[1].(string), Vals: v[2].([]string)},
		}
	})
}

func genModifyMsg() gopter.Gen {
	return gopter.CombineGens(
		genCSN(), gen.AlphaString(), gen.AlphaString(),
		gen.Bool(), genAssuredMode(), gen.UInt8(),
		gen.SliceOfN(3, genChange()), gen.SliceOfN(2, gen.Identifier()),
	).Map(func(v []any) *ModifyMsg {
		m := NewModifyMsg(v[0].(csn.CSN), v[1].(string), v[2].(string), v[6].([]ldap.Change))
		m.Assured = v[3].(bool)
		m.AssuredMode = v[4].(AssuredMode)
		m.SafeDataLevel = v[5].(uint8)
		var attrs []ldap.PartialAttribute
		for _, name := range v[7].([]string) {
			attrs = append(attrs, ldap.PartialAttribute{Type: name, Vals: []string{name}})
		}
		m.SetECLIncludes(attrs)
		return m
	})
}

func genDeleteMsg() gopter.Gen {
	return gopter.CombineGens(
		genCSN(), gen.AlphaString(), gen.AlphaString(), gen.Bool(), gen.Bool(), genAssuredMode(),
	).Map(func(v []any) *DeleteMsg {
		m := NewDeleteMsg(v[0].(csn.CSN), v[1].(string), v[2].(string), v[3].(bool))
		m.Assured = v[4].(bool)
		m.AssuredMode = v[5].(AssuredMode)
		return m
	})
}

func genAttributes(n int) gopter.Gen {
	return gen.SliceOfN(n, gen.Identifier()).Map(func(names []string) []ldap.PartialAttribute {
		attrs := make([]ldap.PartialAttribute, 0, len(names))
		for _, name := range names {
			attrs = append(attrs, ldap.PartialAttribute{Type: name, Vals: []string{name}})
		}
		return attrs
	})
}

func genAddMsg() gopter.Gen {
	return gopter.CombineGens(
		genCSN(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
		gen.Bool(), genAssuredMode(), genAttributes(3), genAttributes(2),
	).Map(func(v []any) *AddMsg {
		m := NewAddMsg(v[0].(csn.CSN), v[1].(string), v[2].(string), v[3].(string), v[6].([]ldap.PartialAttribute))
		m.Assured = v[4].(bool)
		m.AssuredMode = v[5].(AssuredMode)
		m.SetECLIncludes(v[7].([]ldap.PartialAttribute))
		return m
	})
}

func genModifyDNMsg() gopter.Gen {
	return gopter.CombineGens(
		genCSN(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.Bool(),
		gen.AlphaString(), gen.AlphaString(), gen.SliceOfN(2, genChange()), genAttributes(2),
	).Map(func(v []any) *ModifyDNMsg {
		m := NewModifyDNMsg(v[0].(csn.CSN), v[1].(string), v[2].(string), v[3].(string), v[4].(bool), v[5].(string), v[6].(string))
		m.SetModifications(v[7].([]ldap.Change))
		m.SetECLIncludes(v[8].([]ldap.PartialAttribute))
		return m
	})
}

func genDSInfo() gopter.Gen {
	return gopter.CombineGens(
		gen.Int32(), gen.AlphaString(), gen.Int32(), gen.Int64(), genStatus(),
		gen.Bool(), genAssuredMode(), gen.UInt8(), gen.UInt8(),
		genStrings(), genStrings(), genStrings(), genVersion(V1),
	).Map(func(v []any) DSInfo {
		return DSInfo{
			DSID:                  int(v[0].(int32)),
			DSURL:                 v[1].(string),
			RSID:                  int(v[2].(int32)),
			GenerationID:          v[3].(int64),
			Status:                v[4].(ServerStatus),
			Assured:               v[5].(bool),
			AssuredMode:           v[6].(AssuredMode),
			SafeDataLevel:         v[7].(uint8),
			GroupID:               v[8].(uint8),
			RefURLs:               v[9].([]string),
			ECLIncludes:           v[10].([]string),
			ECLIncludesForDeletes: v[11].([]string),
			ProtocolVersion:       v[12].(Version),
		}
	})
}

func genRSInfo() gopter.Gen {
	return gopter.CombineGens(gen.Int32(), gen.AlphaString(), gen.Int64(), gen.UInt8(), gen.Int32()).
		Map(func(v []any) RSInfo {
			return RSInfo{
				ID:           int(v[0].(int32)),
				URL:          v[1].(string),
				GenerationID: v[2].(int64),
				GroupID:      v[3].(uint8),
				Weight:       int(v[4].(int32)),
			}
		})
}

func genTopologyMsg() gopter.Gen {
	return gopter.CombineGens(gen.SliceOfN(3, genDSInfo()), gen.SliceOfN(3, genRSInfo())).
		Map(func(v []any) *TopologyMsg {
			m := &TopologyMsg{RSInfos: v[1].([]RSInfo)}
			seen := map[int]bool{}
			for _, ds := range v[0].([]DSInfo) {
				if !seen[ds.DSID] {
					seen[ds.DSID] = true
					m.DSInfos = append(m.DSInfos, ds)
				}
			}
			return m
		})
}

func genStartSessionMsg() gopter.Gen {
	return gopter.CombineGens(
		genStatus(), gen.Bool(), genAssuredMode(), gen.UInt8(), genStrings(), genStrings(), genStrings(),
	).Map(func(v []any) *StartSessionMsg {
		return &StartSessionMsg{
			Status:                v[0].(ServerStatus),
			Assured:               v[1].(bool),
			AssuredMode:           v[2].(AssuredMode),
			SafeDataLevel:         v[3].(uint8),
			RefURLs:               v[4].([]string),
			ECLIncludes:           v[5].([]string),
			ECLIncludesForDeletes: v[6].([]string),
		}
	})
}

func genStartECLSessionMsg() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2), gen.Int32(), gen.Int32(), genCSN(), gen.IntRange(0, 2),
		gen.AlphaString(), gen.AlphaString(), gen.SliceOfN(3, gen.Identifier()),
	).Map(func(v []any) *StartECLSessionMsg {
		return &StartECLSessionMsg{
			RequestType:            ECLRequestType(v[0].(int)),
			FirstChangeNumber:      int64(v[1].(int32)),
			LastChangeNumber:       int64(v[2].(int32)),
			ChangeNumber:           v[3].(csn.CSN),
			Persistence:            Persistence(v[4].(int)),
			CrossDomainServerState: v[5].(string),
			OperationID:            v[6].(string),
			ExcludedBaseDNs:        v[7].([]string),
		}
	})
}

func genServerState() gopter.Gen {
	return gen.SliceOfN(4, genCSN()).Map(func(cs []csn.CSN) *csn.ServerState {
		state := csn.NewServerState()
		for _, c := range cs {
			state.Update(c)
		}
		return state
	})
}

func genServerStartMsg() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64(), gen.UInt8(), gen.AlphaString(), gen.Int32(), gen.AlphaString(),
		gen.Int32(), gen.Int32(), gen.Int64(), gen.Bool(), genServerState(),
	).Map(func(v []any) *ServerStartMsg {
		return &ServerStartMsg{
			StartHeader:       StartHeader{GenerationID: v[0].(int64), GroupID: v[1].(uint8)},
			BaseDN:            v[2].(string),
			ServerID:          int(v[3].(int32)),
			ServerURL:         v[4].(string),
			MaxReceiveQueue:   int(v[5].(int32)),
			MaxSendDelay:      int(v[6].(int32)),
			HeartbeatInterval: v[7].(int64),
			SSLEncryption:     v[8].(bool),
			ServerState:       v[9].(*csn.ServerState),
		}
	})
}

func genReplServerStartMsg() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64(), gen.UInt8(), gen.AlphaString(), gen.Int32(), gen.AlphaString(),
		gen.Int32(), gen.Bool(), gen.Int32(), genServerState(),
	).Map(func(v []any) *ReplServerStartMsg {
		return &ReplServerStartMsg{
			StartHeader:             StartHeader{GenerationID: v[0].(int64), GroupID: v[1].(uint8)},
			BaseDN:                  v[2].(string),
			ServerID:                int(v[3].(int32)),
			ServerURL:               v[4].(string),
			WindowSize:              int(v[5].(int32)),
			SSLEncryption:           v[6].(bool),
			DegradedStatusThreshold: int(v[7].(int32)),
			ServerState:             v[8].(*csn.ServerState),
		}
	})
}

// codecCase ties a message generator to its decoder. minVersion is the
// oldest version the message exists in; truncFrom is the oldest version
// whose layout lets every strict prefix be detected.
type codecCase struct {
	name       string
	gen        gopter.Gen
	decode     func([]byte, Version) (Msg, error)
	minVersion Version
	truncFrom  Version
}

func codecCases() []codecCase {
	return []codecCase{
		{"modify", genModifyMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeModifyMsg(b)) }, V1, V1},
		{"delete", genDeleteMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeDeleteMsg(b)) }, V1, V1},
		// before V4 the attribute list runs to the end of the message
		{"add", genAddMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeAddMsg(b)) }, V1, V4},
		{"modify_dn", genModifyDNMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeModifyDNMsg(b)) }, V1, V1},
		{"topology", genTopologyMsg(), func(b []byte, v Version) (Msg, error) { return asMsg(DecodeTopologyMsg(b, v)) }, V2, V2},
		// before V4 referral URLs run to the end of the message
		{"start_session", genStartSessionMsg(), func(b []byte, v Version) (Msg, error) { return asMsg(DecodeStartSessionMsg(b, v)) }, V2, V4},
		{"start_ecl_session", genStartECLSessionMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeStartECLSessionMsg(b)) }, V1, V1},
		{"server_start", genServerStartMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeServerStartMsg(b)) }, V1, V1},
		{"repl_server_start", genReplServerStartMsg(), func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeReplServerStartMsg(b)) }, V1, V1},
		{"replica_offline", genCSN().Map(func(c csn.CSN) Msg { return NewReplicaOfflineMsg(c) }),
			func(b []byte, _ Version) (Msg, error) { return asMsg(DecodeReplicaOfflineMsg(b)) }, V8, V8},
		{"change_time_heartbeat", genCSN().Map(func(c csn.CSN) Msg { return &ChangeTimeHeartbeatMsg{ChangeNumber: c} }),
			func(b []byte, v Version) (Msg, error) { return asMsg(DecodeChangeTimeHeartbeatMsg(b, v)) }, V1, V1},
	}
}

// TestCodecProperties checks every message against the codec laws:
// re-encoding a decoded message gives the same bytes, every strict
// prefix is rejected, and foreign tags are rejected.
func TestCodecProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.MaxSize = 8

	properties := gopter.NewProperties(parameters)

	for _, tc := range codecCases() {
		properties.Property(tc.name+" round trips", prop.ForAll(
			func(m Msg, v Version) bool {
				buf, err := m.Bytes(v)
				if err != nil {
					return false
				}
				got, err := tc.decode(buf, v)
				if err != nil {
					t.Logf("%s at %s: %v", tc.name, v, err)
					return false
				}
				again, err := got.Bytes(v)
				return err == nil && bytes.Equal(again, buf)
			},
			tc.gen, genVersion(tc.minVersion),
		))

		properties.Property(tc.name+" rejects truncation", prop.ForAll(
			func(m Msg, v Version) bool {
				buf, err := m.Bytes(v)
				if err != nil {
					return false
				}
				for n := 0; n < len(buf); n++ {
					if _, err := tc.decode(buf[:n], v); !IsDecodeError(err) {
						t.Logf("%s at %s: prefix %d/%d decoded, err=%v", tc.name, v, n, len(buf), err)
						return false
					}
				}
				return true
			},
			tc.gen, genVersion(tc.truncFrom),
		))

		properties.Property(tc.name+" rejects foreign tags", prop.ForAll(
			func(m Msg, v Version) bool {
				buf, err := m.Bytes(v)
				if err != nil {
					return false
				}
				for tag := 0; tag < 256; tag++ {
					if hasTag(m.AllowedTags(), byte(tag)) {
						continue
					}
					bad := slices.Clone(buf)
					bad[0] = byte(tag)
					if _, err := tc.decode(bad, v); !IsDecodeError(err) {
						return false
					}
				}
				return true
			},
			tc.gen, genVersion(tc.minVersion),
		))
	}

	properties.TestingRun(t)
}

func TestAllTypesHaveNames(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.Known() {
			t.Errorf("type %d not known", typ)
		}
	}
	if MsgType(0).Known() || MsgType(38).Known() {
		t.Error("out of range tag reported as known")
	}
}
