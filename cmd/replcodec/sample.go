package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"github.com/dd0wney/cluso-replication/pkg/csn"
	"github.com/dd0wney/cluso-replication/pkg/protocol"
	"github.com/dd0wney/cluso-replication/pkg/replication"
	"github.com/dd0wney/cluso-replication/pkg/validation"
)

// sampleParentUUID stands in for the parent entry of sample adds.
const sampleParentUUID = "00000000-0000-0000-0000-000000000001"

// sampleInput carries the flag values every sample builder may use.
type sampleInput struct {
	gen       *csn.Generator
	cfg       *replication.SessionConfig
	dn        string
	entryUUID string
}

var samples = map[string]func(in sampleInput) protocol.Msg{
	"modify": func(in sampleInput) protocol.Msg {
		return protocol.NewModifyMsg(in.gen.Next(), in.dn, in.entryUUID, []ldap.Change{{
			Operation: ldap.ReplaceAttribute,
			Modification: ldap.PartialAttribute{
				Type: "description",
				Vals: []string{"replicated sample"},
			},
		}})
	},
	"add": func(in sampleInput) protocol.Msg {
		return protocol.NewAddMsg(in.gen.Next(), in.dn, in.entryUUID, sampleParentUUID, []ldap.PartialAttribute{
			{Type: "objectClass", Vals: []string{"top", "person"}},
			{Type: "sn", Vals: []string{"Sample"}},
		})
	},
	"delete": func(in sampleInput) protocol.Msg {
		return protocol.NewDeleteMsg(in.gen.Next(), in.dn, in.entryUUID, false)
	},
	"modify-dn": func(in sampleInput) protocol.Msg {
		m := protocol.NewModifyDNMsg(in.gen.Next(), in.dn, in.entryUUID, "uid=renamed", true, "", "")
		m.SetModifications([]ldap.Change{{
			Operation:    ldap.ReplaceAttribute,
			Modification: ldap.PartialAttribute{Type: "uid", Vals: []string{"renamed"}},
		}})
		return m
	},
	"ack": func(in sampleInput) protocol.Msg {
		return protocol.NewAckMsg(in.gen.Next())
	},
	"heartbeat": func(sampleInput) protocol.Msg {
		return &protocol.HeartbeatMsg{}
	},
	"change-time-heartbeat": func(in sampleInput) protocol.Msg {
		return &protocol.ChangeTimeHeartbeatMsg{ChangeNumber: in.gen.Next()}
	},
	"replica-offline": func(in sampleInput) protocol.Msg {
		return protocol.NewReplicaOfflineMsg(in.gen.Next())
	},
	"window": func(in sampleInput) protocol.Msg {
		return &protocol.WindowMsg{NumAck: in.cfg.WindowSize}
	},
	"stop": func(sampleInput) protocol.Msg {
		return &protocol.StopMsg{}
	},
	"server-start": func(in sampleInput) protocol.Msg {
		return in.cfg.ServerStartMsg(sampleState(in.gen))
	},
	"repl-server-start": func(in sampleInput) protocol.Msg {
		return in.cfg.ReplServerStartMsg(sampleState(in.gen))
	},
	"start-session": func(in sampleInput) protocol.Msg {
		return in.cfg.StartSessionMsg(protocol.StatusNormal)
	},
	"start-ecl-session": func(in sampleInput) protocol.Msg {
		m := protocol.NewStartECLSessionMsg()
		m.OperationID = in.entryUUID
		m.ExcludedBaseDNs = in.cfg.ExcludedBaseDNs
		return m
	},
	"topology": func(in sampleInput) protocol.Msg {
		id := in.cfg.ServerID
		return &protocol.TopologyMsg{
			DSInfos: []protocol.DSInfo{{
				DSID:            id,
				DSURL:           in.cfg.ServerURL,
				RSID:            id + 1,
				GenerationID:    in.cfg.GenerationID,
				Status:          protocol.StatusNormal,
				AssuredMode:     protocol.DefaultAssuredMode,
				SafeDataLevel:   protocol.DefaultSafeDataLevel,
				GroupID:         byte(in.cfg.GroupID),
				RefURLs:         in.cfg.RefURLs,
				ProtocolVersion: in.cfg.Version(),
			}},
			RSInfos: []protocol.RSInfo{{
				ID:           id + 1,
				GenerationID: in.cfg.GenerationID,
				GroupID:      byte(in.cfg.GroupID),
				Weight:       protocol.DefaultWeight,
			}},
		}
	},
}

func sampleTypes() []string {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sampleState(gen *csn.Generator) *csn.ServerState {
	state := csn.NewServerState()
	state.Update(gen.Next())
	return state
}

func runSample(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	typ := fs.String("type", "modify", "Message type: "+strings.Join(sampleTypes(), ", "))
	v := fs.Int("version", int(protocol.Current), "Protocol version to encode for")
	serverID := fs.Int("server-id", 1, "Server id stamped on CSNs and start messages")
	dn := fs.String("dn", "uid=jdoe,ou=people,dc=example,dc=com", "Target entry DN of updates")
	entryUUID := fs.String("uuid", "", "Entry UUID of updates (default: random)")
	clock := fs.Int64("time", 0, "CSN timestamp in milliseconds since the epoch (default: now)")
	configPath := fs.String("config", "", "Session configuration file for start messages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	build, ok := samples[*typ]
	if !ok {
		return fmt.Errorf("unknown sample type %q (have %s)", *typ, strings.Join(sampleTypes(), ", "))
	}
	ver := protocol.Version(*v)
	if !ver.Valid() {
		return fmt.Errorf("unknown protocol version %d", *v)
	}
	if err := validation.ValidateServerID(*serverID); err != nil {
		return err
	}
	if err := validation.ValidateDN(*dn); err != nil {
		return err
	}

	cfg := replication.DefaultSessionConfig()
	if *configPath != "" {
		loaded, err := replication.LoadSessionConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		cfg.BaseDN = "dc=example,dc=com"
		cfg.ServerID = *serverID
		cfg.ServerURL = "ldap://localhost:1389"
	}
	cfg.ProtocolVersion = int(ver)

	in := sampleInput{cfg: cfg, dn: *dn, entryUUID: *entryUUID}
	if in.entryUUID == "" {
		in.entryUUID = uuid.NewString()
	}
	var now csn.Clock
	if *clock > 0 {
		now = func() int64 { return *clock }
	}
	in.gen = csn.NewGenerator(uint16(cfg.ServerID), now, nil)

	buf, err := build(in).Bytes(ver)
	if err != nil {
		return fmt.Errorf("encode %s at %s: %w", *typ, ver, err)
	}
	fmt.Fprintln(stdout, hex.EncodeToString(buf))
	return nil
}
