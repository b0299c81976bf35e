package protocol

import "fmt"

// MsgType is the first byte of every message.
type MsgType byte

const (
	TypeModifyV1            MsgType = 1
	TypeAddV1               MsgType = 2
	TypeDeleteV1            MsgType = 3
	TypeModifyDNV1          MsgType = 4
	TypeAck                 MsgType = 5
	TypeServerStartV1       MsgType = 6
	TypeReplServerStartV1   MsgType = 7
	TypeWindow              MsgType = 8
	TypeHeartbeat           MsgType = 9
	TypeInitializeRequest   MsgType = 10
	TypeInitializeTarget    MsgType = 11
	TypeEntry               MsgType = 12
	TypeDone                MsgType = 13
	TypeError               MsgType = 14
	TypeWindowProbe         MsgType = 15
	TypeReplServerInfo      MsgType = 16
	TypeResetGenerationID   MsgType = 17
	TypeMonitorRequest      MsgType = 18
	TypeMonitor             MsgType = 19
	TypeServerStart         MsgType = 20
	TypeReplServerStart     MsgType = 21
	TypeModify              MsgType = 22
	TypeAdd                 MsgType = 23
	TypeDelete              MsgType = 24
	TypeModifyDN            MsgType = 25
	TypeTopology            MsgType = 26
	TypeStartSession        MsgType = 27
	TypeChangeStatus        MsgType = 28
	TypeGenericUpdate       MsgType = 29
	TypeStartECL            MsgType = 30
	TypeStartECLSession     MsgType = 31
	TypeECLUpdate           MsgType = 32
	TypeChangeTimeHeartbeat MsgType = 33
	TypeReplServerStartDS   MsgType = 34
	TypeStop                MsgType = 35
	TypeInitializeRcvAck    MsgType = 36
	TypeReplicaOffline      MsgType = 37
)

var typeNames = map[MsgType]string{
	TypeModifyV1:            "MODIFY_V1",
	TypeAddV1:               "ADD_V1",
	TypeDeleteV1:            "DELETE_V1",
	TypeModifyDNV1:          "MODIFYDN_V1",
	TypeAck:                 "ACK",
	TypeServerStartV1:       "SERVER_START_V1",
	TypeReplServerStartV1:   "REPL_SERVER_START_V1",
	TypeWindow:              "WINDOW",
	TypeHeartbeat:           "HEARTBEAT",
	TypeInitializeRequest:   "INITIALIZE_REQUEST",
	TypeInitializeTarget:    "INITIALIZE_TARGET",
	TypeEntry:               "ENTRY",
	TypeDone:                "DONE",
	TypeError:               "ERROR",
	TypeWindowProbe:         "WINDOW_PROBE",
	TypeReplServerInfo:      "REPL_SERVER_INFO",
	TypeResetGenerationID:   "RESET_GENERATION_ID",
	TypeMonitorRequest:      "MONITOR_REQUEST",
	TypeMonitor:             "MONITOR",
	TypeServerStart:         "SERVER_START",
	TypeReplServerStart:     "REPL_SERVER_START",
	TypeModify:              "MODIFY",
	TypeAdd:                 "ADD",
	TypeDelete:              "DELETE",
	TypeModifyDN:            "MODIFYDN",
	TypeTopology:            "TOPOLOGY",
	TypeStartSession:        "START_SESSION",
	TypeChangeStatus:        "CHANGE_STATUS",
	TypeGenericUpdate:       "GENERIC_UPDATE",
	TypeStartECL:            "START_ECL",
	TypeStartECLSession:     "START_ECL_SESSION",
	TypeECLUpdate:           "ECL_UPDATE",
	TypeChangeTimeHeartbeat: "CT_HEARTBEAT",
	TypeReplServerStartDS:   "REPL_SERVER_START_DS",
	TypeStop:                "STOP",
	TypeInitializeRcvAck:    "INITIALIZE_RCV_ACK",
	TypeReplicaOffline:      "REPLICA_OFFLINE",
}

func (t MsgType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(t))
}

// Known reports whether t is a defined tag.
func (t MsgType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// AllTypes returns every defined tag in ascending order.
func AllTypes() []MsgType {
	out := make([]MsgType, 0, len(typeNames))
	for t := TypeModifyV1; t <= TypeReplicaOffline; t++ {
		out = append(out, t)
	}
	return out
}
