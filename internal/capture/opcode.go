package capture

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode identifies the kind of a captured notify message.
type Opcode uint32

const (
	OpSyncNearEntities  Opcode = 0x06
	OpSyncContainerData Opcode = 0x15
	OpSyncServerTime    Opcode = 0x2b
	OpSyncNearDeltaInfo Opcode = 0x2d
	OpSyncToMeDeltaInfo Opcode = 0x2e

	// OpServerChangeInfo is synthesized by the capture layer when the game
	// connection moves to another server. It never appears on the wire.
	OpServerChangeInfo Opcode = 0x10000
)

var opcodeNames = map[Opcode]string{
	OpServerChangeInfo:  "ServerChangeInfo",
	OpSyncNearEntities:  "SyncNearEntities",
	OpSyncContainerData: "SyncContainerData",
	OpSyncServerTime:    "SyncServerTime",
	OpSyncToMeDeltaInfo: "SyncToMeDeltaInfo",
	OpSyncNearDeltaInfo: "SyncNearDeltaInfo",
}

// Opcodes lists every opcode the live meter handles.
var Opcodes = []Opcode{
	OpServerChangeInfo,
	OpSyncNearEntities,
	OpSyncContainerData,
	OpSyncServerTime,
	OpSyncToMeDeltaInfo,
	OpSyncNearDeltaInfo,
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%x)", uint32(o))
}

// ParseOpcode accepts an opcode name or a numeric value (decimal or 0x hex).
func ParseOpcode(s string) (Opcode, error) {
	for op, name := range opcodeNames {
		if strings.EqualFold(name, s) {
			return op, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown opcode %q", s)
	}
	return Opcode(v), nil
}

func (o Opcode) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Opcode) UnmarshalText(b []byte) error {
	op, err := ParseOpcode(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
