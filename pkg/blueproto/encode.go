package blueproto

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendInt64(b []byte, num protowire.Number, v *int64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

func appendInt32(b []byte, num protowire.Number, v *int32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(*v)))
}

func appendUint32(b []byte, num protowire.Number, v *uint32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(*v))
}

func appendBool(b []byte, num protowire.Number, v *bool) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(*v))
}

func appendFloat(b []byte, num protowire.Number, v *float32) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(*v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncNearEntities) Marshal() []byte {
	var b []byte
	for _, e := range m.Appear {
		b = appendBytes(b, 1, e.Marshal())
	}
	for _, e := range m.Disappear {
		b = appendBytes(b, 2, e.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *AoiSyncEntity) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UUID)
	b = appendInt32(b, 2, m.EntType)
	if m.Attrs != nil {
		b = appendBytes(b, 3, m.Attrs.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *DisappearEntity) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UUID)
	return appendInt32(b, 2, m.Type)
}

// Marshal encodes the message in protobuf wire format.
func (m *AttrCollection) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UUID)
	for _, a := range m.Attrs {
		b = appendBytes(b, 2, a.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *Attr) Marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.ID)
	if m.RawData != nil {
		b = appendBytes(b, 2, m.RawData)
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncContainerData) Marshal() []byte {
	if m.VData == nil {
		return nil
	}
	return appendBytes(nil, 1, m.VData.Marshal())
}

// Marshal encodes the message in protobuf wire format.
func (m *CharSerialize) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.CharID)
	if m.CharBase != nil {
		b = appendBytes(b, 2, m.CharBase.Marshal())
	}
	if m.SceneData != nil {
		b = appendBytes(b, 3, m.SceneData.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *CharBaseInfo) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.CharID)
	if m.Name != nil {
		b = appendBytes(b, 5, []byte(*m.Name))
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *SceneData) Marshal() []byte {
	var b []byte
	b = appendUint32(b, 1, m.MapID)
	b = appendUint32(b, 2, m.ChannelID)
	if m.Pos != nil {
		b = appendBytes(b, 3, m.Pos.Marshal())
	}
	return appendUint32(b, 5, m.LineID)
}

// Marshal encodes the message in protobuf wire format.
func (m *Vector3) Marshal() []byte {
	var b []byte
	b = appendFloat(b, 1, m.X)
	b = appendFloat(b, 2, m.Y)
	return appendFloat(b, 3, m.Z)
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncServerTime) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.ClientMilliseconds)
	return appendInt64(b, 2, m.ServerMilliseconds)
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncToMeDeltaInfo) Marshal() []byte {
	if m.DeltaInfo == nil {
		return nil
	}
	return appendBytes(nil, 1, m.DeltaInfo.Marshal())
}

// Marshal encodes the message in protobuf wire format.
func (m *AoiSyncToMeDelta) Marshal() []byte {
	var b []byte
	if m.BaseDelta != nil {
		b = appendBytes(b, 1, m.BaseDelta.Marshal())
	}
	return appendInt64(b, 5, m.UUID)
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncNearDeltaInfo) Marshal() []byte {
	var b []byte
	for _, d := range m.DeltaInfos {
		b = appendBytes(b, 1, d.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *AoiSyncDelta) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UUID)
	if m.Attrs != nil {
		b = appendBytes(b, 2, m.Attrs.Marshal())
	}
	if m.SkillEffects != nil {
		b = appendBytes(b, 7, m.SkillEffects.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *SkillEffect) Marshal() []byte {
	var b []byte
	b = appendInt64(b, 1, m.UUID)
	for _, d := range m.Damages {
		b = appendBytes(b, 2, d.Marshal())
	}
	return b
}

// Marshal encodes the message in protobuf wire format.
func (m *SyncDamageInfo) Marshal() []byte {
	var b []byte
	b = appendInt32(b, 1, m.DamageSource)
	b = appendBool(b, 2, m.IsMiss)
	b = appendBool(b, 3, m.IsCrit)
	b = appendInt32(b, 4, m.Type)
	b = appendInt64(b, 11, m.AttackerUUID)
	b = appendInt64(b, 14, m.Value)
	return appendInt64(b, 16, m.LuckyValue)
}

// Marshal encodes the message in protobuf wire format.
func (m *ServerChangeInfo) Marshal() []byte { return nil }
