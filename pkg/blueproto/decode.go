package blueproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldFunc consumes the value of one field and returns the number of bytes
// read. Returning 0 leaves the field to be skipped as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// decodeFields walks a message body, handing every field to fn. Unknown
// fields and fields with an unexpected wire type are skipped.
func decodeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int) {
	if typ != protowire.VarintType {
		return 0, 0
	}
	return protowire.ConsumeVarint(b)
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int) {
	if typ != protowire.BytesType {
		return nil, 0
	}
	return protowire.ConsumeBytes(b)
}

func consumeFloat(typ protowire.Type, b []byte) (float32, int) {
	if typ != protowire.Fixed32Type {
		return 0, 0
	}
	v, n := protowire.ConsumeFixed32(b)
	return math.Float32frombits(v), n
}

func int64Field(dst **int64) func(protowire.Type, []byte) int {
	return func(typ protowire.Type, b []byte) int {
		v, n := consumeVarint(typ, b)
		if n > 0 {
			x := int64(v)
			*dst = &x
		}
		return n
	}
}

func int32Field(dst **int32) func(protowire.Type, []byte) int {
	return func(typ protowire.Type, b []byte) int {
		v, n := consumeVarint(typ, b)
		if n > 0 {
			x := int32(v)
			*dst = &x
		}
		return n
	}
}

func uint32Field(dst **uint32) func(protowire.Type, []byte) int {
	return func(typ protowire.Type, b []byte) int {
		v, n := consumeVarint(typ, b)
		if n > 0 {
			x := uint32(v)
			*dst = &x
		}
		return n
	}
}

func boolField(dst **bool) func(protowire.Type, []byte) int {
	return func(typ protowire.Type, b []byte) int {
		v, n := consumeVarint(typ, b)
		if n > 0 {
			x := protowire.DecodeBool(v)
			*dst = &x
		}
		return n
	}
}

func floatField(dst **float32) func(protowire.Type, []byte) int {
	return func(typ protowire.Type, b []byte) int {
		v, n := consumeFloat(typ, b)
		if n > 0 {
			*dst = &v
		}
		return n
	}
}

// message decodes an embedded message field into a freshly allocated T.
func message[T any](typ protowire.Type, b []byte, name string, unmarshal func(*T, []byte) error) (*T, int, error) {
	v, n := consumeBytes(typ, b)
	if n <= 0 {
		return nil, n, nil
	}
	msg := new(T)
	if err := unmarshal(msg, v); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", name, err)
	}
	return msg, n, nil
}

// Unmarshal decodes a SyncNearEntities payload.
func (m *SyncNearEntities) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			e, n, err := message(typ, b, "appear", (*AoiSyncEntity).Unmarshal)
			if e != nil {
				m.Appear = append(m.Appear, e)
			}
			return n, err
		case 2:
			e, n, err := message(typ, b, "disappear", (*DisappearEntity).Unmarshal)
			if e != nil {
				m.Disappear = append(m.Disappear, e)
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes an AoiSyncEntity.
func (m *AoiSyncEntity) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.UUID)(typ, b), nil
		case 2:
			return int32Field(&m.EntType)(typ, b), nil
		case 3:
			attrs, n, err := message(typ, b, "attrs", (*AttrCollection).Unmarshal)
			if attrs != nil {
				m.Attrs = attrs
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes a DisappearEntity.
func (m *DisappearEntity) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.UUID)(typ, b), nil
		case 2:
			return int32Field(&m.Type)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal decodes an AttrCollection.
func (m *AttrCollection) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.UUID)(typ, b), nil
		case 2:
			a, n, err := message(typ, b, "attr", (*Attr).Unmarshal)
			if a != nil {
				m.Attrs = append(m.Attrs, a)
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes an Attr. RawData aliases b.
func (m *Attr) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(&m.ID)(typ, b), nil
		case 2:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				m.RawData = v
			}
			return n, nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a SyncContainerData payload.
func (m *SyncContainerData) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		v, n, err := message(typ, b, "v_data", (*CharSerialize).Unmarshal)
		if v != nil {
			m.VData = v
		}
		return n, err
	})
}

// Unmarshal decodes a CharSerialize.
func (m *CharSerialize) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.CharID)(typ, b), nil
		case 2:
			v, n, err := message(typ, b, "char_base", (*CharBaseInfo).Unmarshal)
			if v != nil {
				m.CharBase = v
			}
			return n, err
		case 3:
			v, n, err := message(typ, b, "scene_data", (*SceneData).Unmarshal)
			if v != nil {
				m.SceneData = v
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes a CharBaseInfo.
func (m *CharBaseInfo) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.CharID)(typ, b), nil
		case 5:
			v, n := consumeBytes(typ, b)
			if n > 0 {
				name := string(v)
				m.Name = &name
			}
			return n, nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a SceneData.
func (m *SceneData) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return uint32Field(&m.MapID)(typ, b), nil
		case 2:
			return uint32Field(&m.ChannelID)(typ, b), nil
		case 3:
			v, n, err := message(typ, b, "pos", (*Vector3).Unmarshal)
			if v != nil {
				m.Pos = v
			}
			return n, err
		case 5:
			return uint32Field(&m.LineID)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a Vector3.
func (m *Vector3) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return floatField(&m.X)(typ, b), nil
		case 2:
			return floatField(&m.Y)(typ, b), nil
		case 3:
			return floatField(&m.Z)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a SyncServerTime payload.
func (m *SyncServerTime) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.ClientMilliseconds)(typ, b), nil
		case 2:
			return int64Field(&m.ServerMilliseconds)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a SyncToMeDeltaInfo payload.
func (m *SyncToMeDeltaInfo) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		v, n, err := message(typ, b, "delta_info", (*AoiSyncToMeDelta).Unmarshal)
		if v != nil {
			m.DeltaInfo = v
		}
		return n, err
	})
}

// Unmarshal decodes an AoiSyncToMeDelta.
func (m *AoiSyncToMeDelta) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := message(typ, b, "base_delta", (*AoiSyncDelta).Unmarshal)
			if v != nil {
				m.BaseDelta = v
			}
			return n, err
		case 5:
			return int64Field(&m.UUID)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal decodes a SyncNearDeltaInfo payload.
func (m *SyncNearDeltaInfo) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return 0, nil
		}
		v, n, err := message(typ, b, "delta_infos", (*AoiSyncDelta).Unmarshal)
		if v != nil {
			m.DeltaInfos = append(m.DeltaInfos, v)
		}
		return n, err
	})
}

// Unmarshal decodes an AoiSyncDelta.
func (m *AoiSyncDelta) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.UUID)(typ, b), nil
		case 2:
			v, n, err := message(typ, b, "attrs", (*AttrCollection).Unmarshal)
			if v != nil {
				m.Attrs = v
			}
			return n, err
		case 7:
			v, n, err := message(typ, b, "skill_effects", (*SkillEffect).Unmarshal)
			if v != nil {
				m.SkillEffects = v
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes a SkillEffect.
func (m *SkillEffect) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int64Field(&m.UUID)(typ, b), nil
		case 2:
			v, n, err := message(typ, b, "damages", (*SyncDamageInfo).Unmarshal)
			if v != nil {
				m.Damages = append(m.Damages, v)
			}
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes a SyncDamageInfo.
func (m *SyncDamageInfo) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(&m.DamageSource)(typ, b), nil
		case 2:
			return boolField(&m.IsMiss)(typ, b), nil
		case 3:
			return boolField(&m.IsCrit)(typ, b), nil
		case 4:
			return int32Field(&m.Type)(typ, b), nil
		case 11:
			return int64Field(&m.AttackerUUID)(typ, b), nil
		case 14:
			return int64Field(&m.Value)(typ, b), nil
		case 16:
			return int64Field(&m.LuckyValue)(typ, b), nil
		}
		return 0, nil
	})
}

// Unmarshal accepts any ServerChangeInfo payload; its content is not used.
func (m *ServerChangeInfo) Unmarshal(b []byte) error {
	return decodeFields(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}
