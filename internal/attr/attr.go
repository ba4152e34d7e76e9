// Package attr interprets the generic (id, raw bytes) attribute records that
// the game embeds in entity sync and delta messages.
package attr

import "fmt"

// Known attribute ids.
const (
	IDName   int32 = 0x01
	IDID     int32 = 0x0a
	IDCurrHP int32 = 0x2c2e
	IDMaxHP  int32 = 0x2c38
)

// Kind identifies which field an attribute carries.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindName
	KindMonsterID
	KindCurrHP
	KindMaxHP
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "name"
	case KindMonsterID:
		return "monster_id"
	case KindCurrHP:
		return "curr_hp"
	case KindMaxHP:
		return "max_hp"
	default:
		return "unknown"
	}
}

// Value is a decoded attribute. Name is set for KindName, Int for the
// numeric kinds.
type Value struct {
	Kind Kind
	Name string
	Int  int32
}

// Decode interprets raw according to id. Unknown ids yield KindUnknown and a
// nil error so callers can skip them silently.
func Decode(id int32, raw []byte) (Value, error) {
	switch id {
	case IDName:
		name, err := decodeName(raw)
		if err != nil {
			return Value{}, fmt.Errorf("name attribute: %w", err)
		}
		return Value{Kind: KindName, Name: name}, nil
	case IDID:
		return decodeInt(KindMonsterID, raw)
	case IDCurrHP:
		return decodeInt(KindCurrHP, raw)
	case IDMaxHP:
		return decodeInt(KindMaxHP, raw)
	default:
		return Value{}, nil
	}
}

// decodeName drops the leading framing byte and reads the remaining
// length-prefixed string.
func decodeName(raw []byte) (string, error) {
	r := NewReader(raw)
	if _, err := r.ReadByte(); err != nil {
		return "", err
	}
	return r.ReadString()
}

func decodeInt(kind Kind, raw []byte) (Value, error) {
	v, err := NewReader(raw).ReadVarint()
	if err != nil {
		return Value{}, fmt.Errorf("%s attribute: %w", kind, err)
	}
	return Value{Kind: kind, Int: int32(v)}, nil
}
