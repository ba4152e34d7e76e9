package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func nameBlob(name string) []byte {
	b := []byte{0x0a}
	b = protowire.AppendVarint(b, uint64(len(name)))
	return append(b, name...)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		id   int32
		raw  []byte
		want Value
	}{
		{"name", IDName, nameBlob("Sailor"), Value{Kind: KindName, Name: "Sailor"}},
		{"empty name", IDName, nameBlob(""), Value{Kind: KindName}},
		{"unicode name", IDName, nameBlob("ルナ"), Value{Kind: KindName, Name: "ルナ"}},
		{"monster id", IDID, protowire.AppendVarint(nil, 10032), Value{Kind: KindMonsterID, Int: 10032}},
		{"curr hp", IDCurrHP, protowire.AppendVarint(nil, 870), Value{Kind: KindCurrHP, Int: 870}},
		{"max hp", IDMaxHP, protowire.AppendVarint(nil, 1_000_000), Value{Kind: KindMaxHP, Int: 1_000_000}},
		{"narrowed to int32", IDCurrHP, protowire.AppendVarint(nil, 1<<32+5), Value{Kind: KindCurrHP, Int: 5}},
		{"unknown id", 0x7777, []byte{0xff}, Value{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.id, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		id   int32
		raw  []byte
	}{
		{"name missing marker", IDName, nil},
		{"name missing length", IDName, []byte{0x0a}},
		{"name length past end", IDName, []byte{0x0a, 0x09, 'a'}},
		{"name invalid utf8", IDName, []byte{0x0a, 0x02, 0xff, 0xfe}},
		{"empty varint", IDCurrHP, nil},
		{"truncated varint", IDMaxHP, []byte{0x80, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.id, tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestReader(t *testing.T) {
	b := []byte{0x01}
	b = protowire.AppendVarint(b, 300)
	b = append(b, 0x02, 'h', 'i', 0xaa, 0xbb)

	r := NewReader(b)

	v, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), v)

	n, err := r.ReadVarint()
	require.NoError(t, err)
	assert.Equal(t, uint64(300), n)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	assert.Equal(t, 2, r.Remaining())
	rest, err := r.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb}, rest)

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = r.ReadBytes(1)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "name", KindName.String())
	assert.Equal(t, "curr_hp", KindCurrHP.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
