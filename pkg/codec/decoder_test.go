package codec

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
)

func mustType(t *testing.T, s string, components ...abi.Component) abi.Type {
	t.Helper()
	parsed, err := abi.ParseType(s, components)
	require.NoError(t, err)
	return parsed
}

// u256 encodes n as a left-padded 32-byte word.
func u256(n int64) []byte {
	return common.LeftPadBytes(big.NewInt(n).Bytes(), 32)
}

// rightPadded encodes b right-padded to a word multiple.
func rightPadded(b []byte) []byte {
	size := (len(b) + 31) / 32 * 32
	return common.RightPadBytes(b, size)
}

func concat(words ...[]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

func testDecoder() *Decoder {
	return NewDecoder(zap.NewNop())
}

func decodeOne(t *testing.T, typ abi.Type, data []byte) Value {
	t.Helper()
	values, err := testDecoder().DecodeParams([]abi.Type{typ}, data)
	require.NoError(t, err)
	require.Len(t, values, 1)
	return values[0]
}

func TestDecodeUint_AllWidths(t *testing.T) {
	// Every byte boundary from 8 to 256 bits decodes the low bytes as an
	// unsigned big-endian integer.
	for bits := 8; bits <= 256; bits += 8 {
		typ := abi.Type{Kind: abi.KindUint, Bits: bits}
		word := make([]byte, 32)
		word[31] = 0x2a
		v := decodeOne(t, typ, word)
		assert.Equal(t, ValueUint, v.Kind)
		assert.Equal(t, int64(42), v.Big.Int64(), "bits=%d", bits)
		assert.Equal(t, bits, v.Bits)
	}
}

func TestDecodeUint_MaxValue(t *testing.T) {
	word := make([]byte, 32)
	for i := range word {
		word[i] = 0xff
	}
	v := decodeOne(t, mustType(t, "uint256"), word)
	expected := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	assert.Equal(t, 0, v.Big.Cmp(expected))
}

func TestDecodeUint_DirtyHighBytesWarnOnly(t *testing.T) {
	// Non-zero bytes above the declared width are tolerated; the value
	// still comes from the low bytes.
	word := make([]byte, 32)
	word[0] = 0xff
	word[31] = 0x07
	v := decodeOne(t, mustType(t, "uint8"), word)
	assert.Equal(t, int64(7), v.Big.Int64())
}

func TestDecodeInt_SignExtension(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		word []byte
		want *big.Int
	}{
		{name: "int8 minus one", typ: "int8", word: common.LeftPadBytes([]byte{0xff}, 32), want: big.NewInt(-1)},
		{name: "int8 min", typ: "int8", word: common.LeftPadBytes([]byte{0x80}, 32), want: big.NewInt(-128)},
		{name: "int8 max", typ: "int8", word: common.LeftPadBytes([]byte{0x7f}, 32), want: big.NewInt(127)},
		{name: "int16 minus two", typ: "int16", word: common.LeftPadBytes([]byte{0xff, 0xfe}, 32), want: big.NewInt(-2)},
		{name: "int256 minus one", typ: "int256", word: []byte{
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
			0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		}, want: big.NewInt(-1)},
		{name: "int32 positive", typ: "int32", word: u256(1234567), want: big.NewInt(1234567)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := decodeOne(t, mustType(t, tt.typ), tt.word)
			assert.Equal(t, ValueInt, v.Kind)
			assert.Equal(t, 0, v.Big.Cmp(tt.want), "got %s want %s", v.Big, tt.want)
		})
	}
}

func TestDecodeAddress(t *testing.T) {
	addr := common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	word := common.LeftPadBytes(addr.Bytes(), 32)
	v := decodeOne(t, mustType(t, "address"), word)
	assert.Equal(t, ValueAddress, v.Kind)
	assert.Equal(t, addr.Bytes(), v.Raw)
}

func TestDecodeBool(t *testing.T) {
	v := decodeOne(t, mustType(t, "bool"), u256(1))
	assert.True(t, v.Bool)

	v = decodeOne(t, mustType(t, "bool"), u256(0))
	assert.False(t, v.Bool)

	_, err := testDecoder().DecodeParams([]abi.Type{mustType(t, "bool")}, u256(2))
	require.Error(t, err)
	assert.Equal(t, ErrTagBadBool, err.(*DecodeError).Tag)
}

func TestDecodeFixedBytes(t *testing.T) {
	word := common.RightPadBytes([]byte{0xde, 0xad, 0xbe, 0xef}, 32)
	v := decodeOne(t, mustType(t, "bytes4"), word)
	assert.Equal(t, ValueFixedBytes, v.Kind)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, v.Raw)
	assert.Equal(t, 4, v.Size)
}

func TestDecodeDynamicBytes(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	data := concat(u256(0x20), u256(int64(len(payload))), rightPadded(payload))
	v := decodeOne(t, mustType(t, "bytes"), data)
	assert.Equal(t, ValueBytes, v.Kind)
	assert.Equal(t, payload, v.Raw)
}

func TestDecodeEmptyBytes(t *testing.T) {
	// Zero-length dynamic bytes decode without error.
	data := concat(u256(0x20), u256(0))
	v := decodeOne(t, mustType(t, "bytes"), data)
	assert.Equal(t, ValueBytes, v.Kind)
	assert.Empty(t, v.Raw)
}

func TestDecodeString(t *testing.T) {
	data := concat(u256(0x20), u256(5), rightPadded([]byte("hello")))
	v := decodeOne(t, mustType(t, "string"), data)
	assert.Equal(t, ValueString, v.Kind)
	assert.Equal(t, "hello", v.Str)
}

func TestDecodeString_InvalidUTF8(t *testing.T) {
	data := concat(u256(0x20), u256(2), rightPadded([]byte{0xff, 0xfe}))
	_, err := testDecoder().DecodeParams([]abi.Type{mustType(t, "string")}, data)
	require.Error(t, err)
	assert.Equal(t, ErrTagInvalidUTF8, err.(*DecodeError).Tag)
}

func TestDecodeDynamicArrayOfStrings(t *testing.T) {
	// data = [offset(0x20)][length=2][offset(0x40)][offset(0x80)]
	//        [len=5]["hello"+pad][len=5]["world"+pad]
	data := concat(
		u256(0x20),
		u256(2),
		u256(0x40),
		u256(0x80),
		u256(5), rightPadded([]byte("hello")),
		u256(5), rightPadded([]byte("world")),
	)
	v := decodeOne(t, mustType(t, "string[]"), data)
	require.Equal(t, ValueArray, v.Kind)
	require.Len(t, v.Elems, 2)
	assert.Equal(t, "hello", v.Elems[0].Str)
	assert.Equal(t, "world", v.Elems[1].Str)
}

func TestDecodeDynamicArrayOfUints(t *testing.T) {
	data := concat(u256(0x20), u256(3), u256(10), u256(20), u256(30))
	v := decodeOne(t, mustType(t, "uint256[]"), data)
	require.Equal(t, ValueArray, v.Kind)
	require.Len(t, v.Elems, 3)
	assert.Equal(t, int64(10), v.Elems[0].Big.Int64())
	assert.Equal(t, int64(30), v.Elems[2].Big.Int64())
}

func TestDecodeFixedArray_Static(t *testing.T) {
	// No length prefix, no indirection: elements in place.
	data := concat(u256(7), u256(8))
	v := decodeOne(t, mustType(t, "uint256[2]"), data)
	require.Equal(t, ValueArray, v.Kind)
	require.Len(t, v.Elems, 2)
	assert.Equal(t, int64(7), v.Elems[0].Big.Int64())
	assert.Equal(t, int64(8), v.Elems[1].Big.Int64())
}

func TestDecodeFixedArray_DynamicElements(t *testing.T) {
	// string[2]: head offset, then two element offsets (no length word),
	// relative to the array frame.
	data := concat(
		u256(0x20),
		u256(0x40),
		u256(0x80),
		u256(2), rightPadded([]byte("ab")),
		u256(3), rightPadded([]byte("cde")),
	)
	v := decodeOne(t, mustType(t, "string[2]"), data)
	require.Equal(t, ValueArray, v.Kind)
	require.Len(t, v.Elems, 2)
	assert.Equal(t, "ab", v.Elems[0].Str)
	assert.Equal(t, "cde", v.Elems[1].Str)
}

func TestDecodeStaticTuple_InPlace(t *testing.T) {
	typ := mustType(t, "tuple",
		abi.Component{Name: "a", Type: "uint256"},
		abi.Component{Name: "b", Type: "bool"},
	)
	data := concat(u256(99), u256(1))
	v := decodeOne(t, typ, data)
	require.Equal(t, ValueTuple, v.Kind)
	require.Len(t, v.Elems, 2)
	assert.Equal(t, int64(99), v.Elems[0].Big.Int64())
	assert.True(t, v.Elems[1].Bool)
}

func TestDecodeDynamicTuple(t *testing.T) {
	// A tuple with a dynamic member is itself dynamic: one offset word,
	// then a nested head/tail frame.
	typ := mustType(t, "tuple",
		abi.Component{Name: "a", Type: "uint256"},
		abi.Component{Name: "b", Type: "string"},
	)
	data := concat(
		u256(0x20),
		u256(5),
		u256(0x40),
		u256(2), rightPadded([]byte("hi")),
	)
	v := decodeOne(t, typ, data)
	require.Equal(t, ValueTuple, v.Kind)
	require.Len(t, v.Elems, 2)
	assert.Equal(t, int64(5), v.Elems[0].Big.Int64())
	assert.Equal(t, "hi", v.Elems[1].Str)
}

func TestDecodeMultipleParams(t *testing.T) {
	// (uint256, string, bool): static head, offset, static head, tail.
	types := []abi.Type{mustType(t, "uint256"), mustType(t, "string"), mustType(t, "bool")}
	data := concat(
		u256(77),
		u256(0x60),
		u256(1),
		u256(3), rightPadded([]byte("xyz")),
	)
	values, err := testDecoder().DecodeParams(types, data)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, int64(77), values[0].Big.Int64())
	assert.Equal(t, "xyz", values[1].Str)
	assert.True(t, values[2].Bool)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		data []byte
		tag  string
	}{
		{
			name: "truncated static word",
			typ:  "uint256",
			data: []byte{0x01, 0x02},
			tag:  ErrTagPayloadTruncated,
		},
		{
			name: "offset past end",
			typ:  "bytes",
			data: u256(0x200),
			tag:  ErrTagOffsetOutOfRange,
		},
		{
			name: "offset not aligned",
			typ:  "bytes",
			data: concat(u256(0x21), u256(0), u256(0)),
			tag:  ErrTagOffsetOutOfRange,
		},
		{
			name: "string payload truncated",
			typ:  "string",
			data: concat(u256(0x20), u256(64), rightPadded([]byte("short"))),
			tag:  ErrTagPayloadTruncated,
		},
		{
			name: "array length exceeds remaining bytes",
			typ:  "uint256[]",
			data: concat(u256(0x20), u256(1000), u256(1)),
			tag:  ErrTagLengthOutOfRange,
		},
		{
			name: "length word exceeds 64 bits",
			typ:  "bytes",
			data: concat(u256(0x20), hugeLengthWord()),
			tag:  ErrTagLengthOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testDecoder().DecodeParams([]abi.Type{mustType(t, tt.typ)}, tt.data)
			require.Error(t, err)
			de, ok := err.(*DecodeError)
			require.True(t, ok, "error is %T", err)
			assert.Equal(t, tt.tag, de.Tag)
		})
	}
}

func hugeLengthWord() []byte {
	w := make([]byte, 32)
	w[0] = 0x01
	return w
}

func TestDecodeBackwardsOffsetAccepted(t *testing.T) {
	// Two dynamic params sharing the same tail: legal, some encoders emit
	// overlapping offsets.
	types := []abi.Type{mustType(t, "bytes"), mustType(t, "bytes")}
	data := concat(
		u256(0x40),
		u256(0x40),
		u256(3), rightPadded([]byte{9, 9, 9}),
	)
	values, err := testDecoder().DecodeParams(types, data)
	require.NoError(t, err)
	assert.Equal(t, values[0].Raw, values[1].Raw)
}
