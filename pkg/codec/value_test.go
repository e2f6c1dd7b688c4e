package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueFormat(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{
			name:  "uint",
			value: Value{Kind: ValueUint, Big: big.NewInt(11181), Bits: 256},
			want:  "Uint(11181, 256)",
		},
		{
			name:  "negative int",
			value: Value{Kind: ValueInt, Big: big.NewInt(-5), Bits: 32},
			want:  "Int(-5, 32)",
		},
		{
			name:  "address",
			value: Value{Kind: ValueAddress, Raw: []byte{0xda, 0xc1, 0x7f}},
			want:  "Address(0xdac17f)",
		},
		{
			name:  "bool",
			value: Value{Kind: ValueBool, Bool: true},
			want:  "Bool(true)",
		},
		{
			name:  "fixed bytes",
			value: Value{Kind: ValueFixedBytes, Raw: []byte{0xde, 0xad}, Size: 2},
			want:  "FixedBytes(0xdead, 2)",
		},
		{
			name:  "bytes",
			value: Value{Kind: ValueBytes, Raw: []byte{0x00, 0x2b, 0xad}},
			want:  "Bytes(0x002bad)",
		},
		{
			name:  "string quotes and escapes",
			value: Value{Kind: ValueString, Str: "he said \"hi\"\n"},
			want:  `String("he said \"hi\"\n")`,
		},
		{
			name: "array",
			value: Value{Kind: ValueArray, Elems: []Value{
				{Kind: ValueString, Str: "hello"},
				{Kind: ValueString, Str: "world"},
			}},
			want: `Array([String("hello"), String("world")])`,
		},
		{
			name: "tuple",
			value: Value{Kind: ValueTuple, Elems: []Value{
				{Kind: ValueUint, Big: big.NewInt(1), Bits: 8},
				{Kind: ValueBool, Bool: false},
			}},
			want: "Tuple((Uint(1, 8), Bool(false)))",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Format(false))
		})
	}
}

func TestValueFormat_UppercaseHex(t *testing.T) {
	v := Value{Kind: ValueBytes, Raw: []byte{0xde, 0xad, 0xbe, 0xef}}
	assert.Equal(t, "Bytes(0xDEADBEEF)", v.Format(true))
}

func TestValuePlain(t *testing.T) {
	arr := Value{Kind: ValueArray, Elems: []Value{
		{Kind: ValueUint, Big: big.NewInt(10), Bits: 256},
		{Kind: ValueUint, Big: big.NewInt(20), Bits: 256},
	}}
	assert.Equal(t, []interface{}{"10", "20"}, arr.Plain(false))

	addr := Value{Kind: ValueAddress, Raw: []byte{0xab, 0xcd}}
	assert.Equal(t, "0xabcd", addr.Plain(false))

	b := Value{Kind: ValueBool, Bool: true}
	assert.Equal(t, true, b.Plain(false))
}
