package codec

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueUint ValueKind = iota
	ValueInt
	ValueAddress
	ValueBool
	ValueFixedBytes
	ValueBytes
	ValueString
	ValueArray
	ValueTuple
)

// Value is one decoded parameter value. It is a tagged variant: Kind selects
// which fields carry the payload. Values live only for the duration of one
// row's decoding; the executor materializes them into string columns.
type Value struct {
	Kind ValueKind

	// Big holds uint/int values, Bits their declared width.
	Big  *big.Int
	Bits int

	// Raw holds address (20 bytes), fixed bytes (Size bytes) and dynamic
	// bytes payloads. For indexed reference-typed parameters it holds the
	// 32-byte Keccak hash of the value and Hashed is set.
	Raw    []byte
	Size   int
	Hashed bool

	Bool  bool
	Str   string
	Elems []Value
}

// Format renders the value in the tagged form used by the event_values
// column: Uint(100, 256), Address(0x...), String("hello"),
// Array([Uint(1, 8), Uint(2, 8)]), Tuple((Bool(true), Bytes(0x00))).
func (v Value) Format(upperHex bool) string {
	var b strings.Builder
	v.format(&b, upperHex)
	return b.String()
}

func (v Value) format(b *strings.Builder, upperHex bool) {
	switch v.Kind {
	case ValueUint:
		b.WriteString("Uint(")
		b.WriteString(v.Big.String())
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(v.Bits))
		b.WriteByte(')')
	case ValueInt:
		b.WriteString("Int(")
		b.WriteString(v.Big.String())
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(v.Bits))
		b.WriteByte(')')
	case ValueAddress:
		b.WriteString("Address(")
		b.WriteString(hexString(v.Raw, upperHex))
		b.WriteByte(')')
	case ValueBool:
		b.WriteString("Bool(")
		b.WriteString(strconv.FormatBool(v.Bool))
		b.WriteByte(')')
	case ValueFixedBytes:
		b.WriteString("FixedBytes(")
		b.WriteString(hexString(v.Raw, upperHex))
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(v.Size))
		b.WriteByte(')')
	case ValueBytes:
		b.WriteString("Bytes(")
		b.WriteString(hexString(v.Raw, upperHex))
		b.WriteByte(')')
	case ValueString:
		b.WriteString("String(")
		b.WriteString(strconv.Quote(v.Str))
		b.WriteByte(')')
	case ValueArray:
		b.WriteString("Array([")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b, upperHex)
		}
		b.WriteString("])")
	case ValueTuple:
		b.WriteString("Tuple((")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			e.format(b, upperHex)
		}
		b.WriteString("))")
	}
}

// Plain renders the bare value without the variant tag, for the event_json
// column: integers in decimal, addresses and byte payloads as 0x-prefixed
// hex, composites as nested slices.
func (v Value) Plain(upperHex bool) interface{} {
	switch v.Kind {
	case ValueUint, ValueInt:
		return v.Big.String()
	case ValueAddress, ValueFixedBytes, ValueBytes:
		return hexString(v.Raw, upperHex)
	case ValueBool:
		return v.Bool
	case ValueString:
		return v.Str
	case ValueArray, ValueTuple:
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = e.Plain(upperHex)
		}
		return out
	}
	return nil
}

func hexString(b []byte, upper bool) string {
	s := hex.EncodeToString(b)
	if upper {
		s = strings.ToUpper(s)
	}
	return "0x" + s
}
