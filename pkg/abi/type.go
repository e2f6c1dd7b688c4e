package abi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the Solidity type variants the decoder understands.
type Kind uint8

const (
	KindUint Kind = iota
	KindInt
	KindAddress
	KindBool
	KindFixedBytes
	KindBytes
	KindString
	KindFixedArray
	KindDynamicArray
	KindTuple
)

// Type is a parsed Solidity type expression. It is a tagged tree: Kind
// selects the variant, and only the fields belonging to that variant are
// meaningful.
type Type struct {
	Kind Kind

	// Bits is the declared width for uint/int types, always a multiple of
	// eight in [8, 256].
	Bits int

	// Size is N for bytesN and the element count for fixed arrays.
	Size int

	// Elem is the element type of arrays.
	Elem *Type

	// Components are the member types of tuples, in declared order.
	Components []Type
}

// String returns the canonical textual form of the type following the
// Solidity grammar: tuples as (T1,T2,...), dynamic arrays as T[], fixed
// arrays as T[N], integer widths always explicit.
func (t Type) String() string {
	switch t.Kind {
	case KindUint:
		return "uint" + strconv.Itoa(t.Bits)
	case KindInt:
		return "int" + strconv.Itoa(t.Bits)
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindFixedBytes:
		return "bytes" + strconv.Itoa(t.Size)
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	case KindFixedArray:
		return t.Elem.String() + "[" + strconv.Itoa(t.Size) + "]"
	case KindDynamicArray:
		return t.Elem.String() + "[]"
	case KindTuple:
		parts := make([]string, len(t.Components))
		for i, c := range t.Components {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return "unknown"
}

// IsDynamic reports whether the ABI encoding of the type is dynamically
// sized. Dynamic types occupy a single offset word in the head section and
// place their payload in the tail.
func (t Type) IsDynamic() bool {
	switch t.Kind {
	case KindBytes, KindString, KindDynamicArray:
		return true
	case KindFixedArray:
		return t.Elem.IsDynamic()
	case KindTuple:
		for _, c := range t.Components {
			if c.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsValueType reports whether the type fits a single 32-byte word. Indexed
// event parameters of value types appear verbatim in topic slots; all other
// types are stored as the Keccak-256 hash of their encoding.
func (t Type) IsValueType() bool {
	switch t.Kind {
	case KindUint, KindInt, KindAddress, KindBool, KindFixedBytes:
		return true
	default:
		return false
	}
}

// HeadWords returns the number of 32-byte words the type contributes to the
// head section of its enclosing frame. Dynamic types contribute one offset
// word; static composites contribute the sum of their members.
func (t Type) HeadWords() int {
	if t.IsDynamic() {
		return 1
	}
	switch t.Kind {
	case KindFixedArray:
		return t.Size * t.Elem.HeadWords()
	case KindTuple:
		n := 0
		for _, c := range t.Components {
			n += c.HeadWords()
		}
		return n
	default:
		return 1
	}
}

// Component is the JSON shape of a tuple member in an ABI document.
type Component struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Components []Component `json:"components,omitempty"`
}

// ParseType parses a Solidity type string as it appears in ABI JSON
// ("uint256", "address[4]", "tuple[]", ...). Tuple member types come from
// the components list rather than the type string itself.
func ParseType(s string, components []Component) (Type, error) {
	if s == "" {
		return Type{}, errors.New("empty type string")
	}

	// Peel array suffixes from the right so "uint8[2][]" parses as a
	// dynamic array of uint8[2].
	if strings.HasSuffix(s, "]") {
		open := strings.LastIndex(s, "[")
		if open < 0 {
			return Type{}, errors.Errorf("malformed array type %q", s)
		}
		inner, err := ParseType(s[:open], components)
		if err != nil {
			return Type{}, err
		}
		dim := s[open+1 : len(s)-1]
		if dim == "" {
			return Type{Kind: KindDynamicArray, Elem: &inner}, nil
		}
		n, err := strconv.Atoi(dim)
		if err != nil {
			return Type{}, errors.Errorf("malformed array length in %q", s)
		}
		if n <= 0 {
			return Type{}, errors.Errorf("fixed array of length %d in %q", n, s)
		}
		return Type{Kind: KindFixedArray, Size: n, Elem: &inner}, nil
	}

	switch {
	case s == "address":
		return Type{Kind: KindAddress}, nil
	case s == "bool":
		return Type{Kind: KindBool}, nil
	case s == "string":
		return Type{Kind: KindString}, nil
	case s == "bytes":
		return Type{Kind: KindBytes}, nil
	case s == "tuple":
		if len(components) == 0 {
			return Type{}, errors.New("tuple type with no components")
		}
		members := make([]Type, len(components))
		for i, c := range components {
			m, err := ParseType(c.Type, c.Components)
			if err != nil {
				return Type{}, errors.Wrapf(err, "tuple component %q", c.Name)
			}
			members[i] = m
		}
		return Type{Kind: KindTuple, Components: members}, nil
	case strings.HasPrefix(s, "uint"):
		bits, err := parseBits(s[4:])
		if err != nil {
			return Type{}, errors.Wrapf(err, "type %q", s)
		}
		return Type{Kind: KindUint, Bits: bits}, nil
	case strings.HasPrefix(s, "int"):
		bits, err := parseBits(s[3:])
		if err != nil {
			return Type{}, errors.Wrapf(err, "type %q", s)
		}
		return Type{Kind: KindInt, Bits: bits}, nil
	case strings.HasPrefix(s, "bytes"):
		n, err := strconv.Atoi(s[5:])
		if err != nil || n < 1 || n > 32 {
			return Type{}, errors.Errorf("malformed fixed bytes type %q", s)
		}
		return Type{Kind: KindFixedBytes, Size: n}, nil
	}
	return Type{}, errors.Errorf("unknown type %q", s)
}

func parseBits(s string) (int, error) {
	if s == "" {
		// Solidity normalizes bare uint/int to 256 bits.
		return 256, nil
	}
	bits, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("malformed bit width %q", s)
	}
	if bits < 8 || bits > 256 || bits%8 != 0 {
		return 0, fmt.Errorf("unsupported bit width %d", bits)
	}
	return bits, nil
}
