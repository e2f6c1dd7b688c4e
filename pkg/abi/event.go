package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Param is a single event or function parameter in declared order.
type Param struct {
	Name    string
	Type    Type
	Indexed bool
}

// Event is one normalized ABI entry, either an event or a function kept for
// future trace decoding. Address is the contract it was read from, or the
// zero address when the source carried no address.
type Event struct {
	Name            string
	Anonymous       bool
	Inputs          []Param
	StateMutability string
	Address         common.Address
	SourceFile      string
}

// Signature returns the canonical signature "name(T1,T2,...)" with no
// spaces and no parameter names.
func (e *Event) Signature() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	for i, in := range e.Inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(in.Type.String())
	}
	b.WriteByte(')')
	return b.String()
}

// FullSignature returns the human-readable signature including parameter
// names and the indexed keyword, e.g.
// "Transfer(address indexed from, address indexed to, uint256 value)".
func (e *Event) FullSignature() string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte('(')
	for i, in := range e.Inputs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(in.Type.String())
		if in.Indexed {
			b.WriteString(" indexed")
		}
		if in.Name != "" {
			b.WriteByte(' ')
			b.WriteString(in.Name)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Topic0 returns the Keccak-256 hash of the canonical signature. Anonymous
// events get the same synthetic hash; they are matched by full signature
// rather than by topic.
func (e *Event) Topic0() common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(e.Signature())))
}

// Selector returns the 4-byte function selector, the truncated Keccak-256
// of the canonical signature.
func (e *Event) Selector() [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(e.Signature()))[:4])
	return sel
}

// NumIndexedArgs returns the count of indexed parameters.
func (e *Event) NumIndexedArgs() int {
	n := 0
	for _, in := range e.Inputs {
		if in.Indexed {
			n++
		}
	}
	return n
}

// IndexedInputs returns the indexed parameters in declared order.
func (e *Event) IndexedInputs() []Param {
	out := make([]Param, 0, 4)
	for _, in := range e.Inputs {
		if in.Indexed {
			out = append(out, in)
		}
	}
	return out
}

// BodyInputs returns the non-indexed parameters in declared order. They are
// decoded from the data payload as a single head/tail frame.
func (e *Event) BodyInputs() []Param {
	out := make([]Param, 0, len(e.Inputs))
	for _, in := range e.Inputs {
		if !in.Indexed {
			out = append(out, in)
		}
	}
	return out
}

// Validate checks the structural constraints on an event entry: a name is
// required and at most 3 indexed parameters are allowed (4 for anonymous
// events, which do not spend a topic slot on the signature hash).
func (e *Event) Validate() error {
	if e.Name == "" {
		return errors.New("event with no name")
	}
	limit := 3
	if e.Anonymous {
		limit = 4
	}
	if n := e.NumIndexedArgs(); n > limit {
		return errors.Errorf("event %s has %d indexed parameters, limit %d", e.Name, n, limit)
	}
	return nil
}

// ParseFullSignature parses a human-readable signature of the form produced
// by FullSignature back into an Event. Parameter names and the indexed
// keyword are optional: "X(uint256,uint256)" and
// "Transfer(address indexed from, address to)" both parse.
//
// This is the entry path for anonymous events, where the caller supplies the
// signature because no topic0 exists to match on.
func ParseFullSignature(sig string) (*Event, error) {
	open := strings.Index(sig, "(")
	if open <= 0 || !strings.HasSuffix(sig, ")") {
		return nil, errors.Errorf("malformed signature %q", sig)
	}
	name := sig[:open]
	body := sig[open+1 : len(sig)-1]

	ev := &Event{Name: name}
	if strings.TrimSpace(body) == "" {
		return ev, nil
	}

	for _, field := range splitTopLevel(body) {
		parts := strings.Fields(field)
		if len(parts) == 0 {
			return nil, errors.Errorf("empty parameter in signature %q", sig)
		}
		p := Param{}
		typeStr, rest := parts[0], parts[1:]
		if len(rest) > 0 && rest[0] == "indexed" {
			p.Indexed = true
			rest = rest[1:]
		}
		if len(rest) > 1 {
			return nil, errors.Errorf("malformed parameter %q in signature %q", field, sig)
		}
		if len(rest) == 1 {
			p.Name = rest[0]
		}
		t, err := parseSignatureType(typeStr)
		if err != nil {
			return nil, errors.Wrapf(err, "signature %q", sig)
		}
		p.Type = t
		ev.Inputs = append(ev.Inputs, p)
	}
	return ev, nil
}

// parseSignatureType handles the canonical textual grammar, where tuples
// appear inline as parenthesized lists instead of "tuple" + components.
func parseSignatureType(s string) (Type, error) {
	if strings.HasPrefix(s, "(") {
		end := matchingParen(s)
		if end < 0 {
			return Type{}, errors.Errorf("unbalanced parentheses in type %q", s)
		}
		inner := s[1:end]
		var members []Type
		if strings.TrimSpace(inner) != "" {
			for _, part := range splitTopLevel(inner) {
				m, err := parseSignatureType(strings.TrimSpace(part))
				if err != nil {
					return Type{}, err
				}
				members = append(members, m)
			}
		}
		t := Type{Kind: KindTuple, Components: members}
		// Array suffixes may follow the closing parenthesis.
		return applyArraySuffix(t, s[end+1:])
	}
	return ParseType(s, nil)
}

func applyArraySuffix(t Type, suffix string) (Type, error) {
	for suffix != "" {
		if !strings.HasPrefix(suffix, "[") {
			return Type{}, errors.Errorf("trailing garbage %q after tuple type", suffix)
		}
		end := strings.Index(suffix, "]")
		if end < 0 {
			return Type{}, errors.Errorf("unbalanced bracket in %q", suffix)
		}
		dim := suffix[1:end]
		elem := t
		if dim == "" {
			t = Type{Kind: KindDynamicArray, Elem: &elem}
		} else {
			n, err := parsePositive(dim)
			if err != nil {
				return Type{}, err
			}
			t = Type{Kind: KindFixedArray, Size: n, Elem: &elem}
		}
		suffix = suffix[end+1:]
	}
	return t, nil
}

func parsePositive(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("malformed array length %q", s)
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, errors.Errorf("fixed array of length %d", n)
	}
	return n, nil
}

// splitTopLevel splits on commas that are not nested inside parentheses or
// brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

func matchingParen(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
