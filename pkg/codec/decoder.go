package codec

import (
	"encoding/binary"
	"math/big"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
)

const wordSize = 32

// Decoder decodes ABI-encoded byte payloads into Values. It holds no
// per-row state and is safe for concurrent use; workers share one instance.
type Decoder struct {
	logger *zap.Logger
}

func NewDecoder(logger *zap.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// DecodeParams decodes data as a head/tail frame holding one value per
// type, in order. This is the layout of an event's data payload (the
// non-indexed parameters form a virtual tuple) and of function call data
// after the selector.
func (d *Decoder) DecodeParams(types []abi.Type, data []byte) ([]Value, error) {
	values := make([]Value, len(types))
	cursor := 0
	for i, t := range types {
		v, n, err := d.decodeHead(t, data, cursor)
		if err != nil {
			return nil, err
		}
		values[i] = v
		cursor += n
	}
	return values, nil
}

// DecodeTopic decodes a single 32-byte topic slot holding an indexed
// parameter. Value types appear verbatim in the slot; reference types
// (strings, bytes, arrays, tuples) are stored as the Keccak-256 hash of
// their encoding, which is irreversible, so the decoder surfaces the hash
// itself as a Bytes value marked Hashed.
func (d *Decoder) DecodeTopic(t abi.Type, topic []byte) (Value, error) {
	if len(topic) != wordSize {
		return Value{}, decodeErrorf(ErrTagTopicMissing, "topic slot holds %d bytes, want 32", len(topic))
	}
	if !t.IsValueType() {
		raw := make([]byte, wordSize)
		copy(raw, topic)
		return Value{Kind: ValueBytes, Raw: raw, Hashed: true}, nil
	}
	v, _, err := d.decodeStatic(t, topic, 0)
	return v, err
}

// decodeHead decodes the value rooted at byte offset pos of the frame's
// head section and returns the number of head bytes consumed.
func (d *Decoder) decodeHead(t abi.Type, frame []byte, pos int) (Value, int, error) {
	if !t.IsDynamic() {
		return d.decodeStatic(t, frame, pos)
	}
	head, err := word(frame, pos)
	if err != nil {
		return Value{}, 0, err
	}
	offset, err := wordToOffset(head, len(frame))
	if err != nil {
		return Value{}, 0, err
	}
	if offset%wordSize != 0 {
		return Value{}, 0, decodeErrorf(ErrTagOffsetOutOfRange, "offset %d is not 32-aligned", offset)
	}
	v, err := d.decodeTail(t, frame, offset)
	if err != nil {
		return Value{}, 0, err
	}
	return v, wordSize, nil
}

// decodeStatic decodes a static type laid out in place at pos. Returns the
// byte width consumed, which exceeds one word for static composites.
func (d *Decoder) decodeStatic(t abi.Type, frame []byte, pos int) (Value, int, error) {
	switch t.Kind {
	case abi.KindUint:
		w, err := word(frame, pos)
		if err != nil {
			return Value{}, 0, err
		}
		nb := t.Bits / 8
		d.warnDirtyPadding("uint", w[:wordSize-nb])
		return Value{Kind: ValueUint, Big: new(big.Int).SetBytes(w[wordSize-nb:]), Bits: t.Bits}, wordSize, nil
	case abi.KindInt:
		w, err := word(frame, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Kind: ValueInt, Big: readSigned(w, t.Bits), Bits: t.Bits}, wordSize, nil
	case abi.KindAddress:
		w, err := word(frame, pos)
		if err != nil {
			return Value{}, 0, err
		}
		d.warnDirtyPadding("address", w[:12])
		raw := make([]byte, 20)
		copy(raw, w[12:])
		return Value{Kind: ValueAddress, Raw: raw}, wordSize, nil
	case abi.KindBool:
		w, err := word(frame, pos)
		if err != nil {
			return Value{}, 0, err
		}
		d.warnDirtyPadding("bool", w[:wordSize-1])
		switch w[wordSize-1] {
		case 0:
			return Value{Kind: ValueBool, Bool: false}, wordSize, nil
		case 1:
			return Value{Kind: ValueBool, Bool: true}, wordSize, nil
		default:
			return Value{}, 0, decodeErrorf(ErrTagBadBool, "bool byte is %#x", w[wordSize-1])
		}
	case abi.KindFixedBytes:
		w, err := word(frame, pos)
		if err != nil {
			return Value{}, 0, err
		}
		raw := make([]byte, t.Size)
		copy(raw, w[:t.Size])
		return Value{Kind: ValueFixedBytes, Raw: raw, Size: t.Size}, wordSize, nil
	case abi.KindFixedArray:
		elems := make([]Value, t.Size)
		consumed := 0
		for i := 0; i < t.Size; i++ {
			v, n, err := d.decodeStatic(*t.Elem, frame, pos+consumed)
			if err != nil {
				return Value{}, 0, err
			}
			elems[i] = v
			consumed += n
		}
		return Value{Kind: ValueArray, Elems: elems}, consumed, nil
	case abi.KindTuple:
		elems := make([]Value, len(t.Components))
		consumed := 0
		for i, c := range t.Components {
			v, n, err := d.decodeStatic(c, frame, pos+consumed)
			if err != nil {
				return Value{}, 0, err
			}
			elems[i] = v
			consumed += n
		}
		return Value{Kind: ValueTuple, Elems: elems}, consumed, nil
	}
	return Value{}, 0, decodeErrorf(ErrTagPayloadTruncated, "static decode of dynamic type %s", t)
}

// decodeTail decodes a dynamic type whose payload starts at offset within
// frame. Backwards and overlapping offsets are accepted; some legitimate
// encoders emit them.
func (d *Decoder) decodeTail(t abi.Type, frame []byte, offset int) (Value, error) {
	switch t.Kind {
	case abi.KindBytes, abi.KindString:
		length, err := lengthAt(frame, offset)
		if err != nil {
			return Value{}, err
		}
		start := offset + wordSize
		if length > len(frame) || start+length > len(frame) {
			return Value{}, decodeErrorf(ErrTagPayloadTruncated,
				"%s of length %d exceeds payload end (%d bytes)", t, length, len(frame))
		}
		payload := make([]byte, length)
		copy(payload, frame[start:start+length])
		if t.Kind == abi.KindString {
			if !utf8.Valid(payload) {
				return Value{}, decodeErrorf(ErrTagInvalidUTF8, "string payload is not valid UTF-8")
			}
			return Value{Kind: ValueString, Str: string(payload)}, nil
		}
		return Value{Kind: ValueBytes, Raw: payload}, nil

	case abi.KindDynamicArray:
		length, err := lengthAt(frame, offset)
		if err != nil {
			return Value{}, err
		}
		// Element offsets are relative to the start of the array's own
		// frame, just past the length word. Each element consumes at least
		// one head word, which bounds any credible length.
		elemFrame := frame[offset+wordSize:]
		if length > len(elemFrame)/wordSize {
			return Value{}, decodeErrorf(ErrTagLengthOutOfRange,
				"array length %d exceeds remaining %d bytes", length, len(elemFrame))
		}
		return d.decodeElems(*t.Elem, elemFrame, length)

	case abi.KindFixedArray:
		// Dynamic overall because the element type is dynamic: N offset
		// words at offset, no length prefix.
		return d.decodeElems(*t.Elem, frame[offset:], t.Size)

	case abi.KindTuple:
		sub, err := d.DecodeParams(t.Components, frame[offset:])
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: ValueTuple, Elems: sub}, nil
	}
	return Value{}, decodeErrorf(ErrTagPayloadTruncated, "tail decode of static type %s", t)
}

// decodeElems decodes n array elements laid out as a head/tail frame of
// their own (static elements contiguous, dynamic elements behind offsets).
func (d *Decoder) decodeElems(elem abi.Type, frame []byte, n int) (Value, error) {
	elems := make([]Value, n)
	cursor := 0
	for i := 0; i < n; i++ {
		v, consumed, err := d.decodeHead(elem, frame, cursor)
		if err != nil {
			return Value{}, err
		}
		elems[i] = v
		cursor += consumed
	}
	return Value{Kind: ValueArray, Elems: elems}, nil
}

func (d *Decoder) warnDirtyPadding(kind string, padding []byte) {
	for _, b := range padding {
		if b != 0 {
			d.logger.Sugar().Warnw("non-zero padding bytes in head slot", "type", kind)
			return
		}
	}
}

func word(frame []byte, pos int) ([]byte, error) {
	if pos < 0 || pos+wordSize > len(frame) {
		return nil, decodeErrorf(ErrTagPayloadTruncated,
			"word at byte %d exceeds payload end (%d bytes)", pos, len(frame))
	}
	return frame[pos : pos+wordSize], nil
}

// lengthAt reads the 32-byte length word at offset. The value is only
// checked for 64-bit overflow here; callers bound it against the bytes that
// remain for the payload in question.
func lengthAt(frame []byte, offset int) (int, error) {
	w, err := word(frame, offset)
	if err != nil {
		return 0, &DecodeError{Tag: ErrTagOffsetOutOfRange, Detail: err.(*DecodeError).Detail}
	}
	for _, b := range w[:wordSize-8] {
		if b != 0 {
			return 0, decodeErrorf(ErrTagLengthOutOfRange, "length word exceeds 64 bits")
		}
	}
	v := binary.BigEndian.Uint64(w[wordSize-8:])
	if v > 1<<40 {
		return 0, decodeErrorf(ErrTagLengthOutOfRange, "length %d is implausibly large", v)
	}
	return int(v), nil
}

// wordToOffset interprets a 32-byte head word as a tail offset bounded by
// the frame size. Offsets past end-of-frame are row errors.
func wordToOffset(w []byte, frameLen int) (int, error) {
	for _, b := range w[:wordSize-8] {
		if b != 0 {
			return 0, decodeErrorf(ErrTagOffsetOutOfRange, "offset word exceeds 64 bits")
		}
	}
	v := binary.BigEndian.Uint64(w[wordSize-8:])
	if v > uint64(frameLen) {
		return 0, decodeErrorf(ErrTagOffsetOutOfRange, "offset %d exceeds payload end (%d bytes)", v, frameLen)
	}
	return int(v), nil
}

// readSigned interprets the low bits of a 32-byte word as a two's
// complement signed integer of the given width.
func readSigned(w []byte, bits int) *big.Int {
	nb := bits / 8
	v := new(big.Int).SetBytes(w[wordSize-nb:])
	if v.Bit(bits-1) == 1 {
		bound := new(big.Int).Lsh(big.NewInt(1), uint(bits))
		v.Sub(v, bound)
	}
	return v
}
