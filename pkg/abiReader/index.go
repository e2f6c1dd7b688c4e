package abiReader

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/frame"
)

// Entry is one row of the signature index. Hash is the 32-byte topic0 for
// events and the 4-byte selector for functions.
type Entry struct {
	Hash            []byte
	FullSignature   string
	Name            string
	Anonymous       bool
	NumIndexedArgs  int
	StateMutability string
	ID              string
	Address         common.Address
	SourceFile      string
	Kind            abi.EntryKind
	Event           *abi.Event
}

// Index is the deduplicated signature table. It is built once, then shared
// read-only across matcher and executor workers; nothing mutates it after
// publication.
type Index struct {
	entries []*Entry
	seen    map[string]struct{}
	key     []string
}

// NewIndex creates an empty index deduplicating on the given key parts,
// a composition of "address", "hash" and "full_signature".
func NewIndex(uniqueKey []string) *Index {
	return &Index{
		seen: make(map[string]struct{}),
		key:  append([]string(nil), uniqueKey...),
	}
}

// Len returns the number of index rows.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns the rows in insertion order. Callers must not mutate.
func (x *Index) Entries() []*Entry {
	return x.entries
}

// Add inserts an entry unless its dedup key was already seen. The first
// occurrence wins. Reports whether the entry was inserted.
func (x *Index) Add(e *Entry) bool {
	k := x.dedupKey(e)
	if _, dup := x.seen[k]; dup {
		return false
	}
	x.seen[k] = struct{}{}
	x.entries = append(x.entries, e)
	return true
}

// Merge unions other into x with the same first-occurrence-wins policy, so
// merging a fresh read into a persisted table keeps the persisted rows.
func (x *Index) Merge(other *Index) int {
	added := 0
	for _, e := range other.entries {
		if x.Add(e) {
			added++
		}
	}
	return added
}

func (x *Index) dedupKey(e *Entry) string {
	var b strings.Builder
	for _, part := range x.key {
		switch part {
		case "address":
			b.WriteString(strings.ToLower(e.Address.Hex()))
		case "hash":
			b.Write(e.Hash)
		case "full_signature":
			b.WriteString(e.FullSignature)
		}
		b.WriteByte('\x00')
	}
	return b.String()
}

// Index table column names, matching the persisted layout.
const (
	ColHash            = "hash"
	ColFullSignature   = "full_signature"
	ColName            = "name"
	ColAnonymous       = "anonymous"
	ColNumIndexedArgs  = "num_indexed_args"
	ColStateMutability = "state_mutability"
	ColID              = "id"
	ColAddress         = "address"
)

// ToFrame materializes the index into its persisted columnar layout. Hash
// and address are hex strings in the configured case.
func (x *Index) ToFrame(upperHex bool) (*frame.Frame, error) {
	n := len(x.entries)
	hashes := make([]string, n)
	sigs := make([]string, n)
	names := make([]string, n)
	anons := make([]bool, n)
	numIndexed := make([]uint64, n)
	mutability := make([]string, n)
	ids := make([]string, n)
	addrs := make([]string, n)
	for i, e := range x.entries {
		hashes[i] = hexCase(hexutil.Encode(e.Hash), upperHex)
		sigs[i] = e.FullSignature
		names[i] = e.Name
		anons[i] = e.Anonymous
		numIndexed[i] = uint64(e.NumIndexedArgs)
		mutability[i] = e.StateMutability
		ids[i] = e.ID
		addrs[i] = hexCase(hexutil.Encode(e.Address.Bytes()), upperHex)
	}
	return frame.New(
		frame.NewStringColumn(ColHash, hashes, nil),
		frame.NewStringColumn(ColFullSignature, sigs, nil),
		frame.NewStringColumn(ColName, names, nil),
		frame.NewBoolColumn(ColAnonymous, anons, nil),
		frame.NewUint64Column(ColNumIndexedArgs, numIndexed, nil),
		frame.NewStringColumn(ColStateMutability, mutability, nil),
		frame.NewStringColumn(ColID, ids, nil),
		frame.NewStringColumn(ColAddress, addrs, nil),
	)
}

// IndexFromFrame rebuilds an index from its persisted layout. Full
// signatures are re-parsed so the loaded entries can drive decoding.
func IndexFromFrame(f *frame.Frame, uniqueKey []string) (*Index, error) {
	required := map[string]frame.Kind{
		ColHash:           frame.String,
		ColFullSignature:  frame.String,
		ColName:           frame.String,
		ColAnonymous:      frame.Bool,
		ColNumIndexedArgs: frame.Uint64,
		ColAddress:        frame.String,
	}
	for name, kind := range required {
		c := f.Column(name)
		if c == nil {
			return nil, errors.Errorf("abi index table is missing column %q", name)
		}
		if c.Kind != kind {
			return nil, errors.Errorf("abi index column %q has the wrong type", name)
		}
	}
	hashes := f.Column(ColHash)
	sigs := f.Column(ColFullSignature)
	names := f.Column(ColName)
	anons := f.Column(ColAnonymous)
	numIndexed := f.Column(ColNumIndexedArgs)
	addrs := f.Column(ColAddress)
	mutability := f.Column(ColStateMutability)
	ids := f.Column(ColID)

	x := NewIndex(uniqueKey)
	for i := 0; i < f.NumRows(); i++ {
		hash, err := hexutil.Decode(strings.ToLower(hashes.Strings[i]))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: malformed hash", i)
		}
		ev, err := abi.ParseFullSignature(sigs.Strings[i])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: malformed full_signature", i)
		}
		ev.Anonymous = anons.Bools[i]
		addrBytes, err := hexutil.Decode(strings.ToLower(addrs.Strings[i]))
		if err != nil || len(addrBytes) != common.AddressLength {
			return nil, errors.Errorf("row %d: malformed address %q", i, addrs.Strings[i])
		}
		ev.Address = common.BytesToAddress(addrBytes)

		e := &Entry{
			Hash:           hash,
			FullSignature:  sigs.Strings[i],
			Name:           names.Strings[i],
			Anonymous:      anons.Bools[i],
			NumIndexedArgs: int(numIndexed.Uints[i]),
			Address:        ev.Address,
			Kind:           abi.EntryEvent,
			Event:          ev,
		}
		if len(hash) == 4 {
			e.Kind = abi.EntryFunction
		}
		if mutability != nil {
			e.StateMutability = mutability.Strings[i]
			ev.StateMutability = e.StateMutability
		}
		if ids != nil {
			e.ID = ids.Strings[i]
		}
		x.Add(e)
	}
	return x, nil
}

func hexCase(s string, upper bool) string {
	if !upper {
		return s
	}
	return "0x" + strings.ToUpper(strings.TrimPrefix(s, "0x"))
}
