package frame

import (
	"github.com/pkg/errors"
)

// Kind is the physical type of a column.
type Kind uint8

const (
	Binary Kind = iota
	String
	Bool
	Uint64
	Int64
)

// Column is a single named column. Exactly one of the value slices is
// populated, selected by Kind. Binary columns use a nil element as null;
// the other kinds carry an optional validity mask (nil mask = all valid).
type Column struct {
	Name string
	Kind Kind

	Bytes   [][]byte
	Strings []string
	Bools   []bool
	Uints   []uint64
	Ints    []int64
	Valid   []bool
}

func NewBinaryColumn(name string, values [][]byte) *Column {
	return &Column{Name: name, Kind: Binary, Bytes: values}
}

func NewStringColumn(name string, values []string, valid []bool) *Column {
	return &Column{Name: name, Kind: String, Strings: values, Valid: valid}
}

func NewBoolColumn(name string, values []bool, valid []bool) *Column {
	return &Column{Name: name, Kind: Bool, Bools: values, Valid: valid}
}

func NewUint64Column(name string, values []uint64, valid []bool) *Column {
	return &Column{Name: name, Kind: Uint64, Uints: values, Valid: valid}
}

func NewInt64Column(name string, values []int64, valid []bool) *Column {
	return &Column{Name: name, Kind: Int64, Ints: values, Valid: valid}
}

// Len returns the row count of the column.
func (c *Column) Len() int {
	switch c.Kind {
	case Binary:
		return len(c.Bytes)
	case String:
		return len(c.Strings)
	case Bool:
		return len(c.Bools)
	case Uint64:
		return len(c.Uints)
	case Int64:
		return len(c.Ints)
	}
	return 0
}

// IsNull reports whether row i holds a null.
func (c *Column) IsNull(i int) bool {
	if c.Kind == Binary {
		return c.Bytes[i] == nil
	}
	return c.Valid != nil && !c.Valid[i]
}

// take returns a new column holding the given rows in the given order.
func (c *Column) take(indices []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Valid != nil {
		out.Valid = make([]bool, len(indices))
		for j, i := range indices {
			out.Valid[j] = c.Valid[i]
		}
	}
	switch c.Kind {
	case Binary:
		out.Bytes = make([][]byte, len(indices))
		for j, i := range indices {
			out.Bytes[j] = c.Bytes[i]
		}
	case String:
		out.Strings = make([]string, len(indices))
		for j, i := range indices {
			out.Strings[j] = c.Strings[i]
		}
	case Bool:
		out.Bools = make([]bool, len(indices))
		for j, i := range indices {
			out.Bools[j] = c.Bools[i]
		}
	case Uint64:
		out.Uints = make([]uint64, len(indices))
		for j, i := range indices {
			out.Uints[j] = c.Uints[i]
		}
	case Int64:
		out.Ints = make([]int64, len(indices))
		for j, i := range indices {
			out.Ints[j] = c.Ints[i]
		}
	}
	return out
}

func (c *Column) slice(lo, hi int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Valid != nil {
		out.Valid = c.Valid[lo:hi]
	}
	switch c.Kind {
	case Binary:
		out.Bytes = c.Bytes[lo:hi]
	case String:
		out.Strings = c.Strings[lo:hi]
	case Bool:
		out.Bools = c.Bools[lo:hi]
	case Uint64:
		out.Uints = c.Uints[lo:hi]
	case Int64:
		out.Ints = c.Ints[lo:hi]
	}
	return out
}

// Frame is a columnar table: equal-length named columns. It is the unit of
// work passed between the reader, matcher and executor. A frame is never
// mutated in place once published to workers; transformations return new
// frames sharing column backing where safe.
type Frame struct {
	columns []*Column
	byName  map[string]*Column
}

// New builds a frame from columns, which must be unique by name and of
// equal length.
func New(columns ...*Column) (*Frame, error) {
	f := &Frame{byName: make(map[string]*Column, len(columns))}
	for _, c := range columns {
		if err := f.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return f.columns[0].Len()
}

// NumColumns returns the column count.
func (f *Frame) NumColumns() int {
	return len(f.columns)
}

// Columns returns the columns in insertion order.
func (f *Frame) Columns() []*Column {
	return f.columns
}

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) *Column {
	return f.byName[name]
}

// AddColumn appends a column to the frame.
func (f *Frame) AddColumn(c *Column) error {
	if _, exists := f.byName[c.Name]; exists {
		return errors.Errorf("duplicate column %q", c.Name)
	}
	if len(f.columns) > 0 && c.Len() != f.NumRows() {
		return errors.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.NumRows())
	}
	if f.byName == nil {
		f.byName = make(map[string]*Column)
	}
	f.columns = append(f.columns, c)
	f.byName[c.Name] = c
	return nil
}

// Take returns a new frame holding the given rows in the given order.
func (f *Frame) Take(indices []int) *Frame {
	out := &Frame{byName: make(map[string]*Column, len(f.columns))}
	for _, c := range f.columns {
		taken := c.take(indices)
		out.columns = append(out.columns, taken)
		out.byName[c.Name] = taken
	}
	return out
}

// Slice returns a zero-copy view of rows [lo, hi).
func (f *Frame) Slice(lo, hi int) *Frame {
	out := &Frame{byName: make(map[string]*Column, len(f.columns))}
	for _, c := range f.columns {
		s := c.slice(lo, hi)
		out.columns = append(out.columns, s)
		out.byName[c.Name] = s
	}
	return out
}

// Append stacks other below f. Schemas must match by name, order and kind.
func (f *Frame) Append(other *Frame) error {
	if len(f.columns) != len(other.columns) {
		return errors.Errorf("schema mismatch: %d vs %d columns", len(f.columns), len(other.columns))
	}
	for i, c := range f.columns {
		oc := other.columns[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return errors.Errorf("schema mismatch at column %d: %q vs %q", i, c.Name, oc.Name)
		}
	}
	for i, c := range f.columns {
		oc := other.columns[i]
		if c.Valid != nil || oc.Valid != nil {
			c.Valid = appendMask(c.Valid, c.Len(), oc.Valid, oc.Len())
		}
		switch c.Kind {
		case Binary:
			c.Bytes = append(c.Bytes, oc.Bytes...)
		case String:
			c.Strings = append(c.Strings, oc.Strings...)
		case Bool:
			c.Bools = append(c.Bools, oc.Bools...)
		case Uint64:
			c.Uints = append(c.Uints, oc.Uints...)
		case Int64:
			c.Ints = append(c.Ints, oc.Ints...)
		}
	}
	return nil
}

func appendMask(a []bool, alen int, b []bool, blen int) []bool {
	out := make([]bool, 0, alen+blen)
	out = extendMask(out, a, alen)
	return extendMask(out, b, blen)
}

func extendMask(dst, mask []bool, n int) []bool {
	if mask == nil {
		for i := 0; i < n; i++ {
			dst = append(dst, true)
		}
		return dst
	}
	return append(dst, mask...)
}
