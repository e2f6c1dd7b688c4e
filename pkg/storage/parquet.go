package storage

import (
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/frame"
)

// ParquetStore reads and writes frames as Parquet files. It is the table
// I/O facility the engine assumes; the decoding core never touches files.
type ParquetStore struct {
	logger *zap.Logger
}

func NewParquetStore(logger *zap.Logger) *ParquetStore {
	return &ParquetStore{logger: logger}
}

const readBatchSize = 1024

// ReadFrame loads a whole Parquet file into a frame. Physical types map to
// frame kinds: BYTE_ARRAY to binary (string when annotated UTF-8), BOOLEAN
// to bool, INT32/INT64 to signed or unsigned 64-bit per the logical type.
func (s *ParquetStore) ReadFrame(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open parquet file %s", path)
	}

	builders, err := buildersForSchema(pf.Schema())
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported schema in %s", path)
	}

	buf := make([]parquet.Row, readBatchSize)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, v := range row {
					builders[v.Column()].append(v)
				}
			}
			if err != nil {
				break
			}
			if n == 0 {
				break
			}
		}
		if cerr := rows.Close(); cerr != nil {
			return nil, errors.Wrapf(cerr, "failed to close row reader for %s", path)
		}
	}

	columns := make([]*frame.Column, len(builders))
	for i, b := range builders {
		columns[i] = b.column()
	}
	f, err := frame.New(columns...)
	if err != nil {
		return nil, err
	}
	s.logger.Sugar().Debugw("Read parquet file", "path", path, "rows", f.NumRows(), "columns", f.NumColumns())
	return f, nil
}

// WriteFrame writes a frame to a Parquet file. All columns are written as
// optional leaves so null masks survive the round trip.
func (s *ParquetStore) WriteFrame(f *frame.Frame, path string) error {
	schema, order, err := schemaForFrame(f)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[any](file, schema)
	rb := parquet.NewRowBuilder(schema)
	batch := make([]parquet.Row, 0, readBatchSize)

	n := f.NumRows()
	for i := 0; i < n; i++ {
		rb.Reset()
		for leaf, col := range order {
			if col.IsNull(i) {
				continue
			}
			rb.Add(leaf, leafValue(col, i))
		}
		// The builder's row shares its memory until Reset, so batching
		// needs a copy.
		batch = append(batch, rb.Row().Clone())
		if len(batch) == readBatchSize {
			if _, err := writer.WriteRows(batch); err != nil {
				return errors.Wrapf(err, "failed to write rows to %s", path)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := writer.WriteRows(batch); err != nil {
			return errors.Wrapf(err, "failed to write rows to %s", path)
		}
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "failed to finalize %s", path)
	}
	s.logger.Sugar().Debugw("Wrote parquet file", "path", path, "rows", n, "columns", f.NumColumns())
	return nil
}

func leafValue(col *frame.Column, i int) parquet.Value {
	switch col.Kind {
	case frame.Binary:
		return parquet.ByteArrayValue(col.Bytes[i])
	case frame.String:
		return parquet.ByteArrayValue([]byte(col.Strings[i]))
	case frame.Bool:
		return parquet.BooleanValue(col.Bools[i])
	case frame.Uint64:
		return parquet.Int64Value(int64(col.Uints[i]))
	case frame.Int64:
		return parquet.Int64Value(col.Ints[i])
	}
	return parquet.NullValue()
}

// schemaForFrame builds the parquet schema and returns the columns in leaf
// order. Parquet groups sort fields by name, so leaf order differs from
// frame insertion order.
func schemaForFrame(f *frame.Frame) (*parquet.Schema, []*frame.Column, error) {
	group := parquet.Group{}
	for _, col := range f.Columns() {
		var node parquet.Node
		switch col.Kind {
		case frame.Binary:
			node = parquet.Leaf(parquet.ByteArrayType)
		case frame.String:
			node = parquet.String()
		case frame.Bool:
			node = parquet.Leaf(parquet.BooleanType)
		case frame.Uint64:
			node = parquet.Uint(64)
		case frame.Int64:
			node = parquet.Int(64)
		default:
			return nil, nil, errors.Errorf("column %q has unsupported kind", col.Name)
		}
		group[col.Name] = parquet.Optional(node)
	}
	schema := parquet.NewSchema("frame", group)

	order := make([]*frame.Column, 0, f.NumColumns())
	for _, field := range schema.Fields() {
		col := f.Column(field.Name())
		if col == nil {
			return nil, nil, errors.Errorf("schema field %q has no frame column", field.Name())
		}
		order = append(order, col)
	}
	return schema, order, nil
}

// columnBuilder accumulates one leaf column while scanning rows.
type columnBuilder struct {
	name   string
	kind   frame.Kind
	bytes  [][]byte
	strs   []string
	bools  []bool
	uints  []uint64
	ints   []int64
	valid  []bool
	isUTF8 bool
}

func buildersForSchema(schema *parquet.Schema) ([]*columnBuilder, error) {
	fields := schema.Fields()
	builders := make([]*columnBuilder, 0, len(fields))
	for _, field := range fields {
		if !field.Leaf() {
			return nil, errors.Errorf("nested column %q is not supported", field.Name())
		}
		b := &columnBuilder{name: field.Name()}
		lt := field.Type().LogicalType()
		switch field.Type().Kind() {
		case parquet.Boolean:
			b.kind = frame.Bool
		case parquet.Int32, parquet.Int64:
			b.kind = frame.Int64
			if lt != nil && lt.Integer != nil && !lt.Integer.IsSigned {
				b.kind = frame.Uint64
			}
		case parquet.ByteArray, parquet.FixedLenByteArray:
			b.kind = frame.Binary
			if lt != nil && lt.UTF8 != nil {
				b.kind = frame.String
				b.isUTF8 = true
			}
		default:
			return nil, errors.Errorf("column %q has unsupported physical type", field.Name())
		}
		builders = append(builders, b)
	}
	return builders, nil
}

func (b *columnBuilder) append(v parquet.Value) {
	null := v.IsNull()
	b.valid = append(b.valid, !null)
	switch b.kind {
	case frame.Binary:
		if null {
			b.bytes = append(b.bytes, nil)
		} else {
			b.bytes = append(b.bytes, append([]byte(nil), v.ByteArray()...))
		}
	case frame.String:
		if null {
			b.strs = append(b.strs, "")
		} else {
			b.strs = append(b.strs, string(v.ByteArray()))
		}
	case frame.Bool:
		var val bool
		if !null {
			val = v.Boolean()
		}
		b.bools = append(b.bools, val)
	case frame.Uint64:
		var val uint64
		if !null {
			val = uint64(v.Int64())
		}
		b.uints = append(b.uints, val)
	case frame.Int64:
		var val int64
		if !null {
			val = v.Int64()
		}
		b.ints = append(b.ints, val)
	}
}

func (b *columnBuilder) column() *frame.Column {
	switch b.kind {
	case frame.Binary:
		return frame.NewBinaryColumn(b.name, b.bytes)
	case frame.String:
		return frame.NewStringColumn(b.name, b.strs, b.valid)
	case frame.Bool:
		return frame.NewBoolColumn(b.name, b.bools, b.valid)
	case frame.Uint64:
		return frame.NewUint64Column(b.name, b.uints, b.valid)
	default:
		return frame.NewInt64Column(b.name, b.ints, b.valid)
	}
}
