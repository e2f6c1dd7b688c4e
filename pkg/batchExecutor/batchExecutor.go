package batchExecutor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/codec"
	"github.com/ozgrakkurt/glaciers/pkg/config"
	"github.com/ozgrakkurt/glaciers/pkg/frame"
	"github.com/ozgrakkurt/glaciers/pkg/logDecoder"
	"github.com/ozgrakkurt/glaciers/pkg/matcher"
)

// Column names added to the decoded output.
const (
	ColFullSignature  = "full_signature"
	ColName           = "name"
	ColAnonymous      = "anonymous"
	ColNumIndexedArgs = "num_indexed_args"
	ColEventValues    = "event_values"
	ColEventKeys      = "event_keys"
	ColEventJSON      = "event_json"
	ColError          = "error"
)

// Executor applies the row decoder across a columnar frame in chunks. Rows
// within a chunk decode in parallel; chunks are the unit of cancellation
// and of memory bounding. Output row i corresponds to input row i.
type Executor struct {
	decoder *logDecoder.LogDecoder
	cfg     config.DecoderConfig
	workers int
	logger  *zap.Logger
}

func NewExecutor(cfg config.DecoderConfig, logger *zap.Logger) *Executor {
	return &Executor{
		decoder: logDecoder.NewLogDecoder(cfg, logger),
		cfg:     cfg,
		workers: runtime.NumCPU(),
		logger:  logger,
	}
}

// rowOutput collects the decoded columns for one chunk. Slices are indexed
// by row so workers write without coordination and order is preserved.
type rowOutput struct {
	sig        []string
	name       []string
	anonymous  []bool
	numIndexed []uint64
	values     []string
	keys       []string
	json       []string
	errs       []string
	ok         []bool
	hasErr     []bool
}

func newRowOutput(n int) *rowOutput {
	return &rowOutput{
		sig:        make([]string, n),
		name:       make([]string, n),
		anonymous:  make([]bool, n),
		numIndexed: make([]uint64, n),
		values:     make([]string, n),
		keys:       make([]string, n),
		json:       make([]string, n),
		errs:       make([]string, n),
		ok:         make([]bool, n),
		hasErr:     make([]bool, n),
	}
}

// Execute decodes every matched row. On cancellation the in-flight chunk is
// finished, the rows decoded so far are returned, and the error reports the
// cancellation; callers may keep the partial frame.
func (e *Executor) Execute(ctx context.Context, match *matcher.MatchResult) (*frame.Frame, error) {
	return e.run(ctx, match.Logs, func(i int, log logDecoder.RawLog) (*logDecoder.Decoded, *codec.DecodeError) {
		return e.decoder.DecodeLog(log, match.Entries[i])
	})
}

// ExecuteAnonymous decodes every row of logs as the given anonymous event.
// There is no topic0 join; the caller vouches for the signature.
func (e *Executor) ExecuteAnonymous(ctx context.Context, logs *frame.Frame, fullSignature string) (*frame.Frame, error) {
	return e.run(ctx, logs, func(i int, log logDecoder.RawLog) (*logDecoder.Decoded, *codec.DecodeError) {
		return e.decoder.DecodeAnonymous(log, fullSignature)
	})
}

type rowFunc func(i int, log logDecoder.RawLog) (*logDecoder.Decoded, *codec.DecodeError)

func (e *Executor) run(ctx context.Context, logs *frame.Frame, decodeRow rowFunc) (*frame.Frame, error) {
	schema := e.cfg.Schema
	addrCol := logs.Column(schema.AliasAddress)
	dataCol := logs.Column(schema.AliasData)
	topicCols := [4]*frame.Column{
		logs.Column(schema.AliasTopic0),
		logs.Column(schema.AliasTopic1),
		logs.Column(schema.AliasTopic2),
		logs.Column(schema.AliasTopic3),
	}
	if addrCol == nil || addrCol.Kind != frame.Binary {
		return nil, errors.Errorf("raw logs are missing binary column %q", schema.AliasAddress)
	}
	if dataCol == nil || dataCol.Kind != frame.Binary {
		return nil, errors.Errorf("raw logs are missing binary column %q", schema.AliasData)
	}
	for i, c := range topicCols {
		if c == nil || c.Kind != frame.Binary {
			return nil, errors.Errorf("raw logs are missing binary topic column %d", i)
		}
	}

	runID := uuid.New().String()
	n := logs.NumRows()
	out := newRowOutput(n)
	chunkSize := e.cfg.MaxChunkSize

	decoded := 0
	failed := int64(0)
	var cancelErr error

	for lo := 0; lo < n; lo += chunkSize {
		if err := ctx.Err(); err != nil {
			cancelErr = errors.Wrap(err, "batch cancelled at chunk boundary")
			break
		}
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		failed += e.runChunk(lo, hi, addrCol, dataCol, topicCols, out, decodeRow)
		decoded = hi
	}

	e.logger.Sugar().Infow("Batch decode finished",
		"runId", runID,
		"rows", n,
		"decoded", decoded,
		"failedRows", failed,
		"cancelled", cancelErr != nil,
	)

	result, err := e.buildOutput(logs.Slice(0, decoded), out, decoded)
	if err != nil {
		return nil, err
	}
	return result, cancelErr
}

// runChunk decodes rows [lo, hi) with a shared atomic cursor feeding the
// worker pool. Workers write to disjoint row slots, so no locking.
func (e *Executor) runChunk(
	lo, hi int,
	addrCol, dataCol *frame.Column,
	topicCols [4]*frame.Column,
	out *rowOutput,
	decodeRow rowFunc,
) int64 {
	var cursor = int64(lo)
	var failed int64
	var wg sync.WaitGroup

	workers := e.workers
	if rows := hi - lo; rows < workers {
		workers = rows
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= hi {
					return
				}
				log := logDecoder.RawLog{
					Address: common.BytesToAddress(addrCol.Bytes[i]),
					Data:    dataCol.Bytes[i],
				}
				for t := 0; t < 4; t++ {
					log.Topics[t] = topicCols[t].Bytes[i]
				}

				dec, derr := decodeRow(i, log)
				if derr != nil {
					out.errs[i] = derr.Error()
					out.hasErr[i] = true
					atomic.AddInt64(&failed, 1)
					continue
				}
				out.sig[i] = dec.FullSignature
				out.name[i] = dec.Name
				out.anonymous[i] = dec.Anonymous
				out.numIndexed[i] = uint64(dec.NumIndexedArgs)
				out.values[i] = dec.EventValues
				out.keys[i] = dec.EventKeys
				out.json[i] = dec.EventJSON
				out.ok[i] = true
			}
		}()
	}
	wg.Wait()
	return failed
}

// buildOutput appends the decoded columns to the pass-through columns. A
// failed row has nulls in every decoded column and a non-null error tag.
func (e *Executor) buildOutput(passthrough *frame.Frame, out *rowOutput, n int) (*frame.Frame, error) {
	result, err := frame.New(passthrough.Columns()...)
	if err != nil {
		return nil, err
	}
	okMask := out.ok[:n]
	cols := []*frame.Column{
		frame.NewStringColumn(ColFullSignature, out.sig[:n], okMask),
		frame.NewStringColumn(ColName, out.name[:n], okMask),
		frame.NewBoolColumn(ColAnonymous, out.anonymous[:n], okMask),
		frame.NewUint64Column(ColNumIndexedArgs, out.numIndexed[:n], okMask),
		frame.NewStringColumn(ColEventValues, out.values[:n], okMask),
		frame.NewStringColumn(ColEventKeys, out.keys[:n], okMask),
		frame.NewStringColumn(ColEventJSON, out.json[:n], okMask),
		frame.NewStringColumn(ColError, out.errs[:n], out.hasErr[:n]),
	}
	for _, c := range cols {
		if err := result.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return result, nil
}
