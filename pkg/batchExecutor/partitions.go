package batchExecutor

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/ozgrakkurt/glaciers/pkg/frame"
	"github.com/ozgrakkurt/glaciers/pkg/matcher"
)

// Partition is one input unit, typically a single Parquet file. Output
// partitions map one-for-one onto input partitions and preserve row order
// within each; no order is guaranteed across partitions.
type Partition struct {
	Name  string
	Frame *frame.Frame
}

// PartitionSource streams input partitions. Next returns io.EOF after the
// last partition.
type PartitionSource interface {
	Next(ctx context.Context) (*Partition, error)
}

// PartitionSink receives decoded partitions.
type PartitionSink interface {
	Write(ctx context.Context, p *Partition) error
}

// Stats summarizes a partition run.
type Stats struct {
	Partitions int
	RowsIn     int
	RowsOut    int
	Dropped    int
}

// partitionQueueDepth bounds the partitions read ahead of decoding. A full
// queue blocks the reader, so memory stays bounded by queue depth times
// partition size.
const partitionQueueDepth = 2

// ExecutePartitions pipelines partition reads with decoding: a reader
// goroutine fills a bounded queue while the current partition is matched,
// decoded and written. Cancellation finishes the in-flight chunk, flushes
// what was decoded, and returns the cancellation error.
func (e *Executor) ExecutePartitions(
	ctx context.Context,
	src PartitionSource,
	m *matcher.Matcher,
	sink PartitionSink,
) (Stats, error) {
	var stats Stats

	type readResult struct {
		p   *Partition
		err error
	}
	queue := make(chan readResult, partitionQueueDepth)

	readCtx, stopReader := context.WithCancel(ctx)
	defer stopReader()
	go func() {
		defer close(queue)
		for {
			p, err := src.Next(readCtx)
			select {
			case queue <- readResult{p: p, err: err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for r := range queue {
		if r.err == io.EOF {
			break
		}
		if r.err != nil {
			return stats, errors.Wrap(r.err, "failed to read partition")
		}

		match, err := m.Match(r.p.Frame)
		if err != nil {
			return stats, errors.Wrapf(err, "partition %s", r.p.Name)
		}
		decoded, execErr := e.Execute(ctx, match)
		if decoded != nil && decoded.NumRows() > 0 || execErr == nil {
			if err := sink.Write(ctx, &Partition{Name: r.p.Name, Frame: decoded}); err != nil {
				return stats, errors.Wrapf(err, "failed to write partition %s", r.p.Name)
			}
		}

		stats.Partitions++
		stats.RowsIn += r.p.Frame.NumRows()
		stats.Dropped += match.Dropped
		if decoded != nil {
			stats.RowsOut += decoded.NumRows()
		}
		if execErr != nil {
			return stats, execErr
		}
	}
	return stats, ctx.Err()
}
