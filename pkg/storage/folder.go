package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/ozgrakkurt/glaciers/pkg/batchExecutor"
)

// FolderSource streams the .parquet files of a folder as partitions, in
// sorted name order.
type FolderSource struct {
	store *ParquetStore
	files []string
	next  int
}

// NewFolderSource lists the partitions under folder. A path pointing at a
// single file yields a one-partition source.
func (s *ParquetStore) NewFolderSource(folder string) (*FolderSource, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat %s", folder)
	}
	if !info.IsDir() {
		return &FolderSource{store: s, files: []string{folder}}, nil
	}
	dirents, err := os.ReadDir(folder)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %s", folder)
	}
	var files []string
	for _, d := range dirents {
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".parquet") {
			continue
		}
		files = append(files, filepath.Join(folder, d.Name()))
	}
	sort.Strings(files)
	return &FolderSource{store: s, files: files}, nil
}

// Next implements batchExecutor.PartitionSource.
func (fs *FolderSource) Next(ctx context.Context) (*batchExecutor.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fs.next >= len(fs.files) {
		return nil, io.EOF
	}
	path := fs.files[fs.next]
	fs.next++
	f, err := fs.store.ReadFrame(path)
	if err != nil {
		return nil, err
	}
	return &batchExecutor.Partition{Name: filepath.Base(path), Frame: f}, nil
}

// FolderSink writes decoded partitions into a folder, one output file per
// input partition, keeping the partition name.
type FolderSink struct {
	store  *ParquetStore
	folder string
}

func (s *ParquetStore) NewFolderSink(folder string) (*FolderSink, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create output folder %s", folder)
	}
	return &FolderSink{store: s, folder: folder}, nil
}

// Write implements batchExecutor.PartitionSink.
func (fk *FolderSink) Write(ctx context.Context, p *batchExecutor.Partition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fk.store.WriteFrame(p.Frame, filepath.Join(fk.folder, p.Name))
}
