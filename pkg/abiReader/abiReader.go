package abiReader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/config"
)

const readWorkers = 8

// ReadReport accumulates non-fatal problems from an index build. Files that
// fail to parse and entries that fail validation are skipped with a warning
// rather than aborting the run.
type ReadReport struct {
	mu             sync.Mutex
	FilesRead      int
	FilesSkipped   int
	EntriesSkipped int
	Warnings       []string
}

func (r *ReadReport) warnf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, errors.Errorf(format, args...).Error())
}

// AbiReader walks ABI JSON inputs and builds the signature index.
type AbiReader struct {
	cfg    config.AbiReaderConfig
	logger *zap.Logger
}

func NewAbiReader(cfg config.AbiReaderConfig, logger *zap.Logger) *AbiReader {
	return &AbiReader{cfg: cfg, logger: logger}
}

// ReadFolder parses every .json document under path into a deduplicated
// index. Files are parsed concurrently; dedup runs over the results in
// sorted file order so first-occurrence-wins stays deterministic.
func (r *AbiReader) ReadFolder(path string) (*Index, *ReadReport, error) {
	files, err := listAbiFiles(path)
	if err != nil {
		return nil, nil, err
	}

	report := &ReadReport{}
	perFile := make([][]*Entry, len(files))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < readWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				entries, ok := r.readOne(files[i], report)
				if ok {
					perFile[i] = entries
				}
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	index := NewIndex(r.cfg.UniqueKey)
	for _, entries := range perFile {
		for _, e := range entries {
			index.Add(e)
		}
	}

	r.logger.Sugar().Infow("Read ABI folder",
		"path", path,
		"files", report.FilesRead,
		"skippedFiles", report.FilesSkipped,
		"skippedEntries", report.EntriesSkipped,
		"signatures", index.Len(),
	)
	return index, report, nil
}

// ReadFile parses a single ABI document into index entries. The document's
// base name (minus extension) carries the contract address when it parses
// as 0x-prefixed 20-byte hex; otherwise entries get the zero address.
func (r *AbiReader) ReadFile(path string) ([]*Entry, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read %s", path)
	}
	parsed, skipped, err := abi.ParseDocument(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to parse %s", path)
	}

	address := addressFromFileName(path)
	entries := make([]*Entry, 0, len(parsed))
	for _, p := range parsed {
		entries = append(entries, newEntry(p, address, path))
	}
	return entries, skipped, nil
}

func (r *AbiReader) readOne(path string, report *ReadReport) ([]*Entry, bool) {
	entries, skipped, err := r.ReadFile(path)
	if err != nil {
		report.mu.Lock()
		report.FilesSkipped++
		report.mu.Unlock()
		report.warnf("skipping %s: %v", path, err)
		r.logger.Sugar().Warnw("Skipping unparseable ABI file", "path", path, "error", err)
		return nil, false
	}
	report.mu.Lock()
	report.FilesRead++
	report.EntriesSkipped += len(skipped)
	report.mu.Unlock()
	for _, s := range skipped {
		report.warnf("%s: %v", path, s)
	}
	return entries, true
}

func newEntry(p abi.Entry, address common.Address, sourceFile string) *Entry {
	ev := p.Event
	ev.Address = address
	ev.SourceFile = sourceFile

	var hash []byte
	numIndexed := 0
	if p.Kind == abi.EntryEvent {
		topic0 := ev.Topic0()
		hash = topic0.Bytes()
		numIndexed = ev.NumIndexedArgs()
	} else {
		sel := ev.Selector()
		hash = sel[:]
	}
	return &Entry{
		Hash:            hash,
		FullSignature:   ev.FullSignature(),
		Name:            ev.Name,
		Anonymous:       ev.Anonymous,
		NumIndexedArgs:  numIndexed,
		StateMutability: ev.StateMutability,
		ID:              ev.Signature(),
		Address:         address,
		SourceFile:      sourceFile,
		Kind:            p.Kind,
		Event:           ev,
	}
}

func listAbiFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot stat %s", path)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", path)
	}
	sort.Strings(files)
	return files, nil
}

// addressFromFileName extracts the contract address from a file name like
// "0xdac17f958d2ee523a2206206994597c13d831ec7.json". Anything that is not a
// 20-byte 0x-prefixed hex string yields the zero sentinel address.
func addressFromFileName(path string) common.Address {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if !common.IsHexAddress(base) {
		return common.Address{}
	}
	return common.HexToAddress(base)
}
