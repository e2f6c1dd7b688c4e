package matcher

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/abiReader"
	"github.com/ozgrakkurt/glaciers/pkg/config"
	"github.com/ozgrakkurt/glaciers/pkg/frame"
)

// MatchResult pairs the surviving log rows with the signature chosen for
// each. Entries[i] belongs to row i of Logs.
type MatchResult struct {
	Logs    *frame.Frame
	Entries []*abiReader.Entry

	// Dropped counts input rows with no usable signature. Under
	// topic0_address that is every (topic0, address) miss; under topic0 it
	// is rows whose topic0 is absent from the index entirely.
	Dropped int
}

type exactKey struct {
	topic0     common.Hash
	address    common.Address
	numIndexed int
}

type hashKey struct {
	topic0     common.Hash
	numIndexed int
}

// Matcher joins raw-log rows against a published ABI index. Lookup tables
// are built once in NewMatcher; Match only reads them, so one matcher can
// serve concurrent batches.
type Matcher struct {
	cfg      config.DecoderConfig
	exact    map[exactKey]*abiReader.Entry
	fallback map[hashKey]*abiReader.Entry
	logger   *zap.Logger
}

// NewMatcher indexes the event entries of the signature table for lookup.
// Function entries (4-byte hashes) are ignored here; they exist for future
// trace matching.
func NewMatcher(index *abiReader.Index, cfg config.DecoderConfig, logger *zap.Logger) *Matcher {
	m := &Matcher{
		cfg:      cfg,
		exact:    make(map[exactKey]*abiReader.Entry),
		fallback: make(map[hashKey]*abiReader.Entry),
		logger:   logger,
	}

	type candidate struct {
		entry *abiReader.Entry
		count int
	}
	perSignature := make(map[hashKey]map[string]*candidate)

	for _, e := range index.Entries() {
		if e.Kind != abi.EntryEvent || e.Anonymous {
			continue
		}
		ek := exactKey{
			topic0:     common.BytesToHash(e.Hash),
			address:    e.Address,
			numIndexed: e.NumIndexedArgs,
		}
		if _, dup := m.exact[ek]; !dup {
			m.exact[ek] = e
		}

		hk := hashKey{topic0: ek.topic0, numIndexed: e.NumIndexedArgs}
		sigs := perSignature[hk]
		if sigs == nil {
			sigs = make(map[string]*candidate)
			perSignature[hk] = sigs
		}
		if c := sigs[e.FullSignature]; c != nil {
			c.count++
		} else {
			sigs[e.FullSignature] = &candidate{entry: e, count: 1}
		}
	}

	// For each topic0 the fallback representative is the signature that
	// occurs most often across the index; ties break lexicographically so
	// the choice is stable across runs.
	for hk, sigs := range perSignature {
		names := make([]string, 0, len(sigs))
		for sig := range sigs {
			names = append(names, sig)
		}
		sort.Strings(names)
		best := names[0]
		for _, sig := range names[1:] {
			if sigs[sig].count > sigs[best].count {
				best = sig
			}
		}
		m.fallback[hk] = sigs[best].entry
	}
	return m
}

// Match joins logs to the index using the configured algorithm. Rows whose
// topic0 is null are dropped here; anonymous events go through the
// dedicated signature-hint path in the log decoder instead.
func (m *Matcher) Match(logs *frame.Frame) (*MatchResult, error) {
	schema := m.cfg.Schema
	addrCol := logs.Column(schema.AliasAddress)
	topicCols := [4]*frame.Column{
		logs.Column(schema.AliasTopic0),
		logs.Column(schema.AliasTopic1),
		logs.Column(schema.AliasTopic2),
		logs.Column(schema.AliasTopic3),
	}
	if addrCol == nil {
		return nil, errors.Errorf("raw logs are missing required column %q", schema.AliasAddress)
	}
	if addrCol.Kind != frame.Binary {
		return nil, errors.Errorf("column %q must be binary", schema.AliasAddress)
	}
	for i, c := range topicCols {
		if c == nil {
			return nil, errors.Errorf("raw logs are missing required topic column %d", i)
		}
		if c.Kind != frame.Binary {
			return nil, errors.Errorf("topic column %d must be binary", i)
		}
	}

	n := logs.NumRows()
	kept := make([]int, 0, n)
	entries := make([]*abiReader.Entry, 0, n)
	dropped := 0

	for i := 0; i < n; i++ {
		topic0 := topicCols[0].Bytes[i]
		if topic0 == nil {
			dropped++
			continue
		}
		numIndexed := 0
		for _, c := range topicCols[1:] {
			if c.Bytes[i] != nil {
				numIndexed++
			}
		}
		ek := exactKey{
			topic0:     common.BytesToHash(topic0),
			address:    common.BytesToAddress(addrCol.Bytes[i]),
			numIndexed: numIndexed,
		}
		entry := m.exact[ek]
		if entry == nil && m.cfg.Algorithm == config.AlgorithmTopic0 {
			entry = m.fallback[hashKey{topic0: ek.topic0, numIndexed: numIndexed}]
		}
		if entry == nil {
			dropped++
			continue
		}
		kept = append(kept, i)
		entries = append(entries, entry)
	}

	m.logger.Sugar().Infow("Matched raw logs against ABI index",
		"algorithm", m.cfg.Algorithm,
		"input", n,
		"matched", len(kept),
		"dropped", dropped,
	)
	return &MatchResult{
		Logs:    logs.Take(kept),
		Entries: entries,
		Dropped: dropped,
	}, nil
}
