package logDecoder

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/abiReader"
	"github.com/ozgrakkurt/glaciers/pkg/codec"
	"github.com/ozgrakkurt/glaciers/pkg/config"
)

// RawLog is one input row. A nil topic slot is a null.
type RawLog struct {
	Address common.Address
	Topics  [4][]byte
	Data    []byte
}

// Decoded is the set of columns a successful row decode adds.
type Decoded struct {
	FullSignature  string
	Name           string
	Anonymous      bool
	NumIndexedArgs int
	EventValues    string
	EventKeys      string
	EventJSON      string
}

// LogDecoder orchestrates one row's decoding: it splits the indexed
// parameters out of the topic slots, decodes the data payload as a virtual
// tuple of the non-indexed parameters, zips the values back into declared
// order and serializes the result columns. It holds no per-row state and is
// shared across executor workers.
type LogDecoder struct {
	codec  *codec.Decoder
	cfg    config.DecoderConfig
	logger *zap.Logger
}

func NewLogDecoder(cfg config.DecoderConfig, logger *zap.Logger) *LogDecoder {
	return &LogDecoder{
		codec:  codec.NewDecoder(logger),
		cfg:    cfg,
		logger: logger,
	}
}

// DecodeLog decodes a row against its matched signature. Row-level failures
// come back as a *codec.DecodeError carrying the error-column tag; the
// executor turns them into null decoded columns.
func (d *LogDecoder) DecodeLog(log RawLog, entry *abiReader.Entry) (*Decoded, *codec.DecodeError) {
	values, err := d.decodeValues(log, entry.Event)
	if err != nil {
		return nil, err
	}
	out, serr := d.serialize(entry.Event, values)
	if serr != nil {
		return nil, serr
	}
	out.FullSignature = entry.FullSignature
	out.Name = entry.Name
	out.Anonymous = entry.Anonymous
	out.NumIndexedArgs = entry.NumIndexedArgs
	return out, nil
}

// DecodeAnonymous decodes a row of an anonymous event. There is no topic0
// to match on, so the caller supplies the full signature; all four topic
// slots are available for indexed values.
func (d *LogDecoder) DecodeAnonymous(log RawLog, fullSignature string) (*Decoded, *codec.DecodeError) {
	ev, err := abi.ParseFullSignature(fullSignature)
	if err != nil {
		return nil, &codec.DecodeError{Tag: codec.ErrTagSignatureParse, Detail: err.Error()}
	}
	ev.Anonymous = true

	// A hint like "X(uint256,uint256)" with no indexed markers describes an
	// event whose values all sit in topic slots; promote every parameter.
	// Hints that mark any parameter keep their declared split.
	if ev.NumIndexedArgs() == 0 && len(ev.Inputs) > 0 && len(ev.Inputs) <= 4 {
		for i := range ev.Inputs {
			ev.Inputs[i].Indexed = true
		}
	}
	if verr := ev.Validate(); verr != nil {
		return nil, &codec.DecodeError{Tag: codec.ErrTagSignatureParse, Detail: verr.Error()}
	}

	values, derr := d.decodeValues(log, ev)
	if derr != nil {
		return nil, derr
	}
	out, serr := d.serialize(ev, values)
	if serr != nil {
		return nil, serr
	}
	out.FullSignature = ev.FullSignature()
	out.Name = ev.Name
	out.Anonymous = true
	out.NumIndexedArgs = ev.NumIndexedArgs()
	return out, nil
}

// decodeValues returns one Value per declared input, in declared order.
func (d *LogDecoder) decodeValues(log RawLog, ev *abi.Event) ([]codec.Value, *codec.DecodeError) {
	if len(log.Data) > d.cfg.MaxLogDataSize {
		return nil, &codec.DecodeError{
			Tag:    codec.ErrTagPayloadTooLarge,
			Detail: "data payload exceeds decoder.max_log_data_size",
		}
	}

	// Indexed values sit in topic slots in declaration order of the
	// indexed parameters. Non-anonymous events spend slot 0 on the
	// signature hash. Anonymous events may use all four slots; when the
	// input row carries no topic0 (the usual shape for anonymous logs in a
	// raw-log table), values start at topic1.
	topicBase := 1
	if ev.Anonymous && log.Topics[0] != nil {
		topicBase = 0
	}

	values := make([]codec.Value, len(ev.Inputs))
	bodyTypes := make([]abi.Type, 0, len(ev.Inputs))
	bodyPositions := make([]int, 0, len(ev.Inputs))

	topicSlot := topicBase
	for i, in := range ev.Inputs {
		if !in.Indexed {
			bodyTypes = append(bodyTypes, in.Type)
			bodyPositions = append(bodyPositions, i)
			continue
		}
		if topicSlot > 3 || log.Topics[topicSlot] == nil {
			return nil, &codec.DecodeError{
				Tag:    codec.ErrTagTopicMissing,
				Detail: "indexed parameter " + in.Name + " has no topic slot",
			}
		}
		v, err := d.codec.DecodeTopic(in.Type, log.Topics[topicSlot])
		if err != nil {
			return nil, codec.AsDecodeError(err, codec.ErrTagPayloadTruncated)
		}
		values[i] = v
		topicSlot++
	}

	if len(bodyTypes) > 0 {
		bodyValues, err := d.codec.DecodeParams(bodyTypes, log.Data)
		if err != nil {
			return nil, codec.AsDecodeError(err, codec.ErrTagPayloadTruncated)
		}
		for j, pos := range bodyPositions {
			values[pos] = bodyValues[j]
		}
	}
	return values, nil
}
