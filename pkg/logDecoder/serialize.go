package logDecoder

import (
	"encoding/json"
	"strings"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/codec"
)

// eventParam is one element of the event_json column: a self-describing
// record per parameter.
type eventParam struct {
	Name      string      `json:"name"`
	Index     int         `json:"index"`
	ValueType string      `json:"value_type"`
	Value     interface{} `json:"value"`
}

// serialize materializes decoded values into the three text columns.
func (d *LogDecoder) serialize(ev *abi.Event, values []codec.Value) (*Decoded, *codec.DecodeError) {
	upper := d.cfg.UpperHex()

	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.Format(upper))
	}
	b.WriteByte(']')

	keys := make([]string, len(ev.Inputs))
	params := make([]eventParam, len(ev.Inputs))
	for i, in := range ev.Inputs {
		keys[i] = in.Name
		params[i] = eventParam{
			Name:      in.Name,
			Index:     i,
			ValueType: in.Type.String(),
			Value:     values[i].Plain(upper),
		}
	}

	keysJSON, err := json.Marshal(keys)
	if err != nil {
		return nil, &codec.DecodeError{Tag: codec.ErrTagSignatureParse, Detail: err.Error()}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, &codec.DecodeError{Tag: codec.ErrTagSignatureParse, Detail: err.Error()}
	}

	return &Decoded{
		EventValues: b.String(),
		EventKeys:   string(keysJSON),
		EventJSON:   string(paramsJSON),
	}, nil
}
