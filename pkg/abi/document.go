package abi

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// EntryKind distinguishes the ABI entry types the indexer consumes.
type EntryKind string

const (
	EntryEvent    EntryKind = "event"
	EntryFunction EntryKind = "function"
)

// Entry is a single parsed ABI document entry.
type Entry struct {
	Kind  EntryKind
	Event *Event
}

type jsonInput struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Indexed    bool        `json:"indexed"`
	Components []Component `json:"components,omitempty"`
}

type jsonEntry struct {
	Type            string      `json:"type"`
	Name            string      `json:"name"`
	Anonymous       bool        `json:"anonymous"`
	StateMutability string      `json:"stateMutability"`
	Inputs          []jsonInput `json:"inputs"`
}

// ParseDocument parses a Solidity ABI JSON document. Both shapes found in
// the wild are accepted: a bare JSON array of entries, and an object with an
// "abi" field holding the array (the shape emitted by several compilers and
// registries).
//
// Entries that are neither events nor functions are ignored. Entries that
// fail structural validation are skipped and reported in the returned skip
// list so the caller can warn without aborting the document.
func ParseDocument(data []byte) ([]Entry, []error, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapper struct {
			Abi []json.RawMessage `json:"abi"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil || wrapper.Abi == nil {
			return nil, nil, errors.Wrap(err, "document is neither an ABI array nor an object with an abi field")
		}
		raw = wrapper.Abi
	}

	var entries []Entry
	var skipped []error
	for i, msg := range raw {
		var je jsonEntry
		if err := json.Unmarshal(msg, &je); err != nil {
			skipped = append(skipped, errors.Wrapf(err, "entry %d", i))
			continue
		}
		kind := EntryKind(je.Type)
		if kind != EntryEvent && kind != EntryFunction {
			continue
		}
		ev, err := entryToEvent(je)
		if err != nil {
			skipped = append(skipped, errors.Wrapf(err, "entry %d (%s %q)", i, je.Type, je.Name))
			continue
		}
		if kind == EntryEvent {
			if err := ev.Validate(); err != nil {
				skipped = append(skipped, errors.Wrapf(err, "entry %d", i))
				continue
			}
		} else if ev.Name == "" {
			skipped = append(skipped, errors.Errorf("entry %d: function with no name", i))
			continue
		}
		entries = append(entries, Entry{Kind: kind, Event: ev})
	}
	return entries, skipped, nil
}

func entryToEvent(je jsonEntry) (*Event, error) {
	ev := &Event{
		Name:            je.Name,
		Anonymous:       je.Anonymous,
		StateMutability: je.StateMutability,
	}
	for _, in := range je.Inputs {
		t, err := ParseType(in.Type, in.Components)
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", in.Name)
		}
		ev.Inputs = append(ev.Inputs, Param{
			Name:    in.Name,
			Type:    t,
			Indexed: in.Indexed,
		})
	}
	return ev, nil
}
