package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const erc20Abi = `[
	{
		"type": "event",
		"name": "Transfer",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "to", "type": "address", "indexed": true},
			{"name": "value", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "transfer",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		]
	},
	{
		"type": "constructor",
		"inputs": []
	}
]`

func TestParseDocument_Array(t *testing.T) {
	entries, skipped, err := ParseDocument([]byte(erc20Abi))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, entries, 2)

	assert.Equal(t, EntryEvent, entries[0].Kind)
	assert.Equal(t, "Transfer(address,address,uint256)", entries[0].Event.Signature())
	assert.Equal(t, EntryFunction, entries[1].Kind)
	assert.Equal(t, "transfer(address,uint256)", entries[1].Event.Signature())
	assert.Equal(t, "nonpayable", entries[1].Event.StateMutability)
}

func TestParseDocument_AbiObjectWrapper(t *testing.T) {
	doc := `{"contractName": "Token", "abi": ` + erc20Abi + `}`
	entries, skipped, err := ParseDocument([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Len(t, entries, 2)
}

func TestParseDocument_SkipsBadEntries(t *testing.T) {
	doc := `[
		{"type": "event", "inputs": []},
		{"type": "event", "name": "Bad", "inputs": [{"name": "x", "type": "uint999"}]},
		{"type": "event", "name": "ZeroArray", "inputs": [{"name": "x", "type": "uint256[0]"}]},
		{"type": "event", "name": "Good", "inputs": [{"name": "x", "type": "uint256"}]}
	]`
	entries, skipped, err := ParseDocument([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, skipped, 3)
	require.Len(t, entries, 1)
	assert.Equal(t, "Good(uint256)", entries[0].Event.Signature())
}

func TestParseDocument_TupleComponents(t *testing.T) {
	doc := `[{
		"type": "event",
		"name": "OrderFilled",
		"inputs": [{
			"name": "order",
			"type": "tuple",
			"indexed": false,
			"components": [
				{"name": "maker", "type": "address"},
				{"name": "amounts", "type": "uint256[]"}
			]
		}]
	}]`
	entries, skipped, err := ParseDocument([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, entries, 1)
	assert.Equal(t, "OrderFilled((address,uint256[]))", entries[0].Event.Signature())
}

func TestParseDocument_MalformedJSON(t *testing.T) {
	_, _, err := ParseDocument([]byte("not json"))
	assert.Error(t, err)

	_, _, err = ParseDocument([]byte(`{"no_abi_field": true}`))
	assert.Error(t, err)
}
