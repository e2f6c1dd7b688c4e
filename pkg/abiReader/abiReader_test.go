package abiReader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ozgrakkurt/glaciers/pkg/abi"
	"github.com/ozgrakkurt/glaciers/pkg/config"
)

const transferAbi = `[{
	"type": "event",
	"name": "Transfer",
	"inputs": [
		{"name": "from", "type": "address", "indexed": true},
		{"name": "to", "type": "address", "indexed": true},
		{"name": "value", "type": "uint256"}
	]
}]`

const approvalAbi = `[{
	"type": "event",
	"name": "Approval",
	"inputs": [
		{"name": "owner", "type": "address", "indexed": true},
		{"name": "spender", "type": "address", "indexed": true},
		{"name": "value", "type": "uint256"}
	]
}]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testReader() *AbiReader {
	return NewAbiReader(config.Default().AbiReader, zap.NewNop())
}

func TestReadFile_AddressFromFileName(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "0xdAC17F958D2ee523a2206206994597C13D831ec7.json", transferAbi)

	entries, skipped, err := testReader().ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"), e.Address)
	assert.Equal(t, "Transfer(address indexed from, address indexed to, uint256 value)", e.FullSignature)
	assert.Equal(t, "Transfer(address,address,uint256)", e.ID)
	assert.Equal(t, 2, e.NumIndexedArgs)
	assert.Equal(t,
		common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef").Bytes(),
		e.Hash,
	)
}

func TestReadFile_NoAddressUsesZeroSentinel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "erc20.json", transferAbi)

	entries, _, err := testReader().ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, common.Address{}, entries[0].Address)
	assert.Equal(t, path, entries[0].SourceFile)
}

func TestReadFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0x1111111111111111111111111111111111111111.json", transferAbi)
	writeFile(t, dir, "0x2222222222222222222222222222222222222222.json", approvalAbi)
	writeFile(t, dir, "broken.json", "{not json")
	writeFile(t, dir, "notes.txt", "ignored")

	index, report, err := testReader().ReadFolder(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, index.Len())
	assert.Equal(t, 2, report.FilesRead)
	assert.Equal(t, 1, report.FilesSkipped)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "broken.json")
}

func TestReadFolder_DeduplicatesByKey(t *testing.T) {
	// The same event at the same address in two files keeps the first
	// occurrence only; a different address is a distinct row.
	dir := t.TempDir()
	sub := filepath.Join(dir, "more")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeFile(t, dir, "0x1111111111111111111111111111111111111111.json", transferAbi)
	writeFile(t, sub, "0x1111111111111111111111111111111111111111.json", transferAbi)
	writeFile(t, dir, "0x2222222222222222222222222222222222222222.json", transferAbi)

	index, _, err := testReader().ReadFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())
}

func TestIndexMerge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0x1111111111111111111111111111111111111111.json", transferAbi)

	first, _, err := testReader().ReadFolder(dir)
	require.NoError(t, err)

	writeFile(t, dir, "0x2222222222222222222222222222222222222222.json", approvalAbi)
	second, _, err := testReader().ReadFolder(dir)
	require.NoError(t, err)

	added := first.Merge(second)
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, first.Len())

	// Merging again is a no-op: the union is stable.
	assert.Equal(t, 0, first.Merge(second))
}

func TestIndexFrameRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0x1111111111111111111111111111111111111111.json", transferAbi)
	index, _, err := testReader().ReadFolder(dir)
	require.NoError(t, err)

	f, err := index.ToFrame(false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.NumRows())
	assert.Equal(t, "Transfer", f.Column(ColName).Strings[0])

	restored, err := IndexFromFrame(f, config.Default().AbiReader.UniqueKey)
	require.NoError(t, err)
	require.Equal(t, 1, restored.Len())

	orig := index.Entries()[0]
	back := restored.Entries()[0]
	assert.Equal(t, orig.Hash, back.Hash)
	assert.Equal(t, orig.FullSignature, back.FullSignature)
	assert.Equal(t, orig.Address, back.Address)
	assert.Equal(t, orig.NumIndexedArgs, back.NumIndexedArgs)
	require.NotNil(t, back.Event)
	assert.Equal(t, orig.Event.Signature(), back.Event.Signature())
}

func TestIndexFrame_UppercaseHex(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0xdac17f958d2ee523a2206206994597c13d831ec7.json", transferAbi)
	index, _, err := testReader().ReadFolder(dir)
	require.NoError(t, err)

	f, err := index.ToFrame(true)
	require.NoError(t, err)
	assert.Equal(t, "0xDAC17F958D2EE523A2206206994597C13D831EC7", f.Column(ColAddress).Strings[0])
}

func TestReadFile_FunctionEntriesIndexed(t *testing.T) {
	doc := `[{
		"type": "function",
		"name": "transfer",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		]
	}]`
	dir := t.TempDir()
	path := writeFile(t, dir, "token.json", doc)

	entries, _, err := testReader().ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, abi.EntryFunction, entries[0].Kind)
	// Functions carry the truncated 4-byte selector.
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, entries[0].Hash)
	assert.Equal(t, "nonpayable", entries[0].StateMutability)
}
