package storage_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

func block(ops ...database.Operation) database.SignedBlock {
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)

	return database.SignedBlock{
		BlockHeader: database.BlockHeader{
			Previous:              make(database.HexBytes, database.BlockIDSize),
			Timestamp:             database.ChainTime{Time: ts},
			Witness:               "1.6.1",
			TransactionMerkleRoot: make(database.HexBytes, database.BlockIDSize),
			Extensions:            []database.HexBytes{},
		},
		WitnessSignature: database.HexBytes{},
		Transactions: []database.Transaction{
			{
				Expiration: database.ChainTime{Time: ts},
				Operations: ops,
				Extensions: []database.HexBytes{},
				Signatures: []database.HexBytes{},
			},
		},
	}
}

func transfer(amount int64) database.Transfer {
	return database.Transfer{
		From:   "1.2.100",
		To:     "1.2.101",
		Amount: database.AssetAmount{Amount: amount, AssetID: database.CoreAssetID},
	}
}

// writeChain writes blocks 1, 2 and 4, leaving slot 3 empty.
func writeChain(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	w, err := storage.NewWriter(dir)
	require.NoError(t, err)

	for _, num := range []uint64{1, 2, 4} {
		_, err := w.AppendBlock(num, block(transfer(int64(num))))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return dir
}

func TestOpenMissing(t *testing.T) {
	_, err := storage.Open(t.TempDir(), 0)
	require.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestReadBlock(t *testing.T) {
	s, err := storage.Open(writeChain(t), 8)
	require.NoError(t, err)
	defer s.Close()

	total, err := s.TotalBlocks()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), total)

	b, err := s.ReadBlock(2)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, storage.StatusOK, b.Status)
	assert.Equal(t, uint64(2), b.Number)
	assert.Len(t, b.BlockID, database.BlockIDSize*2)
	assert.Equal(t, "00000002", b.BlockID[:8])
	require.Len(t, b.Transactions, 1)
	assert.Equal(t, transfer(2), b.Transactions[0].Operations[0])

	cached, err := s.ReadBlock(2)
	require.NoError(t, err)
	assert.Same(t, b, cached)
}

func TestEmptySlots(t *testing.T) {
	s, err := storage.Open(writeChain(t), 0)
	require.NoError(t, err)
	defer s.Close()

	for _, num := range []uint64{0, 3, 5, 100} {
		entry, err := s.ReadIndexEntry(num)
		require.NoError(t, err)
		assert.Nil(t, entry, "slot %d", num)

		b, err := s.ReadBlock(num)
		require.NoError(t, err)
		assert.Nil(t, b, "slot %d", num)
	}
}

func TestFindLastBlock(t *testing.T) {
	dir := writeChain(t)

	// Grow the index with two empty trailing slots.
	indexPath, _ := storage.Paths(dir)
	f, err := os.OpenFile(indexPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 2*storage.IndexEntrySize))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s, err := storage.Open(dir, 0)
	require.NoError(t, err)
	defer s.Close()

	entry, num, err := s.FindLastBlock()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, uint64(4), num)
}

func TestTruncatedIndex(t *testing.T) {
	dir := writeChain(t)

	indexPath, _ := storage.Paths(dir)
	require.NoError(t, os.Truncate(indexPath, storage.IndexEntrySize+20))

	s, err := storage.Open(dir, 0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadIndexEntry(1)
	require.ErrorIs(t, err, fcraw.ErrTruncatedInput)
}

func TestCorruptBlocks(t *testing.T) {
	dir := writeChain(t)

	_, blocksPath := storage.Paths(dir)
	info, err := os.Stat(blocksPath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(blocksPath, info.Size()-4))

	s, err := storage.Open(dir, 0)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ReadBlock(4)
	require.ErrorIs(t, err, storage.ErrCorruptBlock)
	assert.Equal(t, uint64(1), s.Corrupt())

	b, err := s.ReadBlock(1)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusOK, b.Status)
}

func TestUndecodableBlock(t *testing.T) {
	dir := t.TempDir()
	w, err := storage.NewWriter(dir)
	require.NoError(t, err)

	raw, err := database.EncodeBlock(block(transfer(1)))
	require.NoError(t, err)
	require.NoError(t, w.Append(1, raw[:len(raw)-3], database.ComputeBlockID(1, raw)))
	require.NoError(t, w.Close())

	s, err := storage.Open(dir, 0)
	require.NoError(t, err)
	defer s.Close()

	b, err := s.ReadBlock(1)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, storage.StatusCorrupt, b.Status)
	assert.ErrorIs(t, b.Err, fcraw.ErrTruncatedInput)
	assert.Equal(t, "1.6.1", b.Witness)
	assert.Empty(t, b.Transactions)
	assert.Equal(t, uint64(1), s.Corrupt())
}

func TestForEach(t *testing.T) {
	s, err := storage.Open(writeChain(t), 0)
	require.NoError(t, err)
	defer s.Close()

	it, err := s.ForEach()
	require.NoError(t, err)

	var nums []uint64
	for !it.Done() {
		b, err := it.Next()
		require.NoError(t, err)
		if b != nil {
			nums = append(nums, b.Number)
		}
	}

	assert.Equal(t, []uint64{1, 2, 4}, nums)
	assert.Equal(t, uint64(1), it.Empty())
}
