package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

// Writer appends blocks to a new pair of index and blocks files. It is used
// to build chains for tests and local environments.
type Writer struct {
	index  *os.File
	blocks *os.File
	pos    uint64
}

// NewWriter creates the store files under the data dir, truncating any that
// already exist. Slot 0 of the index is reserved.
func NewWriter(dataDir string) (*Writer, error) {
	indexPath, blocksPath := Paths(dataDir)

	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, err
	}

	index, err := os.OpenFile(indexPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	blocks, err := os.OpenFile(blocksPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		index.Close()
		return nil, err
	}

	w := Writer{
		index:  index,
		blocks: blocks,
	}

	if _, err := index.WriteAt(IndexEntry{}.encode(), 0); err != nil {
		w.Close()
		return nil, err
	}

	return &w, nil
}

// Append writes the raw block bytes and its index entry into slot num.
// Slots skipped over read back as empty.
func (w *Writer) Append(num uint64, raw []byte, id [database.BlockIDSize]byte) error {
	if num == 0 {
		return errors.New("block 0 is reserved")
	}

	if _, err := w.blocks.WriteAt(raw, int64(w.pos)); err != nil {
		return fmt.Errorf("blocks: %w", err)
	}

	entry := IndexEntry{
		BlockPos:  w.pos,
		BlockSize: uint32(len(raw)),
		BlockID:   id,
	}
	if _, err := w.index.WriteAt(entry.encode(), int64(num*IndexEntrySize)); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	w.pos += uint64(len(raw))

	return nil
}

// AppendBlock encodes the block and appends it with a computed block id.
func (w *Writer) AppendBlock(num uint64, block database.SignedBlock) ([database.BlockIDSize]byte, error) {
	raw, err := database.EncodeBlock(block)
	if err != nil {
		return [database.BlockIDSize]byte{}, err
	}

	id := database.ComputeBlockID(uint32(num), raw)
	if err := w.Append(num, raw, id); err != nil {
		return [database.BlockIDSize]byte{}, err
	}

	return id, nil
}

// Close flushes and closes both files.
func (w *Writer) Close() error {
	return errors.Join(
		w.index.Sync(),
		w.blocks.Sync(),
		w.index.Close(),
		w.blocks.Close(),
	)
}
