// Package storage reads blocks out of the legacy chain's block_num_to_block
// database: a fixed record index file plus an append only blocks file.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
)

// Set of error variables for the block store.
var (
	ErrStoreNotFound = errors.New("block store not found")
	ErrCorruptBlock  = errors.New("corrupt block")
)

// Status describes how much of a block could be decoded.
type Status int

// Set of block decode outcomes.
const (
	StatusOK Status = iota
	StatusPartial
	StatusCorrupt
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	default:
		return "corrupt"
	}
}

// Block is a decoded block together with the outcome of decoding it.
// Blocks handed out by the store are shared and must not be modified.
type Block struct {
	database.SignedBlock
	Status Status `json:"-"`
	Err    error  `json:"-"`
}

// Paths returns the index and blocks file locations under a node data dir.
func Paths(dataDir string) (index string, blocks string) {
	dir := filepath.Join(dataDir, "database", "block_num_to_block")
	return filepath.Join(dir, "index"), filepath.Join(dir, "blocks")
}

// Store provides read access to the index and blocks files.
type Store struct {
	dataDir string
	index   *os.File
	blocks  *os.File
	cache   *lru.Cache[uint64, *Block]
	corrupt atomic.Uint64
}

// Open opens the block store under the data dir. Both files must exist.
// A cacheSize above zero keeps that many decoded blocks in memory.
func Open(dataDir string, cacheSize int) (*Store, error) {
	indexPath, blocksPath := Paths(dataDir)

	index, err := openFile(indexPath)
	if err != nil {
		return nil, err
	}

	blocks, err := openFile(blocksPath)
	if err != nil {
		index.Close()
		return nil, err
	}

	s := Store{
		dataDir: dataDir,
		index:   index,
		blocks:  blocks,
	}

	if cacheSize > 0 {
		cache, err := lru.New[uint64, *Block](cacheSize)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("block cache: %w", err)
		}
		s.cache = cache
	}

	return &s, nil
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, err
	}

	return f, nil
}

// Close releases both file handles.
func (s *Store) Close() error {
	return errors.Join(s.index.Close(), s.blocks.Close())
}

// DataDir returns the data dir the store was opened from.
func (s *Store) DataDir() string {
	return s.dataDir
}

// IndexSize returns the current size of the index file in bytes.
func (s *Store) IndexSize() (int64, error) {
	info, err := s.index.Stat()
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// TotalBlocks returns the number of index slots, slot 0 included.
func (s *Store) TotalBlocks() (uint64, error) {
	size, err := s.IndexSize()
	if err != nil {
		return 0, err
	}

	return uint64(size) / IndexEntrySize, nil
}

// Corrupt returns the number of blocks that could not be read or decoded.
func (s *Store) Corrupt() uint64 {
	return s.corrupt.Load()
}

// ReadIndexEntry returns the index entry for the block number. Nil is
// returned for block 0, for slots past the end of the index and for slots
// with a zero block size.
func (s *Store) ReadIndexEntry(num uint64) (*IndexEntry, error) {
	if num == 0 {
		return nil, nil
	}

	size, err := s.IndexSize()
	if err != nil {
		return nil, err
	}

	offset := num * IndexEntrySize
	if offset >= uint64(size) {
		return nil, nil
	}

	data := make([]byte, IndexEntrySize)
	n, err := readAt(s.index, data, int64(offset))
	if n < IndexEntrySize {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("index slot %d: %w: %d of %d bytes", num, fcraw.ErrTruncatedInput, n, IndexEntrySize)
		}
		return nil, fmt.Errorf("index slot %d: %w", num, err)
	}

	entry := parseIndexEntry(data)
	if entry.BlockSize == 0 {
		return nil, nil
	}

	return &entry, nil
}

// ReadBlock reads and decodes the specified block. Nil is returned when the
// index has no block for that number. A block whose bytes do not decode is
// still returned with its status set and an empty transaction list.
func (s *Store) ReadBlock(num uint64) (*Block, error) {
	return s.readBlock(num, s.cache != nil)
}

func (s *Store) readBlock(num uint64, cached bool) (*Block, error) {
	if cached {
		if block, ok := s.cache.Get(num); ok {
			return block, nil
		}
	}

	entry, err := s.ReadIndexEntry(num)
	if err != nil || entry == nil {
		return nil, err
	}

	raw, err := s.readRaw(*entry)
	if err != nil {
		s.corrupt.Add(1)
		return nil, fmt.Errorf("block %d: %w", num, err)
	}

	signed, err := database.DecodeBlock(raw)
	block := Block{
		SignedBlock: signed,
		Err:         err,
	}

	switch {
	case err == nil:
		block.Status = StatusOK
	case errors.Is(err, database.ErrUnknownOperationLayout):
		block.Status = StatusPartial
	default:
		block.Status = StatusCorrupt
		block.Transactions = []database.Transaction{}
		block.TransactionIDs = nil
		s.corrupt.Add(1)
	}

	block.Number = num
	block.BlockID = entry.ID()
	if block.Transactions == nil {
		block.Transactions = []database.Transaction{}
	}
	if block.TransactionIDs == nil {
		block.TransactionIDs = []string{}
	}

	if cached {
		s.cache.Add(num, &block)
	}

	return &block, nil
}

// readRaw reads exactly the byte range the entry points at.
func (s *Store) readRaw(entry IndexEntry) ([]byte, error) {
	info, err := s.blocks.Stat()
	if err != nil {
		return nil, err
	}

	end := entry.BlockPos + uint64(entry.BlockSize)
	if end < entry.BlockPos || end > uint64(info.Size()) {
		return nil, fmt.Errorf("%w: range [%d,%d) beyond blocks file of %d bytes", ErrCorruptBlock, entry.BlockPos, end, info.Size())
	}

	raw := make([]byte, entry.BlockSize)
	n, err := readAt(s.blocks, raw, int64(entry.BlockPos))
	if n != len(raw) {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrCorruptBlock, n, len(raw))
	}

	return raw, nil
}

// FindLastBlock scans the index from the highest slot down and returns the
// first populated entry and its block number.
func (s *Store) FindLastBlock() (*IndexEntry, uint64, error) {
	total, err := s.TotalBlocks()
	if err != nil {
		return nil, 0, err
	}

	for num := total; num >= 1; num-- {
		entry, err := s.ReadIndexEntry(num)
		if err != nil {
			return nil, 0, err
		}
		if entry != nil {
			return entry, num, nil
		}
	}

	return nil, 0, nil
}

// readAt reads from the file at the offset, retrying once on an I/O error.
func readAt(f *os.File, buf []byte, offset int64) (int, error) {
	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		n, err = f.ReadAt(buf, offset)
	}

	return n, err
}
