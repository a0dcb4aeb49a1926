package storage

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

// IndexEntrySize is the width of one record in the index file.
const IndexEntrySize = 32

// IndexEntry locates one block inside the blocks file. Slot k of the index
// describes block k, slot 0 is never used.
type IndexEntry struct {
	BlockPos  uint64
	BlockSize uint32
	BlockID   [database.BlockIDSize]byte
}

// ID returns the block id as a hex string.
func (e IndexEntry) ID() string {
	return hex.EncodeToString(e.BlockID[:])
}

// parseIndexEntry decodes one record laid out as pos:u64, size:u32, id:20.
func parseIndexEntry(data []byte) IndexEntry {
	var e IndexEntry
	e.BlockPos = binary.LittleEndian.Uint64(data[0:8])
	e.BlockSize = binary.LittleEndian.Uint32(data[8:12])
	copy(e.BlockID[:], data[12:IndexEntrySize])

	return e
}

// encode renders the entry as an index record.
func (e IndexEntry) encode() []byte {
	data := make([]byte, IndexEntrySize)
	binary.LittleEndian.PutUint64(data[0:8], e.BlockPos)
	binary.LittleEndian.PutUint32(data[8:12], e.BlockSize)
	copy(data[12:], e.BlockID[:])

	return data
}
