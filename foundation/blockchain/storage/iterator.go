package storage

// Iterator walks the populated slots of the index in block number order.
// The number of slots is fixed when the iterator is created so blocks
// appended during the walk are left for the next one.
type Iterator struct {
	store   *Store
	total   uint64
	current uint64
	empty   uint64
	eoc     bool
}

// ForEach returns an iterator starting with block number 1. Blocks read by
// the iterator bypass the block cache.
func (s *Store) ForEach() (*Iterator, error) {
	total, err := s.TotalBlocks()
	if err != nil {
		return nil, err
	}

	it := Iterator{
		store: s,
		total: total,
		eoc:   total <= 1,
	}

	return &it, nil
}

// Next returns the next populated block. Empty slots are skipped. When the
// end of the index is reached a nil block is returned and Done reports true.
// An error applies only to the current slot, the walk can continue.
func (it *Iterator) Next() (*Block, error) {
	for !it.eoc {
		it.current++
		if it.current+1 >= it.total {
			it.eoc = true
		}

		block, err := it.store.readBlock(it.current, false)
		if err != nil {
			return nil, err
		}
		if block != nil {
			return block, nil
		}

		it.empty++
	}

	return nil, nil
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}

// Current returns the last block number visited.
func (it *Iterator) Current() uint64 {
	return it.current
}

// Total returns the number of index slots the iterator walks over.
func (it *Iterator) Total() uint64 {
	return it.total
}

// Empty returns the number of empty slots skipped so far.
func (it *Iterator) Empty() uint64 {
	return it.empty
}
