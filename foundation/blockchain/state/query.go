package state

import (
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

// QueryLatest represents a query to the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// QueryBlock returns the block with the specified number, or nil when the
// index holds no block for it or it lies past the published head.
func (s *State) QueryBlock(num uint64) (*storage.Block, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	if num == QueryLatest {
		num = snap.HeadBlockNum
	}

	if num == 0 || num > snap.HeadBlockNum {
		return nil, nil
	}

	block, err := s.store.ReadBlock(num)
	if err != nil {
		s.evHandler("state: queryblock: block[%d]: ERROR: %s", num, err)
		return nil, err
	}

	return block, nil
}

// QueryAccount returns the account for a name or an account id.
func (s *State) QueryAccount(nameOrID string) (database.Account, bool, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return database.Account{}, false, err
	}

	account, ok := snap.DB.ResolveAccount(nameOrID)
	return account, ok, nil
}

// QueryBalances returns the balances held by an account, by name or id.
func (s *State) QueryBalances(nameOrID string) ([]database.Balance, bool, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, false, err
	}

	account, ok := snap.DB.ResolveAccount(nameOrID)
	if !ok {
		return nil, false, nil
	}

	return snap.DB.AccountBalances(account.ID), true, nil
}
