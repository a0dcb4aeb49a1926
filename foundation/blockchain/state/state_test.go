package state_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
)

const (
	alice = "1.2.100"
	bob   = "1.2.101"
)

func testGenesis(reward int64) genesis.Genesis {
	return genesis.Genesis{
		ChainID:     "test-chain",
		BlockReward: reward,
		Accounts: []genesis.Account{
			{ID: alice, Name: "alice"},
			{ID: bob, Name: "bob"},
		},
		Assets: []genesis.Asset{
			{ID: database.CoreAssetID, Symbol: "XOM", Precision: 5, Issuer: alice},
		},
		Witnesses: map[string]string{"1.6.1": bob},
		Balances: []genesis.Balance{
			{Account: alice, Asset: database.CoreAssetID, Amount: 100},
		},
	}
}

func signedBlock(num uint64, ops ...database.Operation) database.SignedBlock {
	ts := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(num) * 3 * time.Second)

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

func send(from, to string, amount int64) database.Transfer {
	return database.Transfer{
		From:   from,
		To:     to,
		Amount: database.AssetAmount{Amount: amount, AssetID: database.CoreAssetID},
	}
}

// writeChain writes the blocks into slots 1..n, a nil entry leaves the slot
// empty.
func writeChain(t *testing.T, dir string, blocks ...[]database.Operation) {
	t.Helper()

	w, err := storage.NewWriter(dir)
	require.NoError(t, err)

	for i, ops := range blocks {
		if ops == nil {
			continue
		}
		num := uint64(i + 1)
		_, err := w.AppendBlock(num, signedBlock(num, ops...))
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
}

func newState(t *testing.T, dir string, reward int64) *state.State {
	t.Helper()

	st, err := state.New(state.Config{
		DataDir:          dir,
		Genesis:          testGenesis(reward),
		CacheSize:        4,
		PrefetchDepth:    2,
		ProgressInterval: 1,
		EvHandler:        func(v string, args ...any) { t.Logf(v, args...) },
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	return st
}

func TestNewMissingStore(t *testing.T) {
	_, err := state.New(state.Config{DataDir: t.TempDir()})
	require.ErrorIs(t, err, storage.ErrStoreNotFound)
}

func TestNotLoaded(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, []database.Operation{send(alice, bob, 1)})

	st := newState(t, dir, 0)
	assert.Equal(t, state.StatusUninitialized, st.Status())

	_, err := st.Snapshot()
	require.ErrorIs(t, err, state.ErrNotLoaded)

	_, err = st.QueryBlock(1)
	require.ErrorIs(t, err, state.ErrNotLoaded)

	assert.Equal(t, "uninitialized", st.ReplayStatus().Status)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 60)},
		[]database.Operation{send(alice, bob, 60)},
		nil,
		[]database.Operation{
			database.AccountCreate{
				Registrar: alice,
				Referrer:  alice,
				Name:      "nathan",
				Options:   database.AccountOptions{VotingAccount: "1.2.5"},
			},
		},
	)

	st := newState(t, dir, 0)
	require.NoError(t, st.Load(context.Background()))
	assert.Equal(t, state.StatusReady, st.Status())

	snap, err := st.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, uint64(4), snap.HeadBlockNum)
	assert.Equal(t, uint64(5), snap.TotalBlocks)
	assert.Len(t, snap.HeadBlockID, database.BlockIDSize*2)

	a, _ := snap.DB.Balance(alice, database.CoreAssetID)
	b, _ := snap.DB.Balance(bob, database.CoreAssetID)
	assert.Equal(t, int64(40), a)
	assert.Equal(t, int64(60), b)

	nathan, ok, err := st.QueryAccount("nathan")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.2.102", nathan.ID)
	assert.Equal(t, uint64(4), nathan.CreationBlock)

	status := st.ReplayStatus()
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, uint64(3), status.Processed)
	assert.Equal(t, uint64(1), status.Empty)
	assert.Equal(t, uint64(2), status.Operations.Accepted)
	assert.Equal(t, uint64(1), status.Operations.Insufficient)
	assert.Equal(t, uint64(1), status.Reloads)
}

func TestQueryBlock(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 1)},
		nil,
		[]database.Operation{send(alice, bob, 2)},
	)

	st := newState(t, dir, 0)
	require.NoError(t, st.Load(context.Background()))

	block, err := st.QueryBlock(1)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(1), block.Number)

	block, err = st.QueryBlock(2)
	require.NoError(t, err)
	assert.Nil(t, block)

	block, err = st.QueryBlock(state.QueryLatest)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(3), block.Number)

	block, err = st.QueryBlock(9)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestBlockReward(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 10)},
		[]database.Operation{send(bob, alice, 12)},
	)

	st := newState(t, dir, 5)
	require.NoError(t, st.Load(context.Background()))

	balances, ok, err := st.QueryBalances("bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, balances, 1)

	// 10 received, 5 reward, 12 sent, 5 reward.
	assert.Equal(t, int64(8), balances[0].Amount)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, []database.Operation{send(alice, bob, 10)})

	st := newState(t, dir, 0)
	require.NoError(t, st.Load(context.Background()))

	before, err := st.Snapshot()
	require.NoError(t, err)

	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 10)},
		[]database.Operation{send(alice, bob, 15)},
	)
	require.NoError(t, st.Reload(context.Background()))

	after, err := st.Snapshot()
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, uint64(1), before.HeadBlockNum)
	assert.Equal(t, uint64(2), after.HeadBlockNum)

	b, _ := before.DB.Balance(bob, database.CoreAssetID)
	assert.Equal(t, int64(10), b, "published snapshot must not change")

	b, _ = after.DB.Balance(bob, database.CoreAssetID)
	assert.Equal(t, int64(25), b)
	assert.Equal(t, uint64(2), st.ReplayStatus().Reloads)
}

func TestReloadCancelled(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, []database.Operation{send(alice, bob, 10)}, []database.Operation{send(alice, bob, 10)})

	st := newState(t, dir, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, st.Load(ctx), context.Canceled)
	assert.Equal(t, state.StatusUninitialized, st.Status())
}

func TestLoadUnreadableHead(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 10)},
		[]database.Operation{send(alice, bob, 20)},
	)

	// Cut the tail of the last block so its indexed range runs past the end
	// of the blocks file.
	_, blocksPath := storage.Paths(dir)
	info, err := os.Stat(blocksPath)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(blocksPath, info.Size()-4))

	st := newState(t, dir, 0)
	require.NoError(t, st.Load(context.Background()))

	snap, err := st.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, uint64(2), snap.HeadBlockNum)
	assert.Len(t, snap.HeadBlockID, database.BlockIDSize*2)
	assert.Equal(t, uint64(1), snap.Replay.Processed)
	assert.Equal(t, uint64(1), snap.Replay.Corrupt)

	b, _ := snap.DB.Balance(bob, database.CoreAssetID)
	assert.Equal(t, int64(10), b)
}

func TestLoadReportsRejections(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir,
		[]database.Operation{send(alice, bob, 60)},
		[]database.Operation{send(alice, bob, 60)},
	)

	var (
		mu    sync.Mutex
		lines []string
	)
	st, err := state.New(state.Config{
		DataDir: dir,
		Genesis: testGenesis(0),
		EvHandler: func(v string, args ...any) {
			mu.Lock()
			defer mu.Unlock()
			lines = append(lines, fmt.Sprintf(v, args...))
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	require.NoError(t, st.Load(context.Background()))

	mu.Lock()
	defer mu.Unlock()

	var rejected []string
	for _, line := range lines {
		if strings.Contains(line, "rejected:") {
			rejected = append(rejected, line)
		}
	}

	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0], "block 2")
	assert.Contains(t, rejected[0], database.ErrInsufficientBalance.Error())
}

func TestLoadBadGenesis(t *testing.T) {
	dir := t.TempDir()
	writeChain(t, dir, []database.Operation{send(alice, bob, 10)})

	gen := testGenesis(0)
	gen.Accounts = append(gen.Accounts, genesis.Account{ID: "1.2.102", Name: "alice"})

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	err = st.Load(context.Background())
	require.ErrorIs(t, err, database.ErrDuplicateEntity)
	assert.Equal(t, state.StatusUninitialized, st.Status())

	_, err = st.Snapshot()
	require.ErrorIs(t, err, state.ErrNotLoaded)
}
