package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/worker"
)

func writeBlocks(t *testing.T, dir string, n int) {
	t.Helper()

	w, err := storage.NewWriter(dir)
	require.NoError(t, err)

	ts := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		block := database.SignedBlock{
			BlockHeader: database.BlockHeader{
				Previous:              make(database.HexBytes, database.BlockIDSize),
				Timestamp:             database.ChainTime{Time: ts.Add(time.Duration(i) * 3 * time.Second)},
				Witness:               "1.6.0",
				TransactionMerkleRoot: make(database.HexBytes, database.BlockIDSize),
			},
		}
		_, err := w.AppendBlock(uint64(i), block)
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
}

func TestWatcherReloadsOnGrowth(t *testing.T) {
	dir := t.TempDir()
	writeBlocks(t, dir, 1)

	gen, err := genesis.Default()
	require.NoError(t, err)

	ev := func(v string, args ...any) { t.Logf(v, args...) }

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen, EvHandler: ev})
	require.NoError(t, err)
	require.NoError(t, st.Load(context.Background()))

	worker.Run(st, 10*time.Millisecond, ev)
	defer st.Shutdown()

	writeBlocks(t, dir, 3)

	require.Eventually(t, func() bool {
		snap, err := st.Snapshot()
		return err == nil && snap.HeadBlockNum == 3
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSignalReload(t *testing.T) {
	dir := t.TempDir()
	writeBlocks(t, dir, 2)

	gen, err := genesis.Default()
	require.NoError(t, err)

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen})
	require.NoError(t, err)

	worker.Run(st, time.Hour, func(string, ...any) {})
	defer st.Shutdown()

	st.Worker.SignalReload()

	require.Eventually(t, func() bool {
		return st.Status() == state.StatusReady
	}, 5*time.Second, 10*time.Millisecond)
}
