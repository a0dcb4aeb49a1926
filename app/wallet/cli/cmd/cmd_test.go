package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adamwoolhether/virtualnode/app/services/node/handlers"
	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
)

func TestGenerateInspect(t *testing.T) {
	dir := t.TempDir()

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	head, err := generateChain(dir, 10, privateKey)
	require.NoError(t, err)
	assert.Len(t, head, database.BlockIDSize*2)

	report, err := inspectChain(dir)
	require.NoError(t, err)

	assert.Equal(t, uint64(11), report.Slots)
	assert.Equal(t, uint64(10), report.LastBlock)
	assert.Equal(t, head, report.LastBlockID)
	assert.Equal(t, uint64(10), report.Blocks)
	assert.Equal(t, uint64(10), report.Signed)
	assert.Zero(t, report.Empty)
	assert.Zero(t, report.Partial)
	assert.Zero(t, report.Corrupt)
	assert.Equal(t, 13, report.Operations)
}

func TestGenerateReplay(t *testing.T) {
	dir := t.TempDir()

	_, err := generateChain(dir, 10, nil)
	require.NoError(t, err)

	gen, err := genesis.Load(filepath.Join(dir, "genesis.yaml"))
	require.NoError(t, err)

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen})
	require.NoError(t, err)
	defer st.Shutdown()

	require.NoError(t, st.Load(context.Background()))

	snap, err := st.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), snap.HeadBlockNum)
	assert.Equal(t, len(gen.Accounts)+2, snap.DB.AccountCount())

	funder := gen.Accounts[len(gen.Accounts)-1].ID
	amount, ok := snap.DB.Balance(funder, database.CoreAssetID)
	require.True(t, ok)
	assert.Equal(t, int64(fixtureFunds-55_000), amount)

	_, ok = snap.DB.AccountByName("fixture-10")
	assert.True(t, ok)

	c := snap.DB.Counters()
	assert.Equal(t, uint64(13), c.Accepted)
	assert.Zero(t, c.Rejected)
}

func TestQueryCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := generateChain(dir, 5, nil)
	require.NoError(t, err)

	gen, err := genesis.Load(filepath.Join(dir, "genesis.yaml"))
	require.NoError(t, err)

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen})
	require.NoError(t, err)
	defer st.Shutdown()
	require.NoError(t, st.Load(context.Background()))

	srv := httptest.NewServer(handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Metrics:  metrics.New(),
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append(args, "--url", wsURL))
		require.NoError(t, rootCmd.ExecuteContext(context.Background()))
		return out.String()
	}

	assert.Contains(t, run("account", "fixture-5"), `"name": "fixture-5"`)
	assert.Contains(t, run("accounts", "fixture", "--limit", "1"), `"fixture-5"`)
	assert.Contains(t, run("block", "5"), `"witness": "1.6.0"`)
	assert.Contains(t, run("info"), `"head_block_num": 5`)

	funder := gen.Accounts[len(gen.Accounts)-1].ID
	assert.Contains(t, run("balance", funder), "1.3.0\t999985000")
}
