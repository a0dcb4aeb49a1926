package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adamwoolhether/virtualnode/app/services/node/handlers"
	"github.com/adamwoolhether/virtualnode/business/sys/metrics"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/storage"
	"github.com/adamwoolhether/virtualnode/foundation/events"
	"github.com/adamwoolhether/virtualnode/foundation/rpc"
)

func newMuxConfig(t *testing.T) handlers.MuxConfig {
	t.Helper()

	dir := t.TempDir()
	w, err := storage.NewWriter(dir)
	require.NoError(t, err)

	ts := time.Date(2021, 3, 1, 0, 0, 3, 0, time.UTC)
	_, err = w.AppendBlock(1, database.SignedBlock{
		BlockHeader: database.BlockHeader{
			Previous:              make(database.HexBytes, database.BlockIDSize),
			Timestamp:             database.ChainTime{Time: ts},
			Witness:               "1.6.0",
			TransactionMerkleRoot: make(database.HexBytes, database.BlockIDSize),
			Extensions:            []database.HexBytes{},
		},
		WitnessSignature: database.HexBytes{},
		Transactions:     []database.Transaction{},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	gen, err := genesis.Default()
	require.NoError(t, err)

	st, err := state.New(state.Config{DataDir: dir, Genesis: gen})
	require.NoError(t, err)
	t.Cleanup(func() { st.Shutdown() })

	m := metrics.New()
	m.RegisterReplay(st)

	evts := events.New()
	t.Cleanup(evts.Shutdown)

	return handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      zap.NewNop().Sugar(),
		State:    st,
		Evts:     evts,
		Metrics:  m,
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestPublicMux(t *testing.T) {
	cfg := newMuxConfig(t)

	srv := httptest.NewServer(handlers.PublicMux(cfg))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := rpc.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/")
	require.NoError(t, err)
	defer client.Close()

	// Calls are refused until the replay has published a snapshot.
	var count int
	err = client.Call(ctx, &count, "get_account_count")
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, rpc.CodeNotLoaded, rpcErr.Code)

	code, _ := get(t, srv.URL+"/v1/block/1")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	require.NoError(t, cfg.State.Load(ctx))

	require.NoError(t, client.Call(ctx, &count, "get_account_count"))
	assert.Equal(t, 22, count)

	var chainID string
	require.NoError(t, client.Call(ctx, &chainID, "call", "database", "get_chain_id", []any{}))
	assert.Equal(t, "4556f5208cef79027fa6af7178c22c8965270a176671f60cb2c2c5874fafcb4d", chainID)

	resp, err := http.Post(srv.URL+"/rpc", "application/json", strings.NewReader(`{"id":7,"method":"get_account_by_name","params":["nathan"]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var reply struct {
		ID     int              `json:"id"`
		Result database.Account `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, 7, reply.ID)
	assert.Equal(t, "1.2.120", reply.Result.ID)

	code, body := get(t, srv.URL+"/v1/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"ready"`)

	code, body = get(t, srv.URL+"/v1/block/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"witness":"1.6.0"`)

	code, _ = get(t, srv.URL+"/v1/block/2")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/v1/block/abc")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, srv.URL+"/v1/genesis")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"chain_id"`)
}

func TestDebugMux(t *testing.T) {
	cfg := newMuxConfig(t)

	srv := httptest.NewServer(handlers.DebugMux(cfg))
	t.Cleanup(srv.Close)

	code, body := get(t, srv.URL+"/debug/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "uninitialized")

	require.NoError(t, cfg.State.Load(context.Background()))

	code, _ = get(t, srv.URL+"/debug/readiness")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, srv.URL+"/debug/liveness")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "virtualnode_replay_processed_blocks 1")
	assert.Contains(t, body, "virtualnode_state_status 2")
}
