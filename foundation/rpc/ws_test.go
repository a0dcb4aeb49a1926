package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/rpc"
)

func startServer(t *testing.T, srv *rpc.Server) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		srv.ServeWS(r.Context(), w, r)
	})
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		srv.ServePost(r.Context(), w, r)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestClientCall(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	ts := startServer(t, newServer(&ready))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := rpc.Dial(ctx, wsURL(ts))
	require.NoError(t, err)
	defer client.Close()

	var echo string
	require.NoError(t, client.Call(ctx, &echo, "echo", "hello"))
	assert.Equal(t, "hello", echo)

	var block map[string]uint64
	require.NoError(t, client.Call(ctx, &block, "get_block", 3))
	assert.Equal(t, uint64(3), block["num"])

	err = client.Call(ctx, nil, "nope")
	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, rpc.CodeMethodNotFound, rpcErr.Code)
}

func TestConcurrentRequests(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)

	release := make(chan struct{})
	srv := newServer(&ready)
	srv.Register("slow", func(ctx context.Context, params rpc.Params) (any, error) {
		<-release
		return "slow", nil
	})
	ts := startServer(t, srv)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"method":"slow"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"id":2,"method":"echo","params":["fast"]}`)))

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The fast call must not wait behind the slow one.
	var first struct {
		ID     int    `json:"id"`
		Result string `json:"result"`
	}
	require.NoError(t, ws.ReadJSON(&first))
	assert.Equal(t, 2, first.ID)
	assert.Equal(t, "fast", first.Result)

	close(release)

	var second struct {
		ID int `json:"id"`
	}
	require.NoError(t, ws.ReadJSON(&second))
	assert.Equal(t, 1, second.ID)
}

func TestMaxInFlight(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})

	srv := rpc.NewServer(rpc.Config{MaxInFlight: 2})
	srv.Register("slow", func(ctx context.Context, params rpc.Params) (any, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		return "slow", nil
	})
	ts := startServer(t, srv)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer ws.Close()

	const calls = 6
	for i := 1; i <= calls; i++ {
		msg := fmt.Sprintf(`{"id":%d,"method":"slow"}`, i)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), running.Load())

	close(release)

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	seen := make(map[int]bool)
	for i := 0; i < calls; i++ {
		var resp struct {
			ID     int    `json:"id"`
			Result string `json:"result"`
		}
		require.NoError(t, ws.ReadJSON(&resp))
		assert.Equal(t, "slow", resp.Result)
		seen[resp.ID] = true
	}
	assert.Len(t, seen, calls)
	assert.Equal(t, int32(2), peak.Load())
}

func TestManyClients(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	ts := startServer(t, newServer(&ready))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			client, err := rpc.Dial(ctx, wsURL(ts))
			if !assert.NoError(t, err) {
				return
			}
			defer client.Close()

			for j := 0; j < 20; j++ {
				var block map[string]uint64
				assert.NoError(t, client.Call(ctx, &block, "get_block", j%10))
			}
		}()
	}
	wg.Wait()
}

func TestServePost(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	ts := startServer(t, newServer(&ready))

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"call","params":[0,"echo",["post"]]}`)
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "post", got["result"])
}
