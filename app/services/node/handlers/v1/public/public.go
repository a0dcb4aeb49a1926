// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	v1Web "github.com/adamwoolhether/virtualnode/business/web/v1"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/events"
	"github.com/adamwoolhether/virtualnode/foundation/rpc"
	"github.com/adamwoolhether/virtualnode/foundation/web"
)

// eventWriteWait bounds each write to an event subscriber.
const eventWriteWait = 10 * time.Second

// Handlers manages the set of legacy node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	RPC   *rpc.Server
	Evts  *events.Events
	WS    websocket.Upgrader
	Now   func() time.Time
}

// Serve upgrades the connection and serves JSON-RPC over the websocket until
// the peer leaves.
func (h Handlers) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.RPC.ServeWS(ctx, w, r)
}

// Call answers one JSON-RPC request posted over plain HTTP.
func (h Handlers) Call(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.RPC.ServePost(ctx, w, r)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the node.
	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	// This starts a ticker to send a ping to the client.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}
			c.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns the lifecycle and replay progress of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Status  string             `json:"status"`
		Replay  state.ReplayStatus `json:"replay"`
		Methods []string           `json:"methods"`
	}{
		Status:  h.State.Status().String(),
		Replay:  h.State.ReplayStatus(),
		Methods: h.RPC.Methods(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the genesis information the ledger is seeded from.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Block returns a block by number. The number "latest" returns the head.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	num := state.QueryLatest
	if p := web.Param(r, "num"); p != "latest" {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return v1Web.NewRequestError(fmt.Errorf("invalid block number %q", p), http.StatusBadRequest)
		}
		num = n
	}

	block, err := h.State.QueryBlock(num)
	if err != nil {
		if errors.Is(err, state.ErrNotLoaded) {
			return v1Web.NewRequestError(err, http.StatusServiceUnavailable)
		}
		return err
	}
	if block == nil {
		return v1Web.NewRequestError(fmt.Errorf("block %d not found", num), http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}
