package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client makes calls against a node over a websocket. Calls are made one at
// a time.
type Client struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	nextID uint64
}

// Dial connects to the node's websocket endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	return &Client{ws: ws}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.ws.Close()
}

// Call invokes the method and decodes the result into result, which may be
// nil. An error object returned by the node is returned as *Error.
func (c *Client) Call(ctx context.Context, result any, method string, params ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if params == nil {
		params = []any{}
	}

	c.nextID++
	id := json.RawMessage(strconv.FormatUint(c.nextID, 10))

	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  rawParams,
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.ws.SetWriteDeadline(deadline)
		c.ws.SetReadDeadline(deadline)
		defer c.ws.SetReadDeadline(time.Time{})
	}

	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("sending %s: %w", method, err)
	}

	for {
		var resp wireResponse
		if err := c.ws.ReadJSON(&resp); err != nil {
			return fmt.Errorf("reading %s: %w", method, err)
		}

		if !bytes.Equal(resp.ID, id) {
			continue
		}

		if resp.Error != nil {
			return resp.Error
		}

		if result == nil || len(resp.Result) == 0 {
			return nil
		}

		return json.Unmarshal(resp.Result, result)
	}
}
