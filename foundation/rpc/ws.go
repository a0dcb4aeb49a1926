package rpc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request to a websocket and serves calls on it until
// the client goes away. Every message is handled on its own goroutine so a
// slow call never holds up the ones behind it. Once the connection has
// MaxInFlight calls running, reading pauses until one of them finishes.
func (s *Server) ServeWS(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := conn{
		srv:      s,
		ws:       ws,
		id:       newConnID(),
		inFlight: make(chan struct{}, s.maxCall),
	}
	c.run(ctx)

	return nil
}

// conn is one websocket client.
type conn struct {
	srv      *Server
	ws       *websocket.Conn
	id       string
	inFlight chan struct{}
	writeMu  sync.Mutex
	wg       sync.WaitGroup
}

func (c *conn) run(ctx context.Context) {
	c.srv.log.Infow("websocket", traceFields(c.id, "status", "connected", "remoteaddr", c.ws.RemoteAddr().String())...)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.wg.Wait()
		c.ws.Close()
		c.srv.log.Infow("websocket", traceFields(c.id, "status", "disconnected")...)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.ping(ctx)
	}()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !errors.Is(err, context.Canceled) {
				c.srv.log.Infow("websocket", traceFields(c.id, "status", "read", "ERROR", err)...)
			}
			return
		}

		c.inFlight <- struct{}{}

		c.wg.Add(1)
		go func() {
			defer func() {
				<-c.inFlight
				c.wg.Done()
			}()

			resp := c.srv.Dispatch(ctx, msg)

			// The client may be gone by now, the response is dropped.
			c.write(websocket.TextMessage, resp)
		}()
	}
}

// ping keeps the connection alive until the context is done.
func (c *conn) ping(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// write serializes writers on the connection.
func (c *conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}
