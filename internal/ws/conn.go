package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	sendQueueLen = 256
	pingPeriod   = 20 * time.Second
	writeTimeout = 10 * time.Second
	readLimit    = 1 << 20 // whole-buffer snapshots travel in one frame
)

// timing bounds the keepalive. A ping that gets no pong within write ends the connection.
type timing struct {
	ping  time.Duration
	write time.Duration
}

var defaultTiming = timing{ping: pingPeriod, write: writeTimeout}

type Conn struct {
	ws   *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once
	tm   timing
}

// Accept upgrades HTTP to websocket. Empty originPatterns only admits same-origin browsers.
func Accept(w http.ResponseWriter, r *http.Request, originPatterns []string) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  originPatterns,
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a WS connection with a bounded outbound queue
func NewConn(ws *websocket.Conn) *Conn {
	return newConn(ws, defaultTiming)
}

func newConn(ws *websocket.Conn, tm timing) *Conn {
	ws.SetReadLimit(readLimit)
	return &Conn{
		ws:   ws,
		out:  make(chan []byte, sendQueueLen),
		done: make(chan struct{}),
		tm:   tm,
	}
}

// Send queues a frame without blocking; false if full or closed
func (c *Conn) Send(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// WriteLoop sends queued frames + periodic pings
// Exits when ctx is cancelled, a write fails or a ping goes unanswered
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(c.tm.ping)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, c.tm.write)
			err := c.ws.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				return
			}
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, c.tm.write)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close marks the queue closed and closes the WS connection normally
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
