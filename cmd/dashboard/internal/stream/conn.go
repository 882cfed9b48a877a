package stream

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// ReconnectDelay is the fixed pause between a close and the next connect
// attempt. Deliberately not exponential: the feed is local infrastructure and
// the consumer wants it back as soon as it returns.
const ReconnectDelay = 1500 * time.Millisecond

// Kind names which feed a connection carries.
type Kind string

const (
	KindTicks     Kind = "ticks"
	KindAnalytics Kind = "analytics"
)

// Dialer abstracts the websocket dial so tests can inject pipes.
type Dialer interface {
	Dial(ctx context.Context, urlstr string) (net.Conn, error)
}

// WSDialer dials with gobwas/ws and folds any pre-read server bytes back
// into the returned conn.
type WSDialer struct {
	Dialer ws.Dialer
}

func (d *WSDialer) Dial(ctx context.Context, urlstr string) (net.Conn, error) {
	conn, br, _, err := d.Dialer.Dial(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	if br != nil {
		return &bufferedConn{Conn: conn, r: io.MultiReader(br, conn)}, nil
	}
	return conn, nil
}

type bufferedConn struct {
	net.Conn
	r io.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

// Conn owns one live websocket connection for one (kind, subscription set)
// pair, including its reconnect loop and timer. It is created per set; a set
// change means Close() and a fresh Conn, never mutation in place.
type Conn struct {
	kind      Kind
	url       string
	dialer    Dialer
	backoff   time.Duration
	onMessage func(payload []byte)
	logger    *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	opened bool
}

func New(kind Kind, url string, dialer Dialer, logger *zap.Logger, onMessage func([]byte)) *Conn {
	return &Conn{
		kind:      kind,
		url:       url,
		dialer:    dialer,
		backoff:   ReconnectDelay,
		onMessage: onMessage,
		logger:    logger,
	}
}

// Open starts the connect/read/reconnect loop. It is a no-op if already open.
func (c *Conn) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.opened = true
	go c.run(ctx)
}

// Close tears the connection down and cancels any pending reconnect timer,
// blocking until the loop has fully stopped. After Close no callback fires.
func (c *Conn) Close() {
	c.mu.Lock()
	if !c.opened {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.opened = false
	c.mu.Unlock()

	cancel()
	<-done
}

func (c *Conn) run(ctx context.Context) {
	defer close(c.done)
	for {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.logger.Warn("stream disconnected",
				zap.String("kind", string(c.kind)), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Conn) runOnce(ctx context.Context) error {
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		return err
	}

	// Unblock the read below when the context is cancelled.
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-attemptCtx.Done()
		conn.Close()
	}()

	c.logger.Info("stream connected",
		zap.String("kind", string(c.kind)), zap.String("url", c.url))

	for {
		payload, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			return err
		}
		if op != ws.OpText {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		c.onMessage(payload)
	}
}
