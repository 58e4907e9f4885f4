package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nearbysmelt/internal/protocol"
)

// ErrQueueFull is returned by Conn.Send when the outbound queue is full.
var ErrQueueFull = errors.New("outbound queue full")

// Conn is the client end of a session. Send is safe for concurrent use.
type Conn struct {
	conn *websocket.Conn
	out  chan []byte
	log  *zap.SugaredLogger
}

// Dial connects and sends hello. Frames are not read until Run.
func Dial(ctx context.Context, url string, hello protocol.Hello, logger *zap.SugaredLogger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	b, err := protocol.Encode(hello)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	return &Conn{
		conn: conn,
		out:  make(chan []byte, 64),
		log:  logger.With("component", "ws_client"),
	}, nil
}

func (c *Conn) Send(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run pumps frames until ctx is done or the connection fails. Decoded server
// frames are delivered to inbound in order. A malformed frame ends the
// session with an error wrapping protocol.ErrMalformed.
func (c *Conn) Run(ctx context.Context, inbound chan<- protocol.Message) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			_, msg, err := c.conn.ReadMessage()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("read: %w", err)
			}
			m, err := protocol.Decode(msg)
			if err != nil {
				c.closeWith(protocol.CloseMalformed)
				return err
			}
			select {
			case inbound <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				// Unblock the reader.
				_ = c.conn.SetReadDeadline(time.Now())
				return nil
			case b := <-c.out:
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
		}
	})

	err := g.Wait()
	if err != nil {
		c.log.Infow("session ended", "err", err)
	}
	return err
}

func (c *Conn) closeWith(reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func (c *Conn) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
