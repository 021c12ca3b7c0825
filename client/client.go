// Package client is a websocket client of the relay realtime channel.
package client

import (
	"chat-relay/domain"
	"chat-relay/infrastructure/wire"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	Token        string
	MaxRetries   int
	WriteTimeout time.Duration
	BufferSize   int
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		WriteTimeout: 10 * time.Second,
		BufferSize:   64,
	}
}

// Client holds one websocket connection. Received messages are published on Messages
// until the connection ends, then Err reports why.
type Client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	options  Options
	writeMu  sync.Mutex
	messages chan domain.Message
	closing  chan struct{}
	once     sync.Once
	done     chan struct{}
	err      error
	identity string
}

// Dial connects to url, retrying with a growing delay.
func Dial(ctx context.Context, log *slog.Logger, url string, options Options) (*Client, error) {
	if options.MaxRetries <= 0 {
		options.MaxRetries = 1
	}
	header := http.Header{}
	if options.Token != "" {
		header.Set("Authorization", "Bearer "+options.Token)
	}

	var lastErr error
	for i := 0; i < options.MaxRetries; i++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err == nil {
			c := &Client{
				log:      log,
				conn:     conn,
				options:  options,
				messages: make(chan domain.Message, max(options.BufferSize, 1)),
				closing:  make(chan struct{}),
				done:     make(chan struct{}),
			}
			go c.readLoop()
			return c, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		retryDelay := time.Duration(i+1) * time.Second
		log.Debug("Dial failed, retrying", "url", url, "delay", retryDelay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, fmt.Errorf("failed to connect after %d retries, last error: %w", options.MaxRetries, lastErr)
}

// Register announces the identity this connection speaks for.
func (c *Client) Register(identity string) error {
	if err := c.write(wire.EventRegisterUser, identity); err != nil {
		return err
	}
	c.identity = identity
	return nil
}

// SendPublic broadcasts body from the registered identity.
func (c *Client) SendPublic(body string) error {
	return c.write(wire.EventSendMessage, wire.SendMessage{
		Sender:   c.identity,
		Receiver: domain.BroadcastReceiver,
		Message:  body,
		Type:     string(domain.Public),
	})
}

// SendPrivate sends body to receiver only.
func (c *Client) SendPrivate(receiver, body string) error {
	return c.write(wire.EventSendMessage, wire.SendMessage{
		Sender:   c.identity,
		Receiver: receiver,
		Message:  body,
		Type:     string(domain.Private),
	})
}

func (c *Client) Messages() <-chan domain.Message { return c.messages }

// Done is closed once the read loop ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection, nil while it is alive or after Close.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close is idempotent.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() { err = c.close() })
	return err
}

func (c *Client) close() error {
	close(c.closing)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(event string, data any) error {
	frame, err := wire.Encode(event, data)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.options.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.messages)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closing:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.err = err
				}
			}
			return
		}

		var envelope wire.Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			c.log.Debug("Invalid frame ignored", "error", err)
			continue
		}
		if envelope.Event != wire.EventReceiveMessage {
			continue
		}
		var received wire.ReceiveMessage
		if err := json.Unmarshal(envelope.Data, &received); err != nil {
			c.log.Debug("Invalid message ignored", "error", err)
			continue
		}
		select {
		case c.messages <- received.ToMessage():
		case <-c.closing:
			return
		}
	}
}
