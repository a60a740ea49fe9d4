package stream

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// heartbeatIDBase keeps heartbeat request ids clear of the consumer's request ids.
const heartbeatIDBase = 1000

var crlf = []byte("\r\n")

// Client is a single connection to the exchange stream. Messages in both directions are
// JSON objects terminated by CRLF.
type Client interface {
	// Connect dials the stream endpoint.
	Connect(ctx context.Context) error

	// Close closes the connection.
	Close() error

	// Send writes one message. The line terminator is appended.
	Send(data []byte) error

	// SendJSON marshals v and writes it as one message.
	SendJSON(v any) error

	// Messages returns a channel of all raw messages, each stamped with its receive time.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn   net.Conn
	reader *bufio.Reader

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu         sync.RWMutex
	connected  bool
	lastRecvAt time.Time
	closed     bool
}

// NewClient creates a new stream client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}

	c := &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	c.nextID.Store(heartbeatIDBase)
	return c
}

// Connect dials the stream endpoint, over TLS unless Plaintext is set.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, 64*1024)
	c.connected = true
	c.lastRecvAt = time.Now()
	c.mu.Unlock()

	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("stream connected", "addr", c.cfg.Addr, "tls", !c.cfg.Plaintext)

	return nil
}

func (c *client) dial(ctx context.Context) (net.Conn, error) {
	netDialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if c.cfg.Plaintext {
		return netDialer.DialContext(ctx, "tcp", c.cfg.Addr)
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.cfg.TLSConfig != nil {
		tlsCfg = c.cfg.TLSConfig.Clone()
	}
	if tlsCfg.ServerName == "" {
		host, _, err := net.SplitHostPort(c.cfg.Addr)
		if err != nil {
			return nil, err
		}
		tlsCfg.ServerName = host
	}

	dialer := &tls.Dialer{NetDialer: netDialer, Config: tlsCfg}
	return dialer.DialContext(ctx, "tcp", c.cfg.Addr)
}

func (c *client) touch() {
	c.mu.Lock()
	c.lastRecvAt = time.Now()
	c.mu.Unlock()
}

// Close closes the connection. Calling it more than once is a no-op.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn != nil {
		return conn.Close()
	}

	return nil
}

// Send writes one CRLF-terminated message.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	line := make([]byte, 0, len(data)+len(crlf))
	line = append(line, data...)
	line = append(line, crlf...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	_, err := conn.Write(line)
	return err
}

// SendJSON marshals v and writes it as one message.
func (c *client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.Send(data)
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *client) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}

// readLoop splits the connection into lines and sends each one to the messages channel.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		line, err := c.reader.ReadBytes('\n')
		receivedAt := time.Now()

		if err != nil {
			// Errors after Close are expected
			select {
			case <-c.done:
			default:
				c.reportError(err)
			}
			return
		}

		c.touch()

		data := bytes.TrimRight(line, "\r\n")
		if len(data) == 0 {
			continue
		}

		msg := TimestampedMessage{
			Data:       data,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			c.logger.Warn("message buffer full, dropping message")
		}
	}
}

// heartbeatLoop sends heartbeat requests and monitors for stale connections.
func (c *client) heartbeatLoop() {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			lastRecv := c.lastRecvAt
			c.mu.RUnlock()

			req := HeartbeatRequest{Op: OpHeartbeat, ID: c.nextID.Add(1)}
			if err := c.SendJSON(req); err != nil {
				c.logger.Debug("failed to send heartbeat", "error", err)
			}

			if c.cfg.IdleTimeout > 0 && time.Since(lastRecv) > c.cfg.IdleTimeout {
				c.logger.Warn("no data received, connection stale",
					"last_received", lastRecv,
					"timeout", c.cfg.IdleTimeout,
				)
				c.reportError(ErrStaleConnection)
				return
			}
		}
	}
}
