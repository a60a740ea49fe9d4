package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	authRequestID      = 1
	subscribeRequestID = 2
)

// Handler receives the market definitions of one mcm message.
type Handler func(defs []MarketDefinition) error

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	Client            ClientConfig
	AppKey            string
	SessionToken      string
	Filter            MarketFilter
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// ConsumerStats holds consumer counters.
type ConsumerStats struct {
	Sessions    int64
	Messages    int64
	Definitions int64
	Errors      int64
}

// Consumer subscribes to market definitions and forwards them to a Handler.
type Consumer struct {
	cfg     ConsumerConfig
	handler Handler
	logger  *slog.Logger

	sessions    atomic.Int64
	messages    atomic.Int64
	definitions atomic.Int64
	errors      atomic.Int64
}

// NewConsumer creates a new Consumer.
func NewConsumer(cfg ConsumerConfig, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = time.Second
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = 60 * time.Second
	}
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Run consumes the stream until ctx is cancelled or a fatal status is received.
// Dropped connections are re-established with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	wait := c.cfg.ReconnectBaseWait

	for {
		subscribed, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Fatal() {
			return err
		}

		if subscribed {
			wait = c.cfg.ReconnectBaseWait
		}

		c.logger.Warn("stream session ended, reconnecting",
			"error", err,
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > c.cfg.ReconnectMaxWait {
			wait = c.cfg.ReconnectMaxWait
		}
	}
}

// session runs one connection. It reports whether the subscription was acknowledged.
func (c *Consumer) session(ctx context.Context) (bool, error) {
	client := NewClient(c.cfg.Client, c.logger)
	if err := client.Connect(ctx); err != nil {
		return false, err
	}
	defer client.Close()

	c.sessions.Add(1)

	auth := AuthenticationRequest{
		Op:      OpAuthentication,
		ID:      authRequestID,
		AppKey:  c.cfg.AppKey,
		Session: c.cfg.SessionToken,
	}
	if err := client.SendJSON(auth); err != nil {
		return false, err
	}

	sub := MarketSubscriptionRequest{
		Op:               OpMarketSubscription,
		ID:               subscribeRequestID,
		MarketFilter:     c.cfg.Filter,
		MarketDataFilter: MarketDataFilter{Fields: []string{FieldMarketDefinition}},
	}
	if err := client.SendJSON(sub); err != nil {
		return false, err
	}

	subscribed := false
	for {
		select {
		case <-ctx.Done():
			return subscribed, ctx.Err()

		case err := <-client.Errors():
			return subscribed, err

		case msg := <-client.Messages():
			c.messages.Add(1)

			decoded, err := Decode(msg.Data)
			if err != nil {
				var statusErr *StatusError
				if errors.As(err, &statusErr) {
					return subscribed, err
				}
				c.errors.Add(1)
				c.logger.Debug("dropping undecodable message", "error", err)
				continue
			}

			switch m := decoded.(type) {
			case *ConnectionMessage:
				c.logger.Info("stream connection accepted", "connection_id", m.ConnectionID)

			case *StatusMessage:
				if m.ID == subscribeRequestID {
					subscribed = true
					c.logger.Info("market subscription active")
				}

			case *MarketChangeMessage:
				defs := Definitions(m)
				if len(defs) == 0 {
					continue
				}
				c.definitions.Add(int64(len(defs)))
				if err := c.handler(defs); err != nil {
					c.errors.Add(1)
					c.logger.Warn("handle market definitions failed",
						"count", len(defs),
						"error", err,
					)
				}
			}
		}
	}
}

// Stats returns current consumer statistics.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Sessions:    c.sessions.Load(),
		Messages:    c.messages.Load(),
		Definitions: c.definitions.Load(),
		Errors:      c.errors.Load(),
	}
}
