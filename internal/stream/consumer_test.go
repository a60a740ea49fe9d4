package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveSubscription reads the authentication and subscription requests and acknowledges both.
func serveSubscription(t *testing.T, conn *lineConn) (AuthenticationRequest, MarketSubscriptionRequest, bool) {
	var auth AuthenticationRequest
	var sub MarketSubscriptionRequest

	if err := conn.writeLine(`{"op":"connection","connectionId":"002-1"}`); err != nil {
		return auth, sub, false
	}
	if err := conn.readJSON(&auth); err != nil {
		t.Logf("read auth: %v", err)
		return auth, sub, false
	}
	if err := conn.readJSON(&sub); err != nil {
		t.Logf("read subscription: %v", err)
		return auth, sub, false
	}
	conn.writeLine(`{"op":"status","id":1,"statusCode":"SUCCESS"}`)
	conn.writeLine(`{"op":"status","id":2,"statusCode":"SUCCESS"}`)
	return auth, sub, true
}

// compactJSON puts a JSON document on one line.
func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		panic(err)
	}
	return buf.String()
}

func testConsumerConfig(addr string) ConsumerConfig {
	return ConsumerConfig{
		Client:            testClientConfig(addr),
		AppKey:            "app-key",
		SessionToken:      "session",
		Filter:            MarketFilter{EventTypeIDs: []string{"7"}},
		ReconnectBaseWait: 10 * time.Millisecond,
		ReconnectMaxWait:  50 * time.Millisecond,
	}
}

func TestConsumer_DeliversDefinitions(t *testing.T) {
	requests := make(chan MarketSubscriptionRequest, 1)
	auths := make(chan AuthenticationRequest, 1)

	addr := mockLineServer(t, func(conn *lineConn) {
		auth, sub, ok := serveSubscription(t, conn)
		if !ok {
			return
		}
		auths <- auth
		requests <- sub
		conn.writeLine(`{"op":"mcm","id":2,"ct":"HEARTBEAT","pt":1}`)
		conn.writeLine(compactJSON(definitionMessage))
		time.Sleep(time.Second)
	})

	received := make(chan []MarketDefinition, 1)
	handler := func(defs []MarketDefinition) error {
		select {
		case received <- defs:
		default:
		}
		return nil
	}

	consumer := NewConsumer(testConsumerConfig(addr), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	select {
	case defs := <-received:
		require.Len(t, defs, 1)
		assert.Equal(t, "1.23", defs[0].MarketID)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for definitions")
	}

	auth := <-auths
	assert.Equal(t, OpAuthentication, auth.Op)
	assert.Equal(t, "app-key", auth.AppKey)
	assert.Equal(t, "session", auth.Session)

	sub := <-requests
	assert.Equal(t, OpMarketSubscription, sub.Op)
	assert.Equal(t, []string{"7"}, sub.MarketFilter.EventTypeIDs)
	assert.Equal(t, []string{FieldMarketDefinition}, sub.MarketDataFilter.Fields)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	stats := consumer.Stats()
	assert.Equal(t, int64(1), stats.Sessions)
	assert.Equal(t, int64(1), stats.Definitions)
	assert.GreaterOrEqual(t, stats.Messages, int64(5))
}

func TestConsumer_FatalStatusStops(t *testing.T) {
	addr := mockLineServer(t, func(conn *lineConn) {
		var req json.RawMessage
		conn.readJSON(&req)
		conn.writeLine(`{"op":"status","id":1,"statusCode":"FAILURE","errorCode":"INVALID_SESSION_INFORMATION","connectionClosed":true}`)
		time.Sleep(500 * time.Millisecond)
	})

	consumer := NewConsumer(testConsumerConfig(addr), func([]MarketDefinition) error { return nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := consumer.Run(ctx)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "INVALID_SESSION_INFORMATION", statusErr.ErrorCode)
}

func TestConsumer_Reconnects(t *testing.T) {
	var connections atomic.Int32

	addr := mockLineServer(t, func(conn *lineConn) {
		if connections.Add(1) == 1 {
			// Drop the first connection straight away
			return
		}
		if _, _, ok := serveSubscription(t, conn); !ok {
			return
		}
		conn.writeLine(compactJSON(definitionMessage))
		time.Sleep(time.Second)
	})

	received := make(chan struct{}, 1)
	handler := func(defs []MarketDefinition) error {
		select {
		case received <- struct{}{}:
		default:
		}
		return nil
	}

	consumer := NewConsumer(testConsumerConfig(addr), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	select {
	case <-received:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for definitions after reconnect")
	}

	assert.GreaterOrEqual(t, consumer.Stats().Sessions, int64(2))
}

func TestConsumer_HandlerErrorCounted(t *testing.T) {
	addr := mockLineServer(t, func(conn *lineConn) {
		if _, _, ok := serveSubscription(t, conn); !ok {
			return
		}
		conn.writeLine(compactJSON(definitionMessage))
		time.Sleep(time.Second)
	})

	calls := make(chan struct{}, 1)
	handler := func(defs []MarketDefinition) error {
		select {
		case calls <- struct{}{}:
		default:
		}
		return errors.New("boom")
	}

	consumer := NewConsumer(testConsumerConfig(addr), handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx)

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	assert.Eventually(t, func() bool {
		return consumer.Stats().Errors >= 1
	}, time.Second, 10*time.Millisecond)
}
