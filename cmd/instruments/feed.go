package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/betfair-instruments/internal/model"
)

// Update kinds pushed on the feed.
const (
	updateLoad   = "load"
	updateStream = "stream"
)

const (
	feedBuffer       = 32
	feedWriteTimeout = 5 * time.Second
)

// instrumentUpdate is one message on the /ws feed.
type instrumentUpdate struct {
	Type        string           `json:"type"`
	Instruments []instrumentView `json:"instruments"`
}

// feed fans instrument updates out to websocket subscribers. Slow subscribers miss
// updates rather than block publishers.
type feed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[chan instrumentUpdate]struct{}
}

func newFeed(logger *slog.Logger) *feed {
	return &feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[chan instrumentUpdate]struct{}),
	}
}

func (f *feed) subscribe() chan instrumentUpdate {
	ch := make(chan instrumentUpdate, feedBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *feed) unsubscribe(ch chan instrumentUpdate) {
	f.mu.Lock()
	delete(f.subs, ch)
	f.mu.Unlock()
	close(ch)
}

// subscribers returns the number of connected subscribers.
func (f *feed) subscribers() int {
	if f == nil {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// publish sends instruments to every subscriber. A nil feed or an empty batch is a no-op.
func (f *feed) publish(kind string, instruments []model.Instrument) {
	if f == nil || len(instruments) == 0 {
		return
	}

	update := instrumentUpdate{Type: kind, Instruments: make([]instrumentView, 0, len(instruments))}
	for _, inst := range instruments {
		update.Instruments = append(update.Instruments, newInstrumentView(inst, false))
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- update:
		default:
			f.logger.Debug("feed subscriber lagging, dropping update", "type", kind)
		}
	}
}

// ServeHTTP upgrades the request and streams updates until the peer goes away.
func (f *feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := f.subscribe()
	defer f.unsubscribe(sub)

	// Reads only detect the peer closing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case update := <-sub:
			conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(update); err != nil {
				f.logger.Debug("feed write failed", "error", err)
				return
			}
		}
	}
}
