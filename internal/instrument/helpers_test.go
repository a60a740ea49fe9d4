package instrument

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickgao/betfair-instruments/internal/api"
)

// fakeClient is an in-memory MarketDataClient that records every call.
type fakeClient struct {
	mu sync.Mutex

	nav       *api.NavigationNode
	navErr    error
	records   map[string]api.MarketCatalogue
	failIDs   map[string]bool // Chunks containing one of these ids fail
	currency  string
	onRequest func(ctx context.Context, call int, ids []string) error

	navCalls       int
	catalogueCalls int
	currencyCalls  int
	chunks         [][]string
	projections    [][]api.MarketProjection
	maxResults     []int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nav:      sampleNavigation(),
		records:  make(map[string]api.MarketCatalogue),
		failIDs:  make(map[string]bool),
		currency: "GBP",
	}
}

func (f *fakeClient) ListNavigation(ctx context.Context) (*api.NavigationNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navCalls++
	if f.navErr != nil {
		return nil, f.navErr
	}
	return f.nav, nil
}

func (f *fakeClient) ListMarketCatalogue(ctx context.Context, ids []string, projection []api.MarketProjection, maxResults int) ([]api.MarketCatalogue, error) {
	f.mu.Lock()
	f.catalogueCalls++
	call := f.catalogueCalls
	f.chunks = append(f.chunks, append([]string(nil), ids...))
	f.projections = append(f.projections, projection)
	f.maxResults = append(f.maxResults, maxResults)
	hook := f.onRequest
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call, ids); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.MarketCatalogue, 0, len(ids))
	for _, id := range ids {
		if f.failIDs[id] {
			return nil, fmt.Errorf("catalogue request failed for %s", id)
		}
		if r, ok := f.records[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeClient) GetAccountCurrency(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currencyCalls++
	return f.currency, nil
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navCalls + f.catalogueCalls + f.currencyCalls
}

// addMarkets registers a one-runner catalogue record for each id and returns the ids.
func (f *fakeClient) addMarkets(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("1.%d", 1000+i)
		f.records[ids[i]] = catalogue(ids[i], runner(int64(10+i), "Runner", "0"))
	}
	return ids
}

// navigationFor builds a tree with one event holding a market per id.
func navigationFor(ids []string) *api.NavigationNode {
	event := api.NavigationNode{Type: api.NodeEvent, ID: "31", Name: "Test", CountryCode: "GB"}
	for _, id := range ids {
		event.Children = append(event.Children, api.NavigationNode{
			Type: api.NodeMarket, ID: api.FlexID(id), Name: "Match Odds", MarketType: "MATCH_ODDS",
		})
	}
	return &api.NavigationNode{
		Type: api.NodeGroup, ID: "0", Name: "ROOT",
		Children: []api.NavigationNode{{
			Type: api.NodeEventType, ID: "1", Name: "Soccer",
			Children: []api.NavigationNode{event},
		}},
	}
}

func sampleNavigation() *api.NavigationNode {
	return &api.NavigationNode{
		Type: api.NodeGroup, ID: "0", Name: "ROOT",
		Children: []api.NavigationNode{
			{
				Type: api.NodeEventType, ID: "1", Name: "Soccer",
				Children: []api.NavigationNode{{
					Type: api.NodeGroup, ID: "100", Name: "English Soccer",
					Children: []api.NavigationNode{
						{
							Type: api.NodeEvent, ID: "31", Name: "Test", CountryCode: "GB",
							Children: []api.NavigationNode{
								{Type: api.NodeMarket, ID: "1.23", Name: "Match Odds", ExchangeID: "1", MarketType: "MATCH_ODDS", MarketStartTime: "2024-01-15T15:00:00.000Z", NumberOfWinners: "1"},
								{Type: api.NodeMarket, ID: "1.24", Name: "Over/Under 2.5 Goals", ExchangeID: "1", MarketType: "OVER_UNDER_25", MarketStartTime: "2024-01-15T15:00:00.000Z", NumberOfWinners: "1"},
							},
						},
						{
							Type: api.NodeEvent, ID: "32", Name: "Other", CountryCode: "GB",
							Children: []api.NavigationNode{
								{Type: api.NodeMarket, ID: "1.25", Name: "Match Odds", ExchangeID: "1", MarketType: "MATCH_ODDS", NumberOfWinners: "1"},
							},
						},
					},
				}},
			},
			{
				Type: api.NodeEventType, ID: "7", Name: "Horse Racing",
				Children: []api.NavigationNode{{
					Type: api.NodeRace, ID: "1.R1", Name: "14:00 Ascot", CountryCode: "IE",
					Children: []api.NavigationNode{
						{Type: api.NodeMarket, ID: "1.30", Name: "2m Hcap", ExchangeID: "1", MarketType: "WIN", NumberOfWinners: "1"},
					},
				}},
			},
		},
	}
}

func runner(id int64, name, handicap string) api.RunnerCatalog {
	return api.RunnerCatalog{SelectionID: id, RunnerName: name, Handicap: json.Number(handicap)}
}

func catalogue(marketID string, runners ...api.RunnerCatalog) api.MarketCatalogue {
	return api.MarketCatalogue{
		MarketID:        marketID,
		MarketName:      "Match Odds",
		MarketStartTime: "2024-01-15T15:00:00.000Z",
		Description:     &api.MarketDescription{BettingType: "ODDS", MarketType: "MATCH_ODDS"},
		Runners:         runners,
		EventType:       &api.EventType{ID: "1", Name: "Soccer"},
		Event:           &api.Event{ID: "31", Name: "Test", CountryCode: "GB", OpenDate: "2024-01-15T14:00:00.000Z"},
	}
}

// bufferLogger returns a logger writing text records into buf.
func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
