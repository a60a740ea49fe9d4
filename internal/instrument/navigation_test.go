package instrument

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/betfair-instruments/internal/api"
)

func marketIDsOf(markets []FlattenedMarket) []string {
	ids := make([]string, len(markets))
	for i, m := range markets {
		ids[i] = m.MarketID
	}
	return ids
}

func TestFlatten(t *testing.T) {
	markets := Flatten(sampleNavigation())
	require.Len(t, markets, 4)

	assert.Equal(t, []string{"1.23", "1.24", "1.25", "1.30"}, marketIDsOf(markets))

	first := markets[0]
	assert.Equal(t, "1", first.EventTypeID)
	assert.Equal(t, "Soccer", first.EventTypeName)
	assert.Equal(t, "31", first.EventID)
	assert.Equal(t, "Test", first.EventName)
	assert.Equal(t, "GB", first.EventCountryCode)
	assert.Equal(t, "Match Odds", first.MarketName)
	assert.Equal(t, "1", first.MarketExchangeID)
	assert.Equal(t, "MATCH_ODDS", first.MarketType)
	assert.Equal(t, "2024-01-15T15:00:00.000Z", first.MarketStartTime)
	assert.Equal(t, "1", first.MarketNumberOfWinners)

	race := markets[3]
	assert.Equal(t, "Horse Racing", race.EventTypeName)
	assert.Equal(t, "1.R1", race.EventID)
	assert.Equal(t, "14:00 Ascot", race.EventName)
	assert.Equal(t, "IE", race.EventCountryCode)
}

func TestFlatten_Deterministic(t *testing.T) {
	nav := sampleNavigation()
	assert.Equal(t, Flatten(nav), Flatten(nav))
}

func TestFlatten_Nil(t *testing.T) {
	assert.Nil(t, Flatten(nil))
}

func TestFlattenedMarket_Attr(t *testing.T) {
	m := Flatten(sampleNavigation())[0]
	for _, key := range ValidMarketFilterKeys() {
		_, ok := m.Attr(key)
		assert.True(t, ok, "key %s", key)
	}
	_, ok := m.Attr("selection_id")
	assert.False(t, ok)
}

func TestLoadMarkets(t *testing.T) {
	t.Run("filter by event type", func(t *testing.T) {
		client := newFakeClient()
		markets, err := LoadMarkets(context.Background(), client, MarketFilter{"event_type_name": {"Horse Racing"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"1.30"}, marketIDsOf(markets))
		assert.Equal(t, 1, client.navCalls)
	})

	t.Run("nil filter returns every market", func(t *testing.T) {
		client := newFakeClient()
		markets, err := LoadMarkets(context.Background(), client, nil)
		require.NoError(t, err)
		assert.Len(t, markets, 4)
	})

	t.Run("selection keys dropped before navigation", func(t *testing.T) {
		client := newFakeClient()
		filter := MarketFilter{"event_name": {"Test"}, "selection_id": {"123"}}

		markets, err := LoadMarkets(context.Background(), client, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, client.navCalls)
		assert.Equal(t, []string{"1.23", "1.24"}, marketIDsOf(markets))
		for _, m := range markets {
			assert.Equal(t, "Test", m.EventName)
		}
	})

	t.Run("invalid key issues no remote call", func(t *testing.T) {
		client := newFakeClient()
		_, err := LoadMarkets(context.Background(), client, MarketFilter{"venue": {"Ascot"}})
		assert.ErrorIs(t, err, ErrInvalidFilterKey)
		assert.Zero(t, client.totalCalls())
	})

	t.Run("navigation failure", func(t *testing.T) {
		client := newFakeClient()
		client.navErr = errors.New("connection reset")

		_, err := LoadMarkets(context.Background(), client, nil)
		var remoteErr *RemoteCallError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, "list navigation", remoteErr.Op)
	})

	t.Run("tree is fetched on every call", func(t *testing.T) {
		client := newFakeClient()
		for range 3 {
			_, err := LoadMarkets(context.Background(), client, nil)
			require.NoError(t, err)
		}
		assert.Equal(t, 3, client.navCalls)
	})

	t.Run("numeric ids", func(t *testing.T) {
		client := newFakeClient()
		client.nav = &api.NavigationNode{
			Type: api.NodeGroup,
			Children: []api.NavigationNode{{
				Type: api.NodeEventType, ID: "1", Name: "Soccer",
				Children: []api.NavigationNode{{
					Type: api.NodeEvent, ID: "31", Name: "Test",
					Children: []api.NavigationNode{{Type: api.NodeMarket, ID: "1.5", NumberOfWinners: "2"}},
				}},
			}},
		}
		markets, err := LoadMarkets(context.Background(), client, MarketFilter{"market_numberOfWinners": {"2"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"1.5"}, marketIDsOf(markets))
	})
}
