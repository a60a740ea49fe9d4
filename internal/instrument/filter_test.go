package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketFilter_Validate(t *testing.T) {
	t.Run("all valid keys", func(t *testing.T) {
		f := MarketFilter{}
		for _, k := range ValidMarketFilterKeys() {
			f[k] = []string{"x"}
		}
		assert.NoError(t, f.Validate())
	})

	t.Run("nil filter", func(t *testing.T) {
		var f MarketFilter
		assert.NoError(t, f.Validate())
	})

	t.Run("unknown key", func(t *testing.T) {
		f := MarketFilter{"event_type_name": {"Soccer"}, "colour": {"red"}}
		err := f.Validate()
		require.ErrorIs(t, err, ErrInvalidFilterKey)

		var keyErr *InvalidFilterKeyError
		require.ErrorAs(t, err, &keyErr)
		assert.Equal(t, "colour", keyErr.Key)
	})

	t.Run("first invalid key in sorted order", func(t *testing.T) {
		f := MarketFilter{"zeta": {"1"}, "alpha": {"1"}}
		var keyErr *InvalidFilterKeyError
		require.ErrorAs(t, f.Validate(), &keyErr)
		assert.Equal(t, "alpha", keyErr.Key)
	})

	t.Run("selection keys are not market keys", func(t *testing.T) {
		f := MarketFilter{"selection_id": {"123"}}
		assert.ErrorIs(t, f.Validate(), ErrInvalidFilterKey)
		assert.NoError(t, f.marketOnly().Validate())
	})
}

func TestMarketFilter_MarketOnly(t *testing.T) {
	f := MarketFilter{
		"event_name":         {"Test"},
		"selection_id":       {"123"},
		"selection_handicap": {"0.0"},
	}

	got := f.marketOnly()
	assert.Equal(t, MarketFilter{"event_name": {"Test"}}, got)
	assert.Len(t, f, 3, "original filter must not be modified")
}

func TestMarketFilter_Matches(t *testing.T) {
	m := FlattenedMarket{
		EventTypeName: "Soccer",
		EventName:     "Test",
		MarketID:      "1.23",
		MarketType:    "MATCH_ODDS",
	}

	tests := []struct {
		name   string
		filter MarketFilter
		want   bool
	}{
		{"empty", MarketFilter{}, true},
		{"single match", MarketFilter{"event_name": {"Test"}}, true},
		{"any of values", MarketFilter{"market_marketType": {"WIN", "MATCH_ODDS"}}, true},
		{"conjunction", MarketFilter{"event_name": {"Test"}, "market_id": {"1.23"}}, true},
		{"conjunction fails", MarketFilter{"event_name": {"Test"}, "market_id": {"1.99"}}, false},
		{"no values", MarketFilter{"event_name": {}}, false},
		{"unknown key", MarketFilter{"colour": {"red"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(m))
		})
	}
}
