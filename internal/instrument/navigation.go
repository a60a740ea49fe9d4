package instrument

import (
	"context"

	"github.com/rickgao/betfair-instruments/internal/api"
)

// FlattenedMarket is a MARKET leaf of the navigation tree with its ancestors' attributes.
type FlattenedMarket struct {
	EventTypeID   string
	EventTypeName string

	// Nearest EVENT or RACE ancestor
	EventID          string
	EventName        string
	EventCountryCode string

	MarketID              string
	MarketName            string
	MarketExchangeID      string
	MarketType            string
	MarketStartTime       string
	MarketNumberOfWinners string
}

// Attr returns the attribute named by a market filter key.
func (m FlattenedMarket) Attr(key string) (string, bool) {
	switch key {
	case FilterEventTypeName:
		return m.EventTypeName, true
	case FilterEventTypeID:
		return m.EventTypeID, true
	case FilterEventName:
		return m.EventName, true
	case FilterEventID:
		return m.EventID, true
	case FilterEventCountryCode:
		return m.EventCountryCode, true
	case FilterMarketName:
		return m.MarketName, true
	case FilterMarketID:
		return m.MarketID, true
	case FilterMarketExchangeID:
		return m.MarketExchangeID, true
	case FilterMarketType:
		return m.MarketType, true
	case FilterMarketStartTime:
		return m.MarketStartTime, true
	case FilterMarketNumberOfWinners:
		return m.MarketNumberOfWinners, true
	}
	return "", false
}

// Flatten walks the navigation tree depth first and returns every market in tree order.
func Flatten(root *api.NavigationNode) []FlattenedMarket {
	if root == nil {
		return nil
	}
	var out []FlattenedMarket
	flattenNode(root, FlattenedMarket{}, &out)
	return out
}

// flattenNode carries the attributes collected on the way down in parent.
func flattenNode(node *api.NavigationNode, parent FlattenedMarket, out *[]FlattenedMarket) {
	switch node.Type {
	case api.NodeEventType:
		parent.EventTypeID = string(node.ID)
		parent.EventTypeName = node.Name
	case api.NodeEvent, api.NodeRace:
		parent.EventID = string(node.ID)
		parent.EventName = node.Name
		parent.EventCountryCode = node.CountryCode
	case api.NodeMarket:
		m := parent
		m.MarketID = string(node.ID)
		m.MarketName = node.Name
		m.MarketExchangeID = string(node.ExchangeID)
		m.MarketType = node.MarketType
		m.MarketStartTime = node.MarketStartTime
		m.MarketNumberOfWinners = string(node.NumberOfWinners)
		*out = append(*out, m)
		return
	}

	for i := range node.Children {
		flattenNode(&node.Children[i], parent, out)
	}
}

// LoadMarkets fetches the navigation tree and returns the markets matching filter.
// Instrument-level keys (selection_id, selection_handicap) are dropped first; any other
// key outside the allow-list fails before the remote call.
func LoadMarkets(ctx context.Context, client NavigationSource, filter MarketFilter) ([]FlattenedMarket, error) {
	filter = filter.marketOnly()
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	root, err := client.ListNavigation(ctx)
	if err != nil {
		return nil, &RemoteCallError{Op: "list navigation", Err: err}
	}

	var markets []FlattenedMarket
	for _, m := range Flatten(root) {
		if filter.Matches(m) {
			markets = append(markets, m)
		}
	}
	return markets, nil
}
