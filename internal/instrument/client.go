package instrument

import (
	"context"

	"github.com/rickgao/betfair-instruments/internal/api"
)

// NavigationSource fetches the venue's navigation tree.
type NavigationSource interface {
	ListNavigation(ctx context.Context) (*api.NavigationNode, error)
}

// CatalogueSource fetches catalogue records for a set of market ids.
type CatalogueSource interface {
	ListMarketCatalogue(ctx context.Context, marketIDs []string, projection []api.MarketProjection, maxResults int) ([]api.MarketCatalogue, error)
}

// MarketDataClient is the remote capability the provider depends on.
// *api.Client implements it.
type MarketDataClient interface {
	NavigationSource
	CatalogueSource
	GetAccountCurrency(ctx context.Context) (string, error)
}

var _ MarketDataClient = (*api.Client)(nil)
