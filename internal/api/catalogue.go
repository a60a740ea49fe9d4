package api

import (
	"context"
	"fmt"
)

// MaxCatalogueResults is the API's upper bound on maxResults for listMarketCatalogue.
const MaxCatalogueResults = 1000

// ListMarketCatalogue fetches catalogue records for the given market ids.
func (c *Client) ListMarketCatalogue(ctx context.Context, marketIDs []string, projection []MarketProjection, maxResults int) ([]MarketCatalogue, error) {
	if maxResults <= 0 || maxResults > MaxCatalogueResults {
		maxResults = MaxCatalogueResults
	}

	req := listMarketCatalogueRequest{
		Filter:           MarketFilterParams{MarketIDs: marketIDs},
		MarketProjection: projection,
		MaxResults:       maxResults,
	}

	var resp []MarketCatalogue
	if err := c.post(ctx, "/betting/rest/v1.0/listMarketCatalogue/", req, &resp); err != nil {
		return nil, fmt.Errorf("list market catalogue (%d markets): %w", len(marketIDs), err)
	}

	return resp, nil
}
