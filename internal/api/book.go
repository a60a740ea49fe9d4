package api

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxBookMarkets keeps a listMarketBook request with traded volume under the API's
// request weight limit.
const MaxBookMarkets = 11

// PriceData values for a price projection.
const (
	PriceDataTraded = "EX_TRADED"
)

// ListMarketBook fetches the books of the given markets with traded volume.
func (c *Client) ListMarketBook(ctx context.Context, marketIDs []string) ([]MarketBook, error) {
	if len(marketIDs) == 0 {
		return nil, nil
	}
	if len(marketIDs) > MaxBookMarkets {
		return nil, fmt.Errorf("list market book: %d markets exceeds limit of %d", len(marketIDs), MaxBookMarkets)
	}

	req := listMarketBookRequest{
		MarketIDs:       marketIDs,
		PriceProjection: PriceProjection{PriceData: []string{PriceDataTraded}},
	}

	var resp []MarketBook
	if err := c.post(ctx, "/betting/rest/v1.0/listMarketBook/", req, &resp); err != nil {
		return nil, fmt.Errorf("list market book (%d markets): %w", len(marketIDs), err)
	}

	return resp, nil
}

// MarketBookRow is one runner of a market book, flattened with its market totals.
type MarketBookRow struct {
	MarketID           string
	SelectionID        int64
	MarketMatched      decimal.Decimal
	MarketStatus       string
	SelectionStatus    string
	SelectionMatched   decimal.NullDecimal
	SelectionLastPrice decimal.NullDecimal
}

// BookRows flattens books into one row per runner, in response order.
func BookRows(books []MarketBook) []MarketBookRow {
	var rows []MarketBookRow
	for _, book := range books {
		for _, runner := range book.Runners {
			rows = append(rows, MarketBookRow{
				MarketID:           book.MarketID,
				SelectionID:        runner.SelectionID,
				MarketMatched:      book.TotalMatched,
				MarketStatus:       book.Status,
				SelectionStatus:    runner.Status,
				SelectionMatched:   runner.TotalMatched,
				SelectionLastPrice: runner.LastPriceTraded,
			})
		}
	}
	return rows
}
