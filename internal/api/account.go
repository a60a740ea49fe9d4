package api

import (
	"context"
	"fmt"
)

// GetAccountDetails fetches the account details of the session's owner.
func (c *Client) GetAccountDetails(ctx context.Context) (*AccountDetails, error) {
	var resp AccountDetails
	if err := c.post(ctx, "/account/rest/v1.0/getAccountDetails/", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("get account details: %w", err)
	}
	return &resp, nil
}

// GetAccountCurrency returns the account's settlement currency code (e.g. "GBP").
func (c *Client) GetAccountCurrency(ctx context.Context) (string, error) {
	details, err := c.GetAccountDetails(ctx)
	if err != nil {
		return "", err
	}
	if details.CurrencyCode == "" {
		return "", fmt.Errorf("get account currency: empty currency code")
	}
	return details.CurrencyCode, nil
}
