package api

import (
	"context"
	"fmt"
)

// ListNavigation fetches the full navigation menu tree.
// The tree is large (tens of MB for all event types); callers should not cache it
// beyond a single load cycle.
func (c *Client) ListNavigation(ctx context.Context) (*NavigationNode, error) {
	var root NavigationNode
	if err := c.get(ctx, "/betting/rest/v1/en/navigation/menu.json", &root); err != nil {
		return nil, fmt.Errorf("list navigation: %w", err)
	}
	return &root, nil
}
