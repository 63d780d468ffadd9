package notion

import (
	"context"
	"net/http"
)

// CreatePage creates a page. It is sent exactly once: a timed out request
// may still have created the page, and retrying would duplicate it.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Page, error) {
	var page Page
	if err := c.writeJSON(ctx, http.MethodPost, c.baseURL+"/pages", "create page", req.Parent.DatabaseID, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
