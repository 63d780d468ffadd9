package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListBlockChildren returns one page of the children of a block or page.
func (c *Client) ListBlockChildren(ctx context.Context, blockID, cursor string, pageSize int) (*BlockChildrenResponse, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	endpoint := fmt.Sprintf("%s/blocks/%s/children", c.baseURL, blockID)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var resp BlockChildrenResponse
	if err := c.readJSON(ctx, http.MethodGet, endpoint, "list block children", blockID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AllBlockChildren returns every direct child of blockID in API order.
func (c *Client) AllBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		resp, err := c.ListBlockChildren(ctx, blockID, cursor, MaxPageSize)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}
