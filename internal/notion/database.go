package notion

import (
	"context"
	"fmt"
	"net/http"
)

// QueryDatabase returns one page of results from a database query.
// Queries are reads and are retried.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*QueryResponse, error) {
	endpoint := fmt.Sprintf("%s/databases/%s/query", c.baseURL, databaseID)

	var resp QueryResponse
	if err := c.readJSON(ctx, http.MethodPost, endpoint, "query database", databaseID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryAll follows next_cursor until the query is exhausted and calls fn
// for every page of results.
func (c *Client) QueryAll(ctx context.Context, databaseID string, filter any, fn func([]Page) error) error {
	cursor := ""
	for {
		resp, err := c.QueryDatabase(ctx, databaseID, QueryRequest{
			Filter:      filter,
			StartCursor: cursor,
			PageSize:    MaxPageSize,
		})
		if err != nil {
			return err
		}
		if err := fn(resp.Results); err != nil {
			return err
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return nil
		}
		cursor = resp.NextCursor
	}
}

// RichTextEquals builds a database filter matching a rich_text property exactly.
func RichTextEquals(property, value string) map[string]any {
	return map[string]any{
		"property": property,
		"rich_text": map[string]any{
			"equals": value,
		},
	}
}
