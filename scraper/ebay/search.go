package ebay

import (
	"context"
	"encoding/json"
	"fmt"
)

// cursor is the pagination state threaded through one FetchAll call.
type cursor struct {
	offset int
	pages  int
	items  []json.RawMessage
	meta   map[string]json.RawMessage
}

func (c *cursor) done(maxResults, maxPages int) bool {
	if len(c.items) >= maxResults {
		return true
	}
	return maxPages > 0 && c.pages >= maxPages
}

// FetchAll pages through the results for query in offset order. Each request
// asks for min(pageSize, maxResults-accumulated) items. Paging stops at
// maxResults, on an empty or short page, or after maxPages pages. Items are
// merged in fetch order and the last page's metadata becomes the envelope.
// Every page is retried according to the client's retry policy.
func (c *Client) FetchAll(ctx context.Context, query string, pageSize, maxResults, maxPages int) (*SearchResult, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("ebay: page size must be positive, got %d", pageSize)
	}
	cur := &cursor{}

	for !cur.done(maxResults, maxPages) {
		limit := min(pageSize, maxResults-len(cur.items))

		var page *SearchResult
		op := fmt.Sprintf("search %q offset=%d", query, cur.offset)
		err := c.retry.Do(ctx, op, func() error {
			p, err := c.SearchPage(ctx, query, limit, cur.offset)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, err
		}

		cur.pages++
		cur.meta = page.Meta
		cur.items = append(cur.items, page.Items...)
		cur.offset += len(page.Items)

		if len(page.Items) < limit {
			break
		}
	}

	if cur.meta == nil {
		cur.meta = map[string]json.RawMessage{}
	}
	return &SearchResult{Meta: cur.meta, Items: cur.items}, nil
}
