package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"tcg-market-pipeline/metrics"
	"tcg-market-pipeline/utils"
)

// SearchResult is a search response kept opaque except for its item list.
// Meta holds every top-level field other than itemSummaries.
type SearchResult struct {
	Meta  map[string]json.RawMessage
	Items []json.RawMessage
}

// MarshalJSON renders the result back into the API's document shape.
func (r *SearchResult) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(r.Meta)+1)
	for k, v := range r.Meta {
		doc[k] = v
	}
	items := r.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	doc["itemSummaries"] = raw
	return json.Marshal(doc)
}

func decodeSearchResult(body []byte) (*SearchResult, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	res := &SearchResult{Meta: doc}
	if raw, ok := doc["itemSummaries"]; ok {
		delete(doc, "itemSummaries")
		if err := json.Unmarshal(raw, &res.Items); err != nil {
			return nil, fmt.Errorf("decode itemSummaries: %w", err)
		}
	}
	return res, nil
}

// Client issues authenticated item searches.
type Client struct {
	auth       *TokenCache
	searchURL  string
	categoryID string
	httpClient *http.Client
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

// NewClient creates a search client. retry governs per-page retries.
func NewClient(auth *TokenCache, searchURL, categoryID string, httpClient *http.Client, retry *utils.RetryConfig, logger *utils.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		auth:       auth,
		searchURL:  searchURL,
		categoryID: categoryID,
		httpClient: httpClient,
		retry:      retry,
		logger:     logger,
	}
}

// SearchPage fetches one page. Non-2xx responses become *utils.HTTPStatusError.
func (c *Client) SearchPage(ctx context.Context, query string, limit, offset int) (*SearchResult, error) {
	token, err := c.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	if c.categoryID != "" {
		params.Set("category_ids", c.categoryID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest("ebay", 0)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.ObserveRequest("ebay", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &utils.HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return decodeSearchResult(body)
}
