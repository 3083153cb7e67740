package tcg

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

// Page is one page of the catalog's card listing. Cards are kept as raw
// JSON so the raw layer stores exactly what the API returned.
type Page struct {
	Data       []json.RawMessage `json:"data"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Count      int               `json:"count"`
	TotalCount int               `json:"totalCount"`
}

// Client reads the card catalog API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// FetchPage requests one page of cards. Non-2xx responses become
// *utils.HTTPStatusError so the caller can classify them.
func (c *Client) FetchPage(ctx context.Context, page, pageSize int) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cards?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest("pokemon_tcg", 0)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.ObserveRequest("pokemon_tcg", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &utils.HTTPStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var p Page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return &p, nil
}
