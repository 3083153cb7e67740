package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-market-pipeline/utils"
)

type fakeMarketplace struct {
	total     int
	fail      map[int]int // offset -> status returned on the first request for it
	failCount map[int]int
	requests  int32
	limits    []int
}

func (f *fakeMarketplace) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":7200}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.requests, 1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "183454", r.URL.Query().Get("category_ids"))

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		if status, ok := f.fail[offset]; ok && f.failCount[offset] == 0 {
			f.failCount[offset]++
			w.WriteHeader(status)
			fmt.Fprint(w, `{"errors":[{"message":"try later"}]}`)
			return
		}
		f.limits = append(f.limits, limit)

		var items []string
		for i := offset; i < offset+limit && i < f.total; i++ {
			items = append(items, fmt.Sprintf(`{"itemId":"v1|%d|0","title":"Charizard %d","price":{"value":"%d.00","currency":"USD"}}`, i, i, i+1))
		}
		fmt.Fprintf(w, `{"href":"page-%d","total":%d,"offset":%d,"itemSummaries":[%s]}`, offset, f.total, offset, strings.Join(items, ","))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeMarketplace, attempts int) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	auth := NewTokenCache("id", "secret", srv.URL+"/token", "scope", srv.Client())
	retry := &utils.RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, Backoff: utils.Exponential, Logger: utils.NewNopLogger()}
	return NewClient(auth, srv.URL+"/search", "183454", srv.Client(), retry, utils.NewNopLogger())
}

func itemIDs(t *testing.T, res *SearchResult) []string {
	t.Helper()
	var ids []string
	for _, raw := range res.Items {
		var it struct {
			ItemID string `json:"itemId"`
		}
		require.NoError(t, json.Unmarshal(raw, &it))
		ids = append(ids, it.ItemID)
	}
	return ids
}

func TestFetchAllBoundsEachPage(t *testing.T) {
	f := &fakeMarketplace{total: 100}
	c := newTestClient(t, f, 3)

	res, err := c.FetchAll(context.Background(), "charizard", 2, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, f.limits)
	assert.Equal(t, []string{"v1|0|0", "v1|1|0", "v1|2|0", "v1|3|0", "v1|4|0"}, itemIDs(t, res))
	assert.JSONEq(t, `"page-4"`, string(res.Meta["href"]), "envelope comes from the last page")
}

func TestFetchAllStopsOnShortPage(t *testing.T) {
	f := &fakeMarketplace{total: 3}
	c := newTestClient(t, f, 3)

	res, err := c.FetchAll(context.Background(), "charizard", 2, 50, 0)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.requests))
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	f := &fakeMarketplace{total: 4}
	c := newTestClient(t, f, 3)

	res, err := c.FetchAll(context.Background(), "charizard", 2, 50, 0)
	require.NoError(t, err)
	assert.Len(t, res.Items, 4)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.requests))
}

func TestFetchAllHonoursMaxPages(t *testing.T) {
	f := &fakeMarketplace{total: 100}
	c := newTestClient(t, f, 3)

	res, err := c.FetchAll(context.Background(), "charizard", 10, 100, 2)
	require.NoError(t, err)
	assert.Len(t, res.Items, 20)
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.requests))
}

func TestFetchAllRetriesTransientPage(t *testing.T) {
	f := &fakeMarketplace{total: 3, fail: map[int]int{2: http.StatusTooManyRequests}, failCount: map[int]int{}}
	c := newTestClient(t, f, 3)

	res, err := c.FetchAll(context.Background(), "charizard", 2, 50, 0)
	require.NoError(t, err)
	assert.Len(t, res.Items, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.requests), "the throttled page is requested twice")
}

func TestFetchAllPermanentFailure(t *testing.T) {
	f := &fakeMarketplace{total: 3, fail: map[int]int{0: http.StatusBadRequest}, failCount: map[int]int{}}
	c := newTestClient(t, f, 3)

	_, err := c.FetchAll(context.Background(), "charizard", 2, 50, 0)
	var statusErr *utils.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.requests))
}

func TestSearchResultRoundTripKeepsMeta(t *testing.T) {
	res, err := decodeSearchResult([]byte(`{"total":2,"warnings":[],"itemSummaries":[{"itemId":"a"},{"itemId":"b","extra":true}]}`))
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.NotContains(t, res.Meta, "itemSummaries")

	out, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2,"warnings":[],"itemSummaries":[{"itemId":"a"},{"itemId":"b","extra":true}]}`, string(out))
}
