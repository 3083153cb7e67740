package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-market-pipeline/models"
)

func TestObserveStage(t *testing.T) {
	before := testutil.ToFloat64(StageItemsTotal.WithLabelValues("staging", "accepted"))
	highBefore := testutil.ToFloat64(ConfidenceTierTotal.WithLabelValues("high"))

	ObserveStage(models.StageReport{
		Stage: "staging", Processed: 10, Accepted: 4, Rejected: 3,
		Tiers: map[models.ConfidenceTier]int{models.TierHigh: 3, models.TierMedium: 1},
	})

	assert.Equal(t, before+4, testutil.ToFloat64(StageItemsTotal.WithLabelValues("staging", "accepted")))
	assert.Equal(t, highBefore+3, testutil.ToFloat64(ConfidenceTierTotal.WithLabelValues("high")))
}

func TestObserveRequestClasses(t *testing.T) {
	ok := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "2xx"))
	failed := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "error"))
	throttled := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "4xx"))

	ObserveRequest("ebay", 200)
	ObserveRequest("ebay", 429)
	ObserveRequest("ebay", 0)

	assert.Equal(t, ok+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "2xx")))
	assert.Equal(t, throttled+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "4xx")))
	assert.Equal(t, failed+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("ebay", "error")))
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ObserveRows("ebay_market_snapshot", 5)
	require.NoError(t, Push(srv.URL, "card_pipeline"))
	assert.Equal(t, "/metrics/job/card_pipeline", gotPath)
	assert.NotEmpty(t, gotBody)

	assert.NoError(t, Push("", "card_pipeline"))
}
