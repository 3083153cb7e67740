package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"tcg-market-pipeline/models"
)

// Registry holds only this pipeline's collectors so a push carries nothing else.
var Registry = prometheus.NewRegistry()

var (
	StageItemsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "card_pipeline_stage_items_total",
		Help: "Items handled per stage and outcome",
	}, []string{"stage", "outcome"})

	ConfidenceTierTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "card_pipeline_confidence_tier_total",
		Help: "Staged listings per confidence tier",
	}, []string{"tier"})

	APIRequestsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "card_pipeline_api_requests_total",
		Help: "Upstream API requests by source and status class",
	}, []string{"source", "status"})

	RowsWrittenTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "card_pipeline_rows_written_total",
		Help: "Rows persisted per dataset",
	}, []string{"dataset"})
)

// ObserveStage adds a stage report to the counters.
func ObserveStage(r models.StageReport) {
	StageItemsTotal.WithLabelValues(r.Stage, "processed").Add(float64(r.Processed))
	StageItemsTotal.WithLabelValues(r.Stage, "accepted").Add(float64(r.Accepted))
	StageItemsTotal.WithLabelValues(r.Stage, "rejected").Add(float64(r.Rejected))
	StageItemsTotal.WithLabelValues(r.Stage, "skipped").Add(float64(r.Skipped))
	StageItemsTotal.WithLabelValues(r.Stage, "failed").Add(float64(r.Failed))
	for tier, n := range r.Tiers {
		ConfidenceTierTotal.WithLabelValues(string(tier)).Add(float64(n))
	}
}

// ObserveRequest counts one upstream call. status 0 means a transport failure.
func ObserveRequest(source string, status int) {
	class := "error"
	if status > 0 {
		class = fmt.Sprintf("%dxx", status/100)
	}
	APIRequestsTotal.WithLabelValues(source, class).Inc()
}

// ObserveRows counts rows written to a dataset.
func ObserveRows(dataset string, n int) {
	RowsWrittenTotal.WithLabelValues(dataset).Add(float64(n))
}

// Push sends the registry to a Pushgateway under job. An empty url is a no-op.
func Push(url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(Registry).Push(); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
