package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcg-market-pipeline/models"
	"tcg-market-pipeline/storage"
	"tcg-market-pipeline/utils"
)

type fakeSearcher struct {
	failures map[string]error
	queries  []string
}

func (f *fakeSearcher) FetchAll(_ context.Context, query string, _, _, _ int) (*SearchResult, error) {
	f.queries = append(f.queries, query)
	if err, ok := f.failures[query]; ok {
		return nil, err
	}
	return &SearchResult{
		Meta:  map[string]json.RawMessage{"total": json.RawMessage(`1`)},
		Items: []json.RawMessage{json.RawMessage(`{"itemId":"v1|1|0","title":"` + query + `","price":{"value":"12.50","currency":"USD"}}`)},
	}, nil
}

func newTestIngestor(t *testing.T, s Searcher) (*Ingestor, string, string) {
	t.Helper()
	root := t.TempDir()
	rawRoot := filepath.Join(root, "raw")
	ledgerDir := filepath.Join(root, "meta")
	in := NewIngestor(s, utils.NewNopLogger(), utils.NewPacer(0), rawRoot, ledgerDir, IngestOptions{PageSize: 50, MaxResults: 50, MaxPages: 1})
	return in, rawRoot, ledgerDir
}

func TestBuildQuery(t *testing.T) {
	total := int32(102)
	q := BuildQuery(models.CatalogCard{CardName: "Charizard", Number: "4", SetPrintedTotal: &total, SetName: "Base"})
	assert.Equal(t, "Charizard 4/102 Base", q)
}

func TestIngestContinuesAfterFailure(t *testing.T) {
	s := &fakeSearcher{failures: map[string]error{
		"bad": &utils.HTTPStatusError{Status: 504},
	}}
	in, rawRoot, ledgerDir := newTestIngestor(t, s)

	targets := []Target{{CardID: "c1", Query: "bad"}, {CardID: "c2", Query: "good"}}
	report, err := in.Ingest(context.Background(), targets, "2024-05-01", "2024-05-02")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"bad", "good"}, s.queries, "the next card is still processed")

	var doc models.RawListingDocument
	require.NoError(t, storage.ReadJSON(filepath.Join(rawRoot, "price_date=2024-05-01", "ingestion_date=2024-05-02", "c2.json"), &doc))
	require.Len(t, doc.ItemSummaries, 1)
	assert.Equal(t, "12.50", doc.ItemSummaries[0].Price.Value)

	ledger, err := storage.LoadLedger(storage.LedgerPath(ledgerDir, LedgerSource, "2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ledger.FailedItems)
	assert.Equal(t, LedgerSource, ledger.Source)
}

func TestIngestAuthFailureIsFatal(t *testing.T) {
	s := &fakeSearcher{failures: map[string]error{
		"first": &AuthError{Status: 401, Body: "invalid_client"},
	}}
	in, _, _ := newTestIngestor(t, s)

	_, err := in.Ingest(context.Background(), []Target{{CardID: "c1", Query: "first"}, {CardID: "c2", Query: "second"}}, "2024-05-01", "2024-05-02")
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, []string{"first"}, s.queries)
}

func TestBackfillRetriesLedgerItems(t *testing.T) {
	s := &fakeSearcher{failures: map[string]error{
		"q1": &utils.HTTPStatusError{Status: 500},
		"q2": &utils.HTTPStatusError{Status: 429},
	}}
	in, _, ledgerDir := newTestIngestor(t, s)
	targets := []Target{{CardID: "c1", Query: "q1"}, {CardID: "c2", Query: "q2"}, {CardID: "c3", Query: "q3"}}

	_, err := in.Ingest(context.Background(), targets, "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	pending, err := in.PendingItems("2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, pending)

	first, err := storage.LoadLedger(storage.LedgerPath(ledgerDir, LedgerSource, "2024-05-02"))
	require.NoError(t, err)

	// c2 recovers, c1 keeps failing
	delete(s.failures, "q2")
	s.queries = nil
	report, err := in.Backfill(context.Background(), targets, "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q2"}, s.queries, "only ledger items are retried")
	assert.Equal(t, 1, report.Accepted)
	assert.Equal(t, 1, report.Failed)

	second, err := storage.LoadLedger(storage.LedgerPath(ledgerDir, LedgerSource, "2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, second.FailedItems)
	assert.Equal(t, first.RunID, second.RunID)

	delete(s.failures, "q1")
	_, err = in.Backfill(context.Background(), targets, "2024-05-01", "2024-05-02")
	require.NoError(t, err)
	_, err = os.Stat(storage.LedgerPath(ledgerDir, LedgerSource, "2024-05-02"))
	assert.True(t, os.IsNotExist(err), "a fully recovered ledger is removed")
}

func TestBackfillWithoutLedger(t *testing.T) {
	in, _, _ := newTestIngestor(t, &fakeSearcher{})
	_, err := in.Backfill(context.Background(), nil, "2024-05-01", "2024-05-02")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
