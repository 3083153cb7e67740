package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// Ledger records the work units of one acquisition run that could not be
// fetched, so a later backfill can retry exactly those.
type Ledger struct {
	Source      string   `json:"source"`
	RunID       string   `json:"run_id"`
	FailedPages []int    `json:"failed_pages,omitempty"`
	FailedItems []string `json:"failed_items,omitempty"`
	LastUpdated string   `json:"last_updated"`
}

// LedgerPath is meta/failed/<source>_<date>.json under dir.
func LedgerPath(dir, source, date string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", source, date))
}

// NewLedger starts an empty ledger with a fresh run id.
func NewLedger(source string) *Ledger {
	return &Ledger{Source: source, RunID: ulid.Make().String()}
}

// LoadLedger reads a ledger. A missing file returns an error wrapping os.ErrNotExist.
func LoadLedger(path string) (*Ledger, error) {
	var l Ledger
	if err := ReadJSON(path, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// AddPage records a failed page number once.
func (l *Ledger) AddPage(page int) {
	for _, p := range l.FailedPages {
		if p == page {
			return
		}
	}
	l.FailedPages = append(l.FailedPages, page)
	sort.Ints(l.FailedPages)
}

// AddItem records a failed item id once.
func (l *Ledger) AddItem(id string) {
	for _, it := range l.FailedItems {
		if it == id {
			return
		}
	}
	l.FailedItems = append(l.FailedItems, id)
}

// Empty reports whether nothing failed.
func (l *Ledger) Empty() bool {
	return len(l.FailedPages) == 0 && len(l.FailedItems) == 0
}

// Save writes the ledger to path, or removes the file when nothing failed.
func (l *Ledger) Save(path string, now time.Time) error {
	if l.Empty() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("ledger: remove %s: %w", path, err)
		}
		return nil
	}
	l.LastUpdated = now.UTC().Format(time.RFC3339)
	return WriteJSON(path, l)
}
