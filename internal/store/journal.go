package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tracknote/internal/domain"
)

// ParquetJournal records reconciliation passes and merged positions as
// Parquet files on disk, one file per month (passes) or per instrument-year
// (positions). It is an audit trail, not a source of truth: the OrderStore
// remains authoritative.
type ParquetJournal struct {
	DataDir string
}

// NewParquetJournal creates a journal rooted at the given data directory.
func NewParquetJournal(dataDir string) *ParquetJournal {
	return &ParquetJournal{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// PassRecord is the Parquet schema for one reconciliation pass summary.
type PassRecord struct {
	PassID     string `parquet:"pass_id"`
	Timestamp  int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Matched    int64  `parquet:"matched"`
	NewOrders  int64  `parquet:"new_orders"`
	MainOrders int64  `parquet:"main_orders"`
	ExitOrders int64  `parquet:"exit_orders"`
	Executed   int64  `parquet:"executed"`
	Merged     int64  `parquet:"merged"`
	DurationMs int64  `parquet:"duration_ms"`
}

// MergedPositionRecord is the Parquet schema for a merged position.
type MergedPositionRecord struct {
	MergedID           string  `parquet:"merged_id"`
	Instrument         string  `parquet:"instrument"`
	CombinedQuantity   float64 `parquet:"combined_quantity"`
	WeightedEntryPrice float64 `parquet:"weighted_entry_price"`
	PositionValue      float64 `parquet:"position_value"`
	Components         int64   `parquet:"components"`
	CreatedAt          int64   `parquet:"created_at,timestamp(millisecond)"` // Unix ms
}

// ---------------------------------------------------------------------------
// Pass journal
// ---------------------------------------------------------------------------

// AppendPass records a pass summary, merging it into the current month's
// file.
func (j *ParquetJournal) AppendPass(rec PassRecord) error {
	path := j.passPath(time.UnixMilli(rec.Timestamp))

	existing, _ := readParquetFile[PassRecord](path)
	merged := mergePassRecords(existing, []PassRecord{rec})

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("journaling pass %s: %w", rec.PassID, err)
	}
	return nil
}

// ReadPasses returns all pass records within [start, end], oldest first.
func (j *ParquetJournal) ReadPasses(start, end time.Time) ([]PassRecord, error) {
	var records []PassRecord
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		rows, err := readParquetFile[PassRecord](j.passPath(m))
		if err != nil {
			// No file for this month.
			continue
		}
		for _, r := range rows {
			ts := time.UnixMilli(r.Timestamp)
			if !ts.Before(start) && !ts.After(end) {
				records = append(records, r)
			}
		}
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// Merged position journal
// ---------------------------------------------------------------------------

// AppendMergedPosition records a merged position under its instrument.
func (j *ParquetJournal) AppendMergedPosition(pos *domain.MergedPosition) error {
	rec := MergedPositionRecord{
		MergedID:           pos.ID,
		Instrument:         pos.Instrument,
		CombinedQuantity:   pos.CombinedQuantity,
		WeightedEntryPrice: pos.WeightedEntryPrice,
		PositionValue:      pos.PositionValue,
		Components:         int64(len(pos.ComponentIdentities)),
		CreatedAt:          pos.CreatedAt.UnixMilli(),
	}
	path := j.mergedPath(pos.Instrument, pos.CreatedAt)

	existing, _ := readParquetFile[MergedPositionRecord](path)
	merged := mergeMergedRecords(existing, []MergedPositionRecord{rec})

	if err := writeParquetFile(path, merged); err != nil {
		return fmt.Errorf("journaling merged position %s: %w", pos.ID, err)
	}
	return nil
}

// ReadMergedPositions returns the journaled positions for an instrument and
// year, oldest first.
func (j *ParquetJournal) ReadMergedPositions(instrument string, year int) ([]MergedPositionRecord, error) {
	path := j.mergedPath(instrument, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))
	rows, err := readParquetFile[MergedPositionRecord](path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// passPath returns the pass journal file for a month.
// Layout: <dataDir>/passes/<YYYY-MM>.parquet
func (j *ParquetJournal) passPath(t time.Time) string {
	return filepath.Join(j.DataDir, "passes", t.Format("2006-01")+".parquet")
}

// mergedPath returns the merged-position file for an instrument and year.
// Layout: <dataDir>/merged/<INSTRUMENT>/<YYYY>.parquet
func (j *ParquetJournal) mergedPath(instrument string, t time.Time) string {
	year := fmt.Sprintf("%d", t.Year())
	return filepath.Join(j.DataDir, "merged", strings.ToUpper(instrument), year+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergePassRecords deduplicates pass records by pass ID, preferring new
// records. Results are sorted by timestamp.
func mergePassRecords(existing, incoming []PassRecord) []PassRecord {
	seen := make(map[string]PassRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.PassID] = r
	}
	for _, r := range incoming {
		seen[r.PassID] = r
	}

	merged := make([]PassRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeMergedRecords deduplicates position records by merged ID, preferring
// new records. Results are sorted by creation time.
func mergeMergedRecords(existing, incoming []MergedPositionRecord) []MergedPositionRecord {
	seen := make(map[string]MergedPositionRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.MergedID] = r
	}
	for _, r := range incoming {
		seen[r.MergedID] = r
	}

	merged := make([]MergedPositionRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt < merged[j].CreatedAt
	})
	return merged
}
