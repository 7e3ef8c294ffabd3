// Package export writes the stored series to CSV and Parquet files and
// imports historical CSV files.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

// DefaultStart is the first date included in exports.
const DefaultStart = "2021-01-01"

// ErrColumnsNotFound means a CSV header has no date or value column.
var ErrColumnsNotFound = errors.New("csv columns not found")

var csvHeader = []string{"date", "value", "rating"}

// WriteCSV writes obs as date,value,rating rows.
func WriteCSV(w io.Writer, obs []model.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, o := range obs {
		row := []string{o.Date, strconv.Itoa(o.Value), o.Category().String()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", o.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes every stored observation from start to today into path.
func ExportCSV(ctx context.Context, s store.Store, path, start string) (int, error) {
	obs, err := load(ctx, s, start)
	if err != nil {
		return 0, err
	}
	f, err := create(path)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(f, obs); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	return len(obs), nil
}

// ImportResult reports a CSV import.
type ImportResult struct {
	Rows     int
	Valid    int
	Skipped  int
	Affected int64
}

// ReadCSV parses a CSV file with a header row. The date column is the last
// header containing "date"; the value column is the last header containing
// "fear", "greed" or "value" (case-insensitive). Rows with a bad date or a
// value outside (0,100] are skipped.
func ReadCSV(r io.Reader) ([]model.Observation, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	dateCol, valueCol := -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if strings.Contains(h, "date") {
			dateCol = i
		}
		if strings.Contains(h, "fear") || strings.Contains(h, "greed") || strings.Contains(h, "value") {
			valueCol = i
		}
	}
	if dateCol < 0 || valueCol < 0 || dateCol == valueCol {
		return nil, 0, fmt.Errorf("%w: header %v", ErrColumnsNotFound, header)
	}

	var obs []model.Observation
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read csv: %w", err)
		}
		o, ok := parseRow(rec, dateCol, valueCol)
		if !ok {
			skipped++
			continue
		}
		obs = append(obs, o)
	}
	return obs, skipped, nil
}

func parseRow(rec []string, dateCol, valueCol int) (model.Observation, bool) {
	if dateCol >= len(rec) || valueCol >= len(rec) {
		return model.Observation{}, false
	}
	date := strings.TrimSpace(rec[dateCol])
	if len(date) > 10 {
		date = date[:10]
	}
	if _, err := model.ParseDate(date, time.UTC); err != nil {
		return model.Observation{}, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(rec[valueCol]), 64)
	if err != nil {
		return model.Observation{}, false
	}
	v := int(f)
	if v <= 0 || v > 100 {
		return model.Observation{}, false
	}
	return model.Observation{Date: date, Value: v}, true
}

// ImportCSV reads path and upserts the valid rows in one batch.
func ImportCSV(ctx context.Context, s store.Store, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	obs, skipped, err := ReadCSV(f)
	if err != nil {
		return ImportResult{}, fmt.Errorf("import %s: %w", path, err)
	}
	res := ImportResult{Rows: len(obs) + skipped, Skipped: skipped}
	obs = lastWins(obs)
	res.Valid = len(obs)
	if len(obs) == 0 {
		return res, nil
	}
	res.Affected, err = s.Upsert(ctx, obs)
	if err != nil {
		return res, fmt.Errorf("import %s: %w", path, err)
	}
	return res, nil
}

// lastWins drops earlier rows for repeated dates, keeping input order.
func lastWins(obs []model.Observation) []model.Observation {
	idx := make(map[string]int, len(obs))
	out := make([]model.Observation, 0, len(obs))
	for _, o := range obs {
		if i, ok := idx[o.Date]; ok {
			out[i] = o
			continue
		}
		idx[o.Date] = len(out)
		out = append(out, o)
	}
	return out
}

func load(ctx context.Context, s store.Store, start string) ([]model.Observation, error) {
	if start == "" {
		start = DefaultStart
	}
	obs, err := s.Range(ctx, start, "9999-12-31")
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	return obs, nil
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
