package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"FearGreedTracker/internal/model"
	"FearGreedTracker/internal/store"
)

// Row is the Parquet schema of an exported observation.
type Row struct {
	Date     string `parquet:"date"`
	Value    int32  `parquet:"value"`
	Category string `parquet:"category,dict"`
}

func toRows(obs []model.Observation) []Row {
	rows := make([]Row, len(obs))
	for i, o := range obs {
		rows[i] = Row{Date: o.Date, Value: int32(o.Value), Category: o.Category().String()}
	}
	return rows
}

// WriteParquet writes obs to path.
func WriteParquet(path string, obs []model.Observation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := parquet.WriteFile(path, toRows(obs)); err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}

// ReadParquet reads observations written by WriteParquet.
func ReadParquet(path string) ([]model.Observation, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	obs := make([]model.Observation, len(rows))
	for i, r := range rows {
		obs[i] = model.Observation{Date: r.Date, Value: int(r.Value)}
	}
	return obs, nil
}

// ExportParquet writes every stored observation from start into path.
func ExportParquet(ctx context.Context, s store.Store, path, start string) (int, error) {
	obs, err := load(ctx, s, start)
	if err != nil {
		return 0, err
	}
	if err := WriteParquet(path, obs); err != nil {
		return 0, err
	}
	return len(obs), nil
}

// ImportParquet upserts the observations of a Parquet export.
func ImportParquet(ctx context.Context, s store.Store, path string) (ImportResult, error) {
	obs, err := ReadParquet(path)
	if err != nil {
		return ImportResult{}, err
	}
	valid := obs[:0]
	for _, o := range obs {
		if o.Value > 0 && model.ValidValue(o.Value) {
			valid = append(valid, o)
		}
	}
	res := ImportResult{Rows: len(obs), Valid: len(valid), Skipped: len(obs) - len(valid)}
	if len(valid) == 0 {
		return res, nil
	}
	res.Affected, err = s.Upsert(ctx, lastWins(valid))
	if err != nil {
		return res, fmt.Errorf("import %s: %w", path, err)
	}
	return res, nil
}
