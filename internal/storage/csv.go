package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"priceScope/internal/model"
)

// CSVSink writes price points to a CSV file for spreadsheet analysis. Each
// run rewrites the file: CSV has no append-safe framing once headers exist.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

var csvHeader = []string{
	"timestamp", "block_number", "tx_hash",
	"token_price_base", "token_price_ref", "base_price_ref_micros",
	"price_method", "low_confidence",
}

// WriteResult writes the run's price points as CSV rows.
func (s *CSVSink) WriteResult(_ context.Context, result *model.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for i := range result.Prices {
		point := &result.Prices[i]
		ref := ""
		if point.TokenPriceRef != nil {
			ref = model.FormatRat(point.TokenPriceRef)
		}
		row := []string{
			strconv.FormatUint(point.Timestamp, 10),
			strconv.FormatUint(point.BlockNumber, 10),
			point.TxHash,
			model.FormatRat(point.TokenPriceBase),
			ref,
			strconv.FormatInt(point.BasePriceRefMicros, 10),
			point.PriceMethod,
			strconv.FormatBool(point.LowConfidence),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
