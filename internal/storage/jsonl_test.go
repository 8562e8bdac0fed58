package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"priceScope/internal/model"
)

func testResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		Summary: model.AnalysisSummary{
			TokenAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			PoolAddress:  "0x1111111111111111111111111111111111111111",
			FromBlock:    1,
			ToBlock:      100,
		},
		Prices: []model.PricePoint{
			{
				Timestamp:      1700000000,
				BlockNumber:    5,
				TxHash:         "0x01",
				TokenPriceBase: big.NewRat(1, 50),
				TokenPriceRef:  big.NewRat(40, 1),
				PriceMethod:    "swap_amounts",
			},
			{
				Timestamp:      1700000012,
				BlockNumber:    6,
				TxHash:         "0x02",
				TokenPriceBase: big.NewRat(1, 40),
				PriceMethod:    "sqrt_price_x96",
			},
		},
		Trades: []model.TradeClassification{
			{
				BlockNumber:     5,
				TxHash:          "0x01",
				Direction:       model.DirectionBuy,
				BaseAmount:      big.NewRat(1, 1),
				RefAmountMicros: 2_000_000_000,
				RefKnown:        true,
				LargeByBase:     true,
				LargeByRef:      true,
				Counterpart:     "0x3333333333333333333333333333333333333333",
			},
		},
	}
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var decoded map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines+1, err)
		}
		lines++
	}
	return lines
}

func TestJsonlSinkWriteResult(t *testing.T) {
	dir := t.TempDir()
	pricesPath := filepath.Join(dir, "prices.jsonl")
	tradesPath := filepath.Join(dir, "trades.jsonl")

	sink := NewJsonlSink(pricesPath, tradesPath)
	if err := sink.WriteResult(context.Background(), testResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := countLines(t, pricesPath); got != 2 {
		t.Fatalf("price lines mismatch: %d", got)
	}
	if got := countLines(t, tradesPath); got != 1 {
		t.Fatalf("trade lines mismatch: %d", got)
	}

	// A second run appends.
	if err := sink.WriteResult(context.Background(), testResult()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := countLines(t, pricesPath); got != 4 {
		t.Fatalf("appended price lines mismatch: %d", got)
	}
}

func TestJsonlSinkSkipsEmptyPaths(t *testing.T) {
	sink := NewJsonlSink("", "")
	if err := sink.WriteResult(context.Background(), testResult()); err != nil {
		t.Fatalf("write with no paths: %v", err)
	}
}
