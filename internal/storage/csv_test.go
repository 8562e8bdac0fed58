package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestCSVSinkWriteResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")

	sink := NewCSVSink(path)
	if err := sink.WriteResult(context.Background(), testResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("row count mismatch: %d", len(rows))
	}
	if rows[0][0] != "timestamp" {
		t.Fatalf("header mismatch: %v", rows[0])
	}
	if rows[1][3] != "0.020000000000000000" {
		t.Fatalf("base price cell mismatch: %v", rows[1])
	}
	// The second point had no reference price.
	if rows[2][4] != "" {
		t.Fatalf("ref price cell should be empty: %v", rows[2])
	}
}
