package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"priceScope/internal/model"
)

// JsonlSink writes price points and trade classifications to JSONL files.
// Either path may be empty to skip that stream.
type JsonlSink struct {
	pricesPath string
	tradesPath string
	mu         sync.Mutex
}

func NewJsonlSink(pricesPath, tradesPath string) *JsonlSink {
	return &JsonlSink{pricesPath: pricesPath, tradesPath: tradesPath}
}

// WriteResult appends the run's prices and trades as JSON lines.
func (s *JsonlSink) WriteResult(_ context.Context, result *model.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pricesPath != "" {
		if err := appendLines(s.pricesPath, len(result.Prices), func(i int) (interface{}, error) {
			return result.Prices[i], nil
		}); err != nil {
			return err
		}
	}
	if s.tradesPath != "" {
		if err := appendLines(s.tradesPath, len(result.Trades), func(i int) (interface{}, error) {
			return result.Trades[i], nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func appendLines(path string, count int, item func(int) (interface{}, error)) error {
	if count == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i := 0; i < count; i++ {
		record, err := item(i)
		if err != nil {
			return err
		}
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
