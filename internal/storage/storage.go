package storage

import (
	"context"

	"priceScope/internal/model"
)

// Sink persists the output of one analysis run.
type Sink interface {
	WriteResult(ctx context.Context, result *model.AnalysisResult) error
}

// MultiSink fans one result out to several sinks, stopping at the first
// failure.
type MultiSink []Sink

func (m MultiSink) WriteResult(ctx context.Context, result *model.AnalysisResult) error {
	for _, sink := range m {
		if err := sink.WriteResult(ctx, result); err != nil {
			return err
		}
	}
	return nil
}
