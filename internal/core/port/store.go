package port

import "context"

// SeriesStore persists bounded numeric series keyed by name.
type SeriesStore interface {
	GetSeries(ctx context.Context, key string) ([]float64, error)
	PutSeries(ctx context.Context, key string, values []float64) error
	// AppendSeries appends value, keeps the newest maxLen entries and
	// persists the result as one atomic step for the key.
	AppendSeries(ctx context.Context, key string, value float64, maxLen int) ([]float64, error)
	Close() error
}
