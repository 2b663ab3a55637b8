package store

import (
	"context"
	"sync"

	"github.com/berfenger/solisflux/internal/core/port"
)

// MemoryStore is used when no store path is configured and in tests.
// History does not survive a restart.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (s *MemoryStore) GetSeries(ctx context.Context, key string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return decodeSeries(s.data[key])
}

func (s *MemoryStore) PutSeries(ctx context.Context, key string, values []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = encodeSeries(values)
	return nil
}

func (s *MemoryStore) AppendSeries(ctx context.Context, key string, value float64, maxLen int) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := decodeSeries(s.data[key])
	if err != nil {
		return nil, err
	}
	values := appendBounded(current, value, maxLen)
	s.data[key] = encodeSeries(values)
	return values, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ port.SeriesStore = (*MemoryStore)(nil)
